// Package storetest is the behavioural contract every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes the full contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SwapCommits", func(t *testing.T) { testSwapCommits(t, newStore(t)) })
	t.Run("SwapStale", func(t *testing.T) { testSwapStale(t, newStore(t)) })
	t.Run("SwapMissing", func(t *testing.T) { testSwapMissing(t, newStore(t)) })
	t.Run("SwapSkip", func(t *testing.T) { testSwapSkip(t, newStore(t)) })
	t.Run("ListOrdered", func(t *testing.T) { testListOrdered(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ConcurrentSwap", func(t *testing.T) { testConcurrentSwap(t, newStore(t)) })
	t.Run("Restore", func(t *testing.T) { testRestore(t, newStore(t)) })
	t.Run("BoundaryRooms", func(t *testing.T) { testBoundaryRooms(t, newStore(t)) })
}

// sampleRooms returns a small room list.
func sampleRooms() []floor.Room {
	return []floor.Room{
		{Number: "101", Capacity: 10, Description: "Lab"},
		{Number: "102", Capacity: 0, Description: ""},
		{Number: "103", Capacity: 250, Description: "Auditorium, ground floor"},
	}
}

// commit builds the successor of s or fails the test.
func commit(t *testing.T, s floor.State, rooms []floor.Room) floor.State {
	t.Helper()

	next, err := floor.Commit(s, s.Version, rooms)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	return next
}

// AssertState fails the test if got and want differ in any persisted field.
func AssertState(t *testing.T, got, want floor.State) {
	t.Helper()

	if got.ID != want.ID || got.Number != want.Number {
		t.Errorf("identity = %q/%q, want %q/%q", got.ID, got.Number, want.ID, want.Number)
	}

	if got.Version != want.Version {
		t.Errorf("version = %d, want %d", got.Version, want.Version)
	}

	if got.Root != want.Root {
		t.Errorf("root = %s, want %s", got.Root, want.Root)
	}

	if len(got.Rooms) != len(want.Rooms) {
		t.Fatalf("rooms = %d, want %d", len(got.Rooms), len(want.Rooms))
	}

	for i := range want.Rooms {
		if got.Rooms[i] != want.Rooms[i] {
			t.Errorf("room %d = %+v, want %+v", i, got.Rooms[i], want.Rooms[i])
		}
	}
}

func testCreateGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")

	if err := s.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	AssertState(t, got, f)

	if err := got.Validate(); err != nil {
		t.Errorf("loaded state invalid: %v", err)
	}
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")

	if err := s.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.Create(ctx, f); !errors.Is(err, store.ErrExists) {
		t.Errorf("duplicate Create err = %v, want ErrExists", err)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func testSwapCommits(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")

	if err := s.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	next := commit(t, f, sampleRooms())
	if err := s.CompareAndSwap(ctx, 0, next); err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}

	got, err := s.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	AssertState(t, got, next)

	third := commit(t, got, floor.AddRoom(got.Rooms, floor.Room{Number: "104", Capacity: 2}))
	if err := s.CompareAndSwap(ctx, 1, third); err != nil {
		t.Fatalf("second CompareAndSwap failed: %v", err)
	}

	got, _ = s.Get(ctx, f.ID)
	AssertState(t, got, third)
}

func testSwapStale(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")
	_ = s.Create(ctx, f)

	first := commit(t, f, sampleRooms())
	if err := s.CompareAndSwap(ctx, 0, first); err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}

	// A writer that still believes the floor is at version 0.
	loser := commit(t, f, sampleRooms()[:1])

	err := s.CompareAndSwap(ctx, 0, loser)
	if !errors.Is(err, floor.ErrStaleVersion) {
		t.Fatalf("stale CompareAndSwap err = %v, want ErrStaleVersion", err)
	}

	var ce *floor.ConcurrencyError
	if errors.As(err, &ce) && ce.Actual != 1 {
		t.Errorf("conflict actual version = %d, want 1", ce.Actual)
	}

	got, _ := s.Get(ctx, f.ID)
	AssertState(t, got, first)
}

func testSwapMissing(t *testing.T, s store.Store) {
	next := commit(t, floor.New("ghost", "9"), sampleRooms())

	if err := s.CompareAndSwap(context.Background(), 0, next); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CompareAndSwap err = %v, want ErrNotFound", err)
	}
}

func testSwapSkip(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")
	_ = s.Create(ctx, f)

	next := commit(t, f, sampleRooms())
	next.Version = 5

	if err := s.CompareAndSwap(ctx, 0, next); !errors.Is(err, store.ErrVersionSkip) {
		t.Errorf("CompareAndSwap err = %v, want ErrVersionSkip", err)
	}
}

func testListOrdered(t *testing.T, s store.Store) {
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Create(ctx, floor.New(id, id)); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("List returned %d floors, want 3", len(list))
	}

	for i, want := range []string{"a", "b", "c"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")
	_ = s.Create(ctx, f)

	if err := s.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := s.Get(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

// testRestore replaces existing content, including a floor present on both sides.
// testBoundaryRooms commits the largest accepted capacity and reads it back.
func testBoundaryRooms(t *testing.T, s store.Store) {
	ctx := context.Background()

	base := floor.New("f1", "1")
	if err := s.Create(ctx, base); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	next := commit(t, base, []floor.Room{
		{Number: "big", Capacity: floor.MaxCapacity, Description: "Hall"},
		{Number: "", Capacity: 0, Description: "unnumbered, ütf-8 ✓"},
	})

	if err := s.CompareAndSwap(ctx, 0, next); err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}

	got, err := s.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	AssertState(t, got, next)

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d floors, %v", len(list), err)
	}

	if err := list[0].Validate(); err != nil {
		t.Errorf("listed floor fails validation: %v", err)
	}
}

func testRestore(t *testing.T, s store.Store) {
	ctx := context.Background()

	_ = s.Create(ctx, floor.New("gone", "G"))
	_ = s.Create(ctx, floor.New("kept", "K"))

	kept := commit(t, floor.New("kept", "K2"), sampleRooms())
	fresh := floor.New("fresh", "F")

	if err := store.Restore(ctx, s, []floor.State{kept, fresh}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("List returned %d floors, want 2", len(list))
	}

	AssertState(t, list[0], fresh)
	AssertState(t, list[1], kept)

	if _, err := s.Get(ctx, "gone"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(gone) err = %v, want ErrNotFound", err)
	}
}

// testConcurrentSwap races writers that all hold version 0: exactly one may win.
func testConcurrentSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := floor.New("floor-a", "1")
	_ = s.Create(ctx, f)

	const writers = 16

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		stales int
		others []error
	)

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			room := floor.Room{Number: fmt.Sprintf("W%02d", w), Capacity: w}
			next, err := floor.Commit(f, 0, []floor.Room{room})
			if err != nil {
				mu.Lock()
				others = append(others, err)
				mu.Unlock()
				return
			}

			err = s.CompareAndSwap(ctx, 0, next)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				wins++
			case errors.Is(err, floor.ErrStaleVersion):
				stales++
			default:
				others = append(others, err)
			}
		}(w)
	}

	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}

	if wins != 1 || stales != writers-1 {
		t.Errorf("wins=%d stales=%d, want 1/%d", wins, stales, writers-1)
	}

	got, _ := s.Get(ctx, f.ID)
	if got.Version != 1 || len(got.Rooms) != 1 {
		t.Errorf("final version=%d rooms=%d, want 1/1", got.Version, len(got.Rooms))
	}

	if err := got.Validate(); err != nil {
		t.Errorf("final state invalid: %v", err)
	}
}
