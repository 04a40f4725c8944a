package snapshot

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"RoomLedger/internal/floor"
)

// testFloors returns committed floors out of ID order.
func testFloors(t *testing.T) []floor.State {
	t.Helper()

	a, err := floor.Commit(floor.New("b-floor", "2"), 0, []floor.Room{
		{Number: "201", Capacity: 4, Description: "Office"},
		{Number: "202", Capacity: 8},
		{Number: "203", Capacity: 30, Description: "Seminar"},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	return []floor.State{a, floor.New("a-floor", "1")}
}

func TestBuildParse_RoundTrip(t *testing.T) {
	floors := testFloors(t)
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)

	data := Build(floors, createdAt)

	got, meta, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if meta.Format != formatVersion || meta.Floors != 2 || !meta.CreatedAt.Equal(createdAt) {
		t.Errorf("unexpected meta: %+v", meta)
	}

	// Floors come back sorted by ID.
	if got[0].ID != "a-floor" || got[1].ID != "b-floor" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}

	want := floors[0]
	if got[1].Root != want.Root || got[1].Version != want.Version || len(got[1].Rooms) != 3 {
		t.Errorf("floor mismatch: got %+v, want %+v", got[1], want)
	}

	for i := range want.Rooms {
		if got[1].Rooms[i] != want.Rooms[i] {
			t.Errorf("room %d = %+v, want %+v", i, got[1].Rooms[i], want.Rooms[i])
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	floors := testFloors(t)
	createdAt := time.Unix(1700000000, 0)

	reversed := []floor.State{floors[1], floors[0]}

	if !bytes.Equal(Build(floors, createdAt), Build(reversed, createdAt)) {
		t.Error("same floors in different order produced different snapshots")
	}
}

func TestParse_Empty(t *testing.T) {
	got, meta, err := Parse(Build(nil, time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(got) != 0 || meta.Floors != 0 {
		t.Errorf("expected no floors, got %d", len(got))
	}
}

func TestParse_ChecksumTamper(t *testing.T) {
	floors := testFloors(t)
	createdAt := time.Unix(1700000000, 0)
	data := Build(floors, createdAt)

	sorted := []floor.State{floors[1], floors[0]}
	sum := computeChecksum(formatVersion, createdAt.UnixNano(), sorted)

	at := bytes.Index(data, sum[:])
	if at < 0 {
		t.Fatal("checksum not found in snapshot")
	}

	data[at] ^= 0xFF

	if _, _, err := Parse(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

// TestParse_RootMismatch verifies a floor whose rooms disagree with its root is refused.
func TestParse_RootMismatch(t *testing.T) {
	floors := testFloors(t)
	floors[0].Rooms[1].Capacity = 9

	if _, _, err := Parse(Build(floors, time.Unix(0, 0))); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestParse_DuplicateID(t *testing.T) {
	f := floor.New("same", "1")

	if _, _, err := Parse(Build([]floor.State{f, f}, time.Unix(0, 0))); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestParse_Garbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		{1, 2, 3},
		bytes.Repeat([]byte{0xFF}, 64),
	}

	for _, in := range inputs {
		if _, _, err := Parse(in); err == nil {
			t.Errorf("Parse(%x) succeeded, want error", in)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	floors := testFloors(t)

	data, err := Encode(floors, time.Now())
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(got) != 2 {
		t.Errorf("expected 2 floors, got %d", len(got))
	}

	if _, _, err := Decode([]byte("not zstd")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}
