// Package ledger is the floor management service.
//
// Every room mutation follows the same path: load the floor, run the version
// gate, derive the new room list, commit (build the tree) outside any lock and
// hand the result to the store's CompareAndSwap. A writer holding a stale
// version therefore never overwrites a newer state, even when it passed the
// gate before a concurrent commit landed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/logger"
	"RoomLedger/internal/merkle"
	"RoomLedger/internal/metrics"
	"RoomLedger/internal/store"
)

// Operation names used for logs and metrics.
const (
	OpReplaceRooms = "replace_rooms"
	OpAddRoom      = "add_room"
	OpUpdateRoom   = "update_room"
	OpRemoveRoom   = "remove_room"
	OpMoveRoom     = "move_room"
)

// ErrInvalidInput is returned for requests rejected before reaching the commit path.
var ErrInvalidInput = errors.New("invalid input")

// Service manages floors on top of a store.
type Service struct {
	store   store.Store
	metrics *metrics.Metrics // metrics may be nil
	newID   func() string
}

// New creates a service. m may be nil.
func New(s store.Store, m *metrics.Metrics) *Service {
	return &Service{
		store:   s,
		metrics: m,
		newID:   func() string { return uuid.NewString() },
	}
}

// Store returns the backing store.
func (s *Service) Store() store.Store {
	return s.store
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateFloor stores a new empty floor labelled number and returns it.
func (s *Service) CreateFloor(ctx context.Context, number string) (floor.State, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return floor.State{}, fmt.Errorf("floor number is required: %w", ErrInvalidInput)
	}

	f := floor.New(s.newID(), number)

	if err := s.store.Create(ctx, f); err != nil {
		return floor.State{}, fmt.Errorf("create floor %s:\n%w", f.ID, err)
	}

	logger.Info("floor created", "floor", f.ID, "number", number)

	return f, nil
}

// Floors returns every floor ordered by ID.
func (s *Service) Floors(ctx context.Context) ([]floor.State, error) {
	floors, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list floors:\n%w", err)
	}

	return floors, nil
}

// Floor returns one floor.
func (s *Service) Floor(ctx context.Context, id string) (floor.State, error) {
	f, err := s.store.Get(ctx, id)
	if err != nil {
		return floor.State{}, fmt.Errorf("get floor %s:\n%w", id, err)
	}

	return f, nil
}

// RemoveFloor deletes a floor and its rooms.
func (s *Service) RemoveFloor(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove floor %s:\n%w", id, err)
	}

	logger.Info("floor removed", "floor", id)

	return nil
}

// ReplaceRooms commits rooms as the floor's complete room list.
func (s *Service) ReplaceRooms(ctx context.Context, id string, expectedVersion uint64, rooms []floor.Room) (floor.State, error) {
	for i, r := range rooms {
		if err := requireNumber(r); err != nil {
			return floor.State{}, fmt.Errorf("room %d: %w", i, err)
		}
	}

	return s.mutate(ctx, OpReplaceRooms, id, expectedVersion, func([]floor.Room) ([]floor.Room, error) {
		return rooms, nil
	})
}

// AddRoom appends room to the floor.
func (s *Service) AddRoom(ctx context.Context, id string, expectedVersion uint64, room floor.Room) (floor.State, error) {
	if err := requireNumber(room); err != nil {
		return floor.State{}, err
	}

	return s.mutate(ctx, OpAddRoom, id, expectedVersion, func(rooms []floor.Room) ([]floor.Room, error) {
		return floor.AddRoom(rooms, room), nil
	})
}

// UpdateRoom applies a partial update to the room at index.
func (s *Service) UpdateRoom(ctx context.Context, id string, expectedVersion uint64, index int, patch floor.RoomPatch) (floor.State, error) {
	if patch.Empty() {
		return floor.State{}, fmt.Errorf("update room: no field to change: %w", ErrInvalidInput)
	}

	return s.mutate(ctx, OpUpdateRoom, id, expectedVersion, func(rooms []floor.Room) ([]floor.Room, error) {
		return floor.UpdateRoom(rooms, index, patch)
	})
}

// RemoveRoom deletes the room at index.
func (s *Service) RemoveRoom(ctx context.Context, id string, expectedVersion uint64, index int) (floor.State, error) {
	return s.mutate(ctx, OpRemoveRoom, id, expectedVersion, func(rooms []floor.Room) ([]floor.Room, error) {
		return floor.RemoveRoom(rooms, index)
	})
}

// MoveRoom moves the room at from to position to.
func (s *Service) MoveRoom(ctx context.Context, id string, expectedVersion uint64, from, to int) (floor.State, error) {
	return s.mutate(ctx, OpMoveRoom, id, expectedVersion, func(rooms []floor.Room) ([]floor.Room, error) {
		return floor.MoveRoom(rooms, from, to)
	})
}

// requireNumber rejects rooms without a label.
func requireNumber(r floor.Room) error {
	if strings.TrimSpace(r.Number) == "" {
		return fmt.Errorf("room number is required: %w", ErrInvalidInput)
	}

	return nil
}

// mutate runs one gated commit. The gate runs before change so a stale caller
// sees ErrStaleVersion even when its change would also be invalid.
func (s *Service) mutate(
	ctx context.Context,
	op, id string,
	expectedVersion uint64,
	change func([]floor.Room) ([]floor.Room, error),
) (next floor.State, err error) {
	defer func() { s.metrics.Commit(op, err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return floor.State{}, fmt.Errorf("%s %s:\n%w", op, id, err)
	}

	if err := floor.CheckVersion(current, expectedVersion); err != nil {
		logger.Info("stale write rejected", "op", op, "floor", id, "expected", expectedVersion, "current", current.Version)
		return floor.State{}, err
	}

	rooms, err := change(current.Rooms)
	if err != nil {
		return floor.State{}, fmt.Errorf("%s %s:\n%w", op, id, err)
	}

	start := time.Now()

	next, err = floor.Commit(current, expectedVersion, rooms)
	if err != nil {
		return floor.State{}, fmt.Errorf("%s %s:\n%w", op, id, err)
	}

	s.metrics.TreeBuilt(time.Since(start), len(next.Rooms))

	if err := s.store.CompareAndSwap(ctx, expectedVersion, next); err != nil {
		var conflict *floor.ConcurrencyError
		if errors.As(err, &conflict) {
			logger.Info("concurrent write lost", "op", op, "floor", id, "expected", conflict.Expected, "current", conflict.Actual)
			return floor.State{}, err
		}

		logger.Error("store commit failed", "op", op, "floor", id, "error", err)

		return floor.State{}, fmt.Errorf("%s %s:\n%w", op, id, err)
	}

	logger.Debug("floor committed", "op", op, "floor", id, "version", next.Version, "root", next.Root, "rooms", len(next.Rooms))

	return next, nil
}

// RoomProof is an inclusion proof for one room against a committed floor root.
type RoomProof struct {
	FloorID string       `json:"floorId"`
	Version uint64       `json:"version"`
	Index   int          `json:"index"`
	Room    floor.Room   `json:"room"`
	Leaf    merkle.Hash  `json:"leaf"`
	Root    merkle.Hash  `json:"rootDigest"`
	Proof   merkle.Proof `json:"-"`
}

// ProveRoom builds the inclusion proof of the room at index in the floor's current state.
func (s *Service) ProveRoom(ctx context.Context, id string, index int) (RoomProof, error) {
	f, err := s.store.Get(ctx, id)
	if err != nil {
		return RoomProof{}, fmt.Errorf("prove room of %s:\n%w", id, err)
	}

	if index < 0 || index >= len(f.Rooms) {
		s.metrics.Proof("prove", false)
		return RoomProof{}, fmt.Errorf("room %d of %d: %w", index, len(f.Rooms), floor.ErrRoomIndex)
	}

	tree, err := f.Tree()
	if err != nil {
		return RoomProof{}, fmt.Errorf("rebuild tree of %s:\n%w", id, err)
	}

	if tree.Root() != f.Root {
		logger.Error("stored root diverges from rooms", "floor", id, "stored", f.Root, "computed", tree.Root())
		return RoomProof{}, fmt.Errorf("floor %s: %w", id, floor.ErrRootMismatch)
	}

	proof, err := tree.Prove(index)
	if err != nil {
		return RoomProof{}, fmt.Errorf("prove room %d of %s:\n%w", index, id, err)
	}

	leaf, _ := tree.Leaf(index)
	s.metrics.Proof("prove", true)

	return RoomProof{
		FloorID: id,
		Version: f.Version,
		Index:   index,
		Room:    f.Rooms[index],
		Leaf:    leaf,
		Root:    f.Root,
		Proof:   proof,
	}, nil
}

// VerifyRoom reports whether room sits at index under root according to proof.
// A room that cannot be encoded is an error; every other mismatch is false.
func (s *Service) VerifyRoom(room floor.Room, index int, proof merkle.Proof, root merkle.Hash) (bool, error) {
	leaf, err := floor.LeafDigest(room)
	if err != nil {
		return false, err
	}

	ok := merkle.Verify(leaf, index, proof, root)
	s.metrics.Proof("verify", ok)

	return ok, nil
}

// AuditReport summarizes a consistency check over every floor.
type AuditReport struct {
	Floors  int      `json:"floors"`
	Corrupt []string `json:"corrupt"`
}

// Audit recomputes every floor's root and reports those that diverge from their rooms.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	start := time.Now()

	floors, err := s.store.List(ctx)
	if err != nil {
		return AuditReport{}, fmt.Errorf("audit:\n%w", err)
	}

	report := AuditReport{Floors: len(floors), Corrupt: []string{}}

	for _, f := range floors {
		if err := f.Validate(); err != nil {
			logger.Error("floor failed audit", "floor", f.ID, "error", err)
			report.Corrupt = append(report.Corrupt, f.ID)
		}
	}

	s.metrics.SetFloors(len(floors))
	logger.Info("audit complete", "floors", report.Floors, "corrupt", len(report.Corrupt), logger.Timed(start))

	return report, nil
}
