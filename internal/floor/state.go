// Package floor couples a floor's ordered room list to its Merkle root and a
// version counter, and defines the optimistic concurrency commit protocol.
//
// Everything here is pure: no I/O, no shared state. Persisting a committed
// State atomically with respect to other writers is the store's job.
package floor

import (
	"fmt"

	"RoomLedger/internal/merkle"
)

// State is the versioned aggregate of one floor.
// Root always equals the Merkle root of Rooms for any committed value.
type State struct {
	ID      string      `json:"id"`         // ID is the floor identifier
	Number  string      `json:"number"`     // Number is the human floor label, not hashed
	Rooms   []Room      `json:"rooms"`      // Rooms is the ordered room list
	Root    merkle.Hash `json:"rootDigest"` // Root is the Merkle root of Rooms
	Version uint64      `json:"version"`    // Version counts committed mutations
}

// New returns a freshly created floor: no rooms, version 0, empty root.
func New(id, number string) State {
	return State{
		ID:      id,
		Number:  number,
		Rooms:   []Room{},
		Root:    merkle.EmptyRoot(),
		Version: 0,
	}
}

// Commit validates expectedVersion against current and, on success, returns
// the next state holding rooms, their root and the incremented version.
// current is never modified.
func Commit(current State, expectedVersion uint64, rooms []Room) (State, error) {
	if err := CheckVersion(current, expectedVersion); err != nil {
		return State{}, err
	}

	tree, err := BuildTree(rooms)
	if err != nil {
		return State{}, err
	}

	return State{
		ID:      current.ID,
		Number:  current.Number,
		Rooms:   cloneRooms(rooms),
		Root:    tree.Root(),
		Version: current.Version + 1,
	}, nil
}

// Tree rebuilds the Merkle tree of the state's rooms.
func (s State) Tree() (*merkle.Tree, error) {
	return BuildTree(s.Rooms)
}

// Validate checks that Root matches the rooms. Audits and snapshot imports call it
// on states they did not commit themselves.
func (s State) Validate() error {
	tree, err := s.Tree()
	if err != nil {
		return fmt.Errorf("floor %s:\n%w", s.ID, err)
	}

	if tree.Root() != s.Root {
		return fmt.Errorf("floor %s: stored %s, computed %s: %w", s.ID, s.Root, tree.Root(), ErrRootMismatch)
	}

	return nil
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	s.Rooms = cloneRooms(s.Rooms)
	return s
}
