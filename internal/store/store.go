// Package store defines the persistence contract for floor states.
//
// Every implementation makes CompareAndSwap atomic: the version check and the
// write happen as one unit, so two writers holding the same expected version
// can never both succeed.
package store

import (
	"context"
	"errors"
	"fmt"

	"RoomLedger/internal/floor"
)

var (
	// ErrNotFound is returned when a floor does not exist.
	ErrNotFound = errors.New("floor not found")

	// ErrExists is returned when creating a floor whose ID is taken.
	ErrExists = errors.New("floor already exists")

	// ErrVersionSkip is returned when a CompareAndSwap value is not the
	// direct successor of the expected version.
	ErrVersionSkip = errors.New("next version must be expected version + 1")
)

// Store persists floor states.
type Store interface {
	// Create stores a new floor. Returns ErrExists if the ID is taken.
	Create(ctx context.Context, s floor.State) error

	// Get loads one floor. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (floor.State, error)

	// List returns every floor ordered by ID.
	List(ctx context.Context) ([]floor.State, error)

	// CompareAndSwap replaces the floor with next only if its stored version
	// equals expectedVersion. A mismatch yields a *floor.ConcurrencyError.
	CompareAndSwap(ctx context.Context, expectedVersion uint64, next floor.State) error

	// Delete removes a floor. Returns ErrNotFound if missing.
	Delete(ctx context.Context, id string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Replacer is implemented by stores that can swap their entire content in one atomic step.
type Replacer interface {
	// Replace drops every stored floor and stores floors in their place.
	Replace(ctx context.Context, floors []floor.State) error
}

// Restore makes floors the complete content of s. It uses Replacer when s
// implements it; otherwise it deletes and recreates floor by floor.
func Restore(ctx context.Context, s Store, floors []floor.State) error {
	if r, ok := s.(Replacer); ok {
		return r.Replace(ctx, floors)
	}

	existing, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("list floors:\n%w", err)
	}

	for _, f := range existing {
		if err := s.Delete(ctx, f.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete floor %s:\n%w", f.ID, err)
		}
	}

	for _, f := range floors {
		if err := s.Create(ctx, f); err != nil {
			return fmt.Errorf("create floor %s:\n%w", f.ID, err)
		}
	}

	return nil
}

// CheckSwap validates the arguments of a CompareAndSwap before any I/O.
func CheckSwap(expectedVersion uint64, next floor.State) error {
	if next.ID == "" {
		return fmt.Errorf("compare and swap: empty floor id")
	}

	if !floor.Follows(next, expectedVersion) {
		return fmt.Errorf("floor %s: version %d after %d: %w", next.ID, next.Version, expectedVersion, ErrVersionSkip)
	}

	return nil
}

// Stale builds the conflict error for a floor whose stored version is actual.
func Stale(id string, expected, actual uint64) error {
	return &floor.ConcurrencyError{FloorID: id, Expected: expected, Actual: actual}
}
