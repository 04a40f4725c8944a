package floor

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleVersion is returned when the caller's expected version does not
	// match the stored one. The caller must reload the floor and retry.
	ErrStaleVersion = errors.New("stale floor version")

	// ErrMalformedRecord is returned when a room cannot be canonically encoded.
	ErrMalformedRecord = errors.New("malformed room record")

	// ErrRoomIndex is returned when a mutation targets a missing room position.
	ErrRoomIndex = errors.New("room index out of range")

	// ErrRootMismatch is returned when a stored root does not match its rooms.
	ErrRootMismatch = errors.New("root does not match rooms")
)

// ConcurrencyError describes an optimistic concurrency conflict.
type ConcurrencyError struct {
	FloorID  string // FloorID is the floor being mutated
	Expected uint64 // Expected is the version the caller supplied
	Actual   uint64 // Actual is the version currently stored
}

// Error implements error.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("floor %s: expected version %d, current version %d: %v",
		e.FloorID, e.Expected, e.Actual, ErrStaleVersion)
}

// Unwrap lets errors.Is match ErrStaleVersion.
func (e *ConcurrencyError) Unwrap() error {
	return ErrStaleVersion
}

// RecordError describes why one room failed canonical encoding.
type RecordError struct {
	Index  int    // Index is the room position in its list, -1 when encoded alone
	Field  string // Field is the offending field name
	Reason string // Reason is a short human description
}

// Error implements error.
func (e *RecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s %s", ErrMalformedRecord, e.Field, e.Reason)
	}

	return fmt.Sprintf("%v: room %d: %s %s", ErrMalformedRecord, e.Index, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}
