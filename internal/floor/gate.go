package floor

// CheckVersion is the optimistic concurrency gate.
// It returns a *ConcurrencyError when expectedVersion differs from current.Version.
func CheckVersion(current State, expectedVersion uint64) error {
	if expectedVersion != current.Version {
		return &ConcurrencyError{
			FloorID:  current.ID,
			Expected: expectedVersion,
			Actual:   current.Version,
		}
	}

	return nil
}

// Follows reports whether next is the direct successor of a state at expectedVersion.
// Stores use it to refuse writes that skip or repeat a version.
func Follows(next State, expectedVersion uint64) bool {
	return next.Version == expectedVersion+1
}
