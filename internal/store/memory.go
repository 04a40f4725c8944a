package store

import (
	"context"
	"sort"
	"sync"

	"RoomLedger/internal/floor"
)

// Compile-time contract assertions.
var (
	_ Store    = (*Memory)(nil)
	_ Replacer = (*Memory)(nil)
)

// Memory is a process-local Store guarded by a single mutex.
// Values are deep-copied on the way in and out.
type Memory struct {
	mu     sync.Mutex
	floors map[string]floor.State
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{floors: make(map[string]floor.State)}
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, s floor.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.floors[s.ID]; ok {
		return ErrExists
	}

	m.floors[s.ID] = s.Clone()

	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, id string) (floor.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.floors[id]
	if !ok {
		return floor.State{}, ErrNotFound
	}

	return s.Clone(), nil
}

// List implements Store.
func (m *Memory) List(_ context.Context) ([]floor.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]floor.State, 0, len(m.floors))
	for _, s := range m.floors {
		out = append(out, s.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// CompareAndSwap implements Store.
func (m *Memory) CompareAndSwap(_ context.Context, expectedVersion uint64, next floor.State) error {
	if err := CheckSwap(expectedVersion, next); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.floors[next.ID]
	if !ok {
		return ErrNotFound
	}

	if current.Version != expectedVersion {
		return Stale(next.ID, expectedVersion, current.Version)
	}

	m.floors[next.ID] = next.Clone()

	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.floors[id]; !ok {
		return ErrNotFound
	}

	delete(m.floors, id)

	return nil
}

// Replace implements Replacer.
func (m *Memory) Replace(_ context.Context, floors []floor.State) error {
	fresh := make(map[string]floor.State, len(floors))
	for _, s := range floors {
		fresh[s.ID] = s.Clone()
	}

	m.mu.Lock()
	m.floors = fresh
	m.mu.Unlock()

	return nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
