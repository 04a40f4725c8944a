// Package pebblestore persists floor states in the local pebble key-value store.
package pebblestore

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/storage"
	"RoomLedger/internal/store"
)

const (
	// lockStripes bounds the number of per-floor mutexes.
	lockStripes = 64
)

// floorKeyPrefix is the Pebble key prefix for floor entries.
var floorKeyPrefix = []byte("f:")

// Compile-time contract assertions.
var (
	_ store.Store    = (*Store)(nil)
	_ store.Replacer = (*Store)(nil)
)

// Store keeps one FlatBuffers-encoded floor per key.
// The version check and write of CompareAndSwap run under the floor's stripe lock;
// tree construction happens in the caller, outside the lock.
type Store struct {
	db    *storage.Storage        // db is the underlying Pebble storage
	seed  maphash.Seed            // seed picks lock stripes
	locks [lockStripes]sync.Mutex // locks serialize check-and-write per floor
}

// New creates a floor store backed by db. Close closes db.
func New(db *storage.Storage) *Store {
	return &Store{db: db, seed: maphash.MakeSeed()}
}

// lockFor returns the stripe mutex guarding a floor.
func (s *Store) lockFor(id string) *sync.Mutex {
	return &s.locks[maphash.String(s.seed, id)%lockStripes]
}

// makeKey builds the Pebble key for a floor: "f:" + id bytes.
func makeKey(id string) []byte {
	key := make([]byte, len(floorKeyPrefix)+len(id))
	copy(key, floorKeyPrefix)
	copy(key[len(floorKeyPrefix):], id)

	return key
}

// load reads and decodes a floor. Returns store.ErrNotFound if missing.
func (s *Store) load(id string) (floor.State, error) {
	data, err := s.db.Get(makeKey(id))
	if err != nil {
		return floor.State{}, fmt.Errorf("read floor %s:\n%w", id, err)
	}

	if data == nil {
		return floor.State{}, store.ErrNotFound
	}

	state, err := store.UnmarshalFloor(data)
	if err != nil {
		return floor.State{}, fmt.Errorf("decode floor %s:\n%w", id, err)
	}

	return state, nil
}

// Create implements store.Store.
func (s *Store) Create(_ context.Context, f floor.State) error {
	mu := s.lockFor(f.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.db.Get(makeKey(f.ID))
	if err != nil {
		return fmt.Errorf("read floor %s:\n%w", f.ID, err)
	}

	if existing != nil {
		return store.ErrExists
	}

	return s.db.Set(makeKey(f.ID), store.MarshalFloor(f))
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, id string) (floor.State, error) {
	return s.load(id)
}

// List implements store.Store. Keys iterate in lexicographic order, so floors come out sorted by ID.
func (s *Store) List(_ context.Context) ([]floor.State, error) {
	var floors []floor.State

	err := s.db.IteratePrefix(floorKeyPrefix, func(key, value []byte) error {
		state, err := store.UnmarshalFloor(value)
		if err != nil {
			return fmt.Errorf("decode floor %s:\n%w", key[len(floorKeyPrefix):], err)
		}

		floors = append(floors, state)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return floors, nil
}

// CompareAndSwap implements store.Store.
func (s *Store) CompareAndSwap(_ context.Context, expectedVersion uint64, next floor.State) error {
	if err := store.CheckSwap(expectedVersion, next); err != nil {
		return err
	}

	encoded := store.MarshalFloor(next)

	mu := s.lockFor(next.ID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.load(next.ID)
	if err != nil {
		return err
	}

	if current.Version != expectedVersion {
		return store.Stale(next.ID, expectedVersion, current.Version)
	}

	return s.db.Set(makeKey(next.ID), encoded)
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, id string) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.db.Get(makeKey(id))
	if err != nil {
		return fmt.Errorf("read floor %s:\n%w", id, err)
	}

	if existing == nil {
		return store.ErrNotFound
	}

	return s.db.Delete(makeKey(id))
}

// Replace implements store.Replacer. The deletes and writes go out as one pebble batch
// while every stripe lock is held.
func (s *Store) Replace(_ context.Context, floors []floor.State) error {
	for i := range s.locks {
		s.locks[i].Lock()
	}

	defer func() {
		for i := range s.locks {
			s.locks[i].Unlock()
		}
	}()

	var batch storage.Batch

	err := s.db.IteratePrefix(floorKeyPrefix, func(key, _ []byte) error {
		batch.Deletes = append(batch.Deletes, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan floors:\n%w", err)
	}

	for _, f := range floors {
		batch.Sets = append(batch.Sets, storage.KeyValue{Key: makeKey(f.ID), Value: store.MarshalFloor(f)})
	}

	if err := s.db.Apply(batch); err != nil {
		return fmt.Errorf("apply restore batch:\n%w", err)
	}

	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(context.Context) error {
	_, err := s.db.Get(floorKeyPrefix)
	return err
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
