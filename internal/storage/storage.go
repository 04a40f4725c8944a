package storage

import (
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// defaultCacheSize is the default block cache size.
	defaultCacheSize = 32 << 20 // 32 MB
)

// Options tunes a Storage instance. Zero values select defaults.
type Options struct {
	SyncInterval time.Duration // SyncInterval is the period of background WAL syncs
	CacheSize    int64         // CacheSize is the pebble block cache size in bytes
	SyncWrites   bool          // SyncWrites makes every batch commit wait for the WAL
}

// KeyValue represents a key-value pair for batch operations.
type KeyValue struct {
	Key   []byte // Key is the key to store
	Value []byte // Value is the value to store
}

// Batch is a set of writes and deletes applied atomically.
type Batch struct {
	Sets    []KeyValue // Sets are stored in order, after Deletes
	Deletes [][]byte   // Deletes are applied first
}

// Storage provides a key-value store backed by Pebble.
// Unless SyncWrites is set, writes are NoSync and a background goroutine
// periodically syncs the WAL to disk.
type Storage struct {
	db         *pebble.DB           // db is the underlying Pebble database
	writeOpts  *pebble.WriteOptions // writeOpts is NoSync unless SyncWrites was set
	stopSync   chan struct{}        // stopSync signals the sync goroutine to stop
	wg         sync.WaitGroup
	syncPeriod time.Duration // syncPeriod is the background WAL sync interval
}

// New creates a Storage at path with default options.
func New(path string) (*Storage, error) {
	return Open(path, Options{})
}

// Open creates a Storage at path with the given options.
func Open(path string, o Options) (*Storage, error) {
	if o.SyncInterval <= 0 {
		o.SyncInterval = defaultSyncInterval
	}

	if o.CacheSize <= 0 {
		o.CacheSize = defaultCacheSize
	}

	cache := pebble.NewCache(o.CacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                16 << 20, // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		db:         db,
		writeOpts:  pebble.NoSync,
		stopSync:   make(chan struct{}),
		syncPeriod: o.SyncInterval,
	}

	if o.SyncWrites {
		s.writeOpts = pebble.Sync
	}

	s.startSyncLoop()

	return s, nil
}

// Get retrieves the value for the given key.
// Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Set stores a key-value pair.
func (s *Storage) Set(key, value []byte) error {
	return s.db.Set(key, value, s.writeOpts)
}

// Delete removes a key from the store.
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key, s.writeOpts)
}

// Apply commits a batch atomically: either every write and delete lands or none.
// Deletes are applied before sets, so a key present in both ends up set.
func (s *Storage) Apply(b Batch) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, key := range b.Deletes {
		if err := batch.Delete(key, nil); err != nil {
			return err
		}
	}

	for _, kv := range b.Sets {
		if err := batch.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}

	return batch.Commit(s.writeOpts)
}

// IteratePrefix calls fn for each key-value pair with the given prefix.
// Keys are visited in lexicographic order. fn must copy anything it keeps.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil // all 0xFF: unbounded
}

// Close stops the sync goroutine and closes the database.
// It performs a final sync before closing.
func (s *Storage) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Storage) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.syncPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Storage) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
