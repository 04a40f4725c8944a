// Package redisstore persists floor states in Redis.
//
// Each floor is one key holding its FlatBuffers encoding; a set indexes the IDs.
// CompareAndSwap uses WATCH/MULTI/EXEC so the version check and the write
// commit together or not at all.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/store"
)

const (
	// defaultPrefix namespaces every key written by the store.
	defaultPrefix = "roomledger:"

	// maxWatchRetries bounds re-reads after a WATCH abort.
	maxWatchRetries = 16
)

// Compile-time contract assertion.
var _ store.Store = (*Store)(nil)

// Config holds the Redis connection parameters.
type Config struct {
	Addr     string // Addr is host:port
	Password string // Password is optional
	DB       int    // DB is the logical database index
	Prefix   string // Prefix namespaces keys, default "roomledger:"
}

// Store is a Redis-backed floor store.
type Store struct {
	client *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s:\n%w", cfg.Addr, err)
	}

	return New(client, cfg.Prefix), nil
}

// New wraps an existing client. An empty prefix selects the default.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Store{client: client, prefix: prefix}
}

// floorKey returns the key holding one floor.
func (s *Store) floorKey(id string) string {
	return s.prefix + "floor:" + id
}

// indexKey returns the key of the floor ID set.
func (s *Store) indexKey() string {
	return s.prefix + "floors"
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, f floor.State) error {
	var created *redis.BoolCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, s.floorKey(f.ID), store.MarshalFloor(f), 0)
		pipe.SAdd(ctx, s.indexKey(), f.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create floor %s:\n%w", f.ID, err)
	}

	if !created.Val() {
		return store.ErrExists
	}

	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (floor.State, error) {
	data, err := s.client.Get(ctx, s.floorKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return floor.State{}, store.ErrNotFound
	}
	if err != nil {
		return floor.State{}, fmt.Errorf("get floor %s:\n%w", id, err)
	}

	f, err := store.UnmarshalFloor(data)
	if err != nil {
		return floor.State{}, fmt.Errorf("decode floor %s:\n%w", id, err)
	}

	return f, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context) ([]floor.State, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list floor ids:\n%w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.floorKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load floors:\n%w", err)
	}

	floors := make([]floor.State, 0, len(values))
	for i, v := range values {
		// Deleted between SMEMBERS and MGET.
		if v == nil {
			continue
		}

		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("floor %s: unexpected value type %T", ids[i], v)
		}

		f, err := store.UnmarshalFloor([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("decode floor %s:\n%w", ids[i], err)
		}

		floors = append(floors, f)
	}

	return floors, nil
}

// CompareAndSwap implements store.Store.
func (s *Store) CompareAndSwap(ctx context.Context, expectedVersion uint64, next floor.State) error {
	if err := store.CheckSwap(expectedVersion, next); err != nil {
		return err
	}

	key := s.floorKey(next.ID)
	encoded := store.MarshalFloor(next)

	swap := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := store.UnmarshalFloor(data)
		if err != nil {
			return fmt.Errorf("decode floor %s:\n%w", next.ID, err)
		}

		if current.Version != expectedVersion {
			return store.Stale(next.ID, expectedVersion, current.Version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})

		return err
	}

	// An aborted EXEC means someone wrote the key; re-reading turns that into a stale error.
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, swap, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("floor %s: compare and swap gave up after %d watch aborts", next.ID, maxWatchRetries)
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, s.floorKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete floor %s:\n%w", id, err)
	}

	if removed.Val() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
