package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/logger"
	"RoomLedger/internal/metrics"
	"RoomLedger/internal/store"
)

// Snapshotter exports floors of a store to an archive and restores them.
type Snapshotter struct {
	store   store.Store
	archive Archive
	metrics *metrics.Metrics // metrics may be nil
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSnapshotter creates a snapshotter. m may be nil.
func NewSnapshotter(s store.Store, a Archive, m *metrics.Metrics) *Snapshotter {
	return &Snapshotter{store: s, archive: a, metrics: m, now: time.Now}
}

// Export writes a snapshot of every floor to the archive and returns its name.
func (s *Snapshotter) Export(ctx context.Context) (name string, err error) {
	defer func() { s.metrics.Snapshot("export", err) }()

	start := time.Now()

	floors, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list floors:\n%w", err)
	}

	createdAt := s.now()

	data, err := Encode(floors, createdAt)
	if err != nil {
		return "", fmt.Errorf("encode snapshot:\n%w", err)
	}

	name = Name(createdAt)
	if err := s.archive.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("archive snapshot:\n%w", err)
	}

	logger.Info("snapshot exported", "name", name, "floors", len(floors), "bytes", len(data), logger.Timed(start))

	return name, nil
}

// Restore replaces the store content with the named archived snapshot.
func (s *Snapshotter) Restore(ctx context.Context, name string) (Meta, error) {
	data, err := s.archive.Get(ctx, name)
	if err != nil {
		s.metrics.Snapshot("import", err)
		return Meta{}, fmt.Errorf("fetch snapshot %s:\n%w", name, err)
	}

	meta, err := s.RestoreBytes(ctx, data)
	if err != nil {
		return Meta{}, fmt.Errorf("restore snapshot %s:\n%w", name, err)
	}

	logger.Info("snapshot restored", "name", name, "floors", meta.Floors, "created", meta.CreatedAt)

	return meta, nil
}

// RestoreLatest restores the newest archived snapshot.
func (s *Snapshotter) RestoreLatest(ctx context.Context) (Meta, error) {
	name, err := Latest(ctx, s.archive)
	if err != nil {
		return Meta{}, err
	}

	return s.Restore(ctx, name)
}

// RestoreBytes verifies an encoded snapshot and makes it the store's complete content.
// Nothing is written unless every floor verifies.
func (s *Snapshotter) RestoreBytes(ctx context.Context, data []byte) (meta Meta, err error) {
	defer func() { s.metrics.Snapshot("import", err) }()

	var floors []floor.State

	floors, meta, err = Decode(data)
	if err != nil {
		return Meta{}, err
	}

	if err := store.Restore(ctx, s.store, floors); err != nil {
		return Meta{}, fmt.Errorf("write floors:\n%w", err)
	}

	return meta, nil
}

// Start exports a snapshot every interval until Stop is called.
func (s *Snapshotter) Start(interval time.Duration) {
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := s.Export(ctx); err != nil {
					logger.Error("periodic snapshot failed", "error", err)
				}
				cancel()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the periodic loop and waits for an in-flight export.
func (s *Snapshotter) Stop() {
	if s.stop == nil {
		return
	}

	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}
