package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"RoomLedger/internal/api"
	"RoomLedger/internal/ledger"
	"RoomLedger/internal/logger"
	"RoomLedger/internal/metrics"
	"RoomLedger/internal/snapshot"
	"RoomLedger/internal/storage"
	"RoomLedger/internal/store"
	"RoomLedger/internal/store/pebblestore"
	"RoomLedger/internal/store/redisstore"
	"RoomLedger/internal/store/sqlstore"
)

const (
	// openTimeout bounds connecting to remote stores and archives.
	openTimeout = 10 * time.Second

	// shutdownExportTimeout bounds the final snapshot on shutdown.
	shutdownExportTimeout = 30 * time.Second
)

// Node represents a running roomledger server.
type Node struct {
	cfg         *Config
	store       store.Store
	metrics     *metrics.Metrics
	ledger      *ledger.Service
	archive     snapshot.Archive // archive is nil without -archive
	snapshotter *snapshot.Snapshotter
	api         *api.Server
}

// NewNode opens the store and archive, restores and audits, and prepares the API.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg, metrics: metrics.New()}

	if err := n.initStore(); err != nil {
		return nil, err
	}

	if err := n.initArchive(); err != nil {
		n.Close()
		return nil, err
	}

	n.snapshotter = snapshot.NewSnapshotter(n.store, n.archive, n.metrics)

	if err := n.restore(); err != nil {
		n.Close()
		return nil, err
	}

	n.ledger = ledger.New(n.store, n.metrics)

	if err := n.audit(); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(cfg.HTTPAddress, n.ledger, n.metrics.Handler())

	return n, nil
}

// initStore opens the configured floor store.
func (n *Node) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	s, err := openStore(ctx, n.cfg)
	if err != nil {
		return fmt.Errorf("init %s store:\n%w", n.cfg.Store, err)
	}

	n.store = s

	return nil
}

// openStore builds the store selected by cfg.Store.
func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.Store {
	case storePebble:
		if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory:\n%w", err)
		}

		db, err := storage.Open(filepath.Join(cfg.DataPath, "db"), pebbleOptions(cfg))
		if err != nil {
			return nil, err
		}

		return pebblestore.New(db), nil

	case storeSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataPath, "roomledger.db")
		}

		return sqlstore.Open(ctx, sqlstore.SQLite, dsn)

	case storePostgres:
		return sqlstore.Open(ctx, sqlstore.Postgres, cfg.DSN)

	case storeRedis:
		return redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

	case storeMemory:
		return store.NewMemory(), nil
	}

	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// pebbleOptions returns the storage options of the pebble store.
// An acknowledged commit must survive a crash, or a version could be reissued.
func pebbleOptions(cfg *Config) storage.Options {
	return storage.Options{SyncWrites: cfg.SyncWrites}
}

// initArchive opens the snapshot archive when one is configured.
func (n *Node) initArchive() error {
	if n.cfg.Archive == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	a, err := snapshot.OpenArchive(ctx, n.cfg.Archive, snapshot.S3Config{
		Region:    n.cfg.S3Region,
		Endpoint:  n.cfg.S3Endpoint,
		PathStyle: n.cfg.S3Endpoint != "",
	})
	if err != nil {
		return fmt.Errorf("init archive:\n%w", err)
	}

	n.archive = a

	return nil
}

// restore loads the -restore source into the store: "latest" or "archive:<name>"
// read from the configured archive, anything else is a local snapshot file.
func (n *Node) restore() error {
	src := n.cfg.RestorePath
	if src == "" {
		return nil
	}

	ctx := context.Background()

	var (
		meta snapshot.Meta
		err  error
	)

	switch {
	case src == restoreLatest:
		meta, err = n.snapshotter.RestoreLatest(ctx)
	case strings.HasPrefix(src, restoreArchivePrefix):
		meta, err = n.snapshotter.Restore(ctx, strings.TrimPrefix(src, restoreArchivePrefix))
	default:
		var data []byte

		data, err = os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read snapshot:\n%w", err)
		}

		meta, err = n.snapshotter.RestoreBytes(ctx, data)
	}

	if err != nil {
		return fmt.Errorf("restore %s:\n%w", src, err)
	}

	logger.Info("restored snapshot on boot",
		"source", src,
		"floors", meta.Floors,
		"created", meta.CreatedAt,
	)

	return nil
}

// audit checks every stored root at startup. Corrupt floors are reported, not fatal.
func (n *Node) audit() error {
	report, err := n.ledger.Audit(context.Background())
	if err != nil {
		return fmt.Errorf("startup audit:\n%w", err)
	}

	if len(report.Corrupt) > 0 {
		logger.Warn("corrupt floors found at startup", "floors", report.Corrupt)
	}

	return nil
}

// Run starts the API and the snapshot loop and blocks until shutdown.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	if n.archive != nil && n.cfg.SnapshotInterval > 0 {
		n.snapshotter.Start(n.cfg.SnapshotInterval)
		logger.Info("snapshot loop started", "interval", n.cfg.SnapshotInterval)
	}

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all components. With an archive, a final snapshot is
// exported once the API no longer accepts writes.
func (n *Node) Close() error {
	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	if n.snapshotter != nil {
		n.snapshotter.Stop()

		if n.archive != nil && n.ledger != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownExportTimeout)
			if _, err := n.snapshotter.Export(ctx); err != nil {
				logger.Error("final snapshot failed", "error", err)
			}
			cancel()
		}
	}

	if n.store != nil {
		return n.store.Close()
	}

	return nil
}
