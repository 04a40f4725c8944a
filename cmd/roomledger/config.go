package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Store backends selectable with -store.
const (
	storePebble   = "pebble"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeRedis    = "redis"
	storeMemory   = "memory"
)

// Archive sources accepted by -restore besides a file path.
const (
	restoreLatest        = "latest"
	restoreArchivePrefix = "archive:"
)

// Config holds the server configuration.
type Config struct {
	// DataPath is the directory for the pebble database.
	DataPath string

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string

	// Store selects the floor store backend.
	Store string

	// SyncWrites makes every pebble commit wait for the WAL before it is acknowledged.
	SyncWrites bool

	// DSN is the database connection string for sqlite and postgres.
	// Empty selects a file under DataPath for sqlite and a local server for postgres.
	DSN string

	// RedisAddr is the Redis host:port for the redis store.
	RedisAddr string

	// RedisPassword is the optional Redis password.
	RedisPassword string

	// RedisDB is the logical Redis database index.
	RedisDB int

	// SnapshotInterval is the period of automatic exports. Zero disables them.
	SnapshotInterval time.Duration

	// Archive is the snapshot location, "dir:<path>" or "s3://bucket/prefix".
	Archive string

	// S3Region and S3Endpoint configure S3 archives.
	S3Region   string
	S3Endpoint string

	// RestorePath is the snapshot loaded into the store on boot: a file path,
	// "latest" or "archive:<name>" from Archive.
	RestorePath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// parseFlags parses command-line arguments into Config.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("roomledger", flag.ContinueOnError)
	fs.StringVar(&cfg.DataPath, "data", "./data", "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", ":8080", "HTTP API address")
	fs.StringVar(&cfg.Store, "store", storePebble, "Floor store: pebble, sqlite, postgres, redis or memory")
	fs.BoolVar(&cfg.SyncWrites, "sync-writes", true, "Sync the pebble WAL on every commit")
	fs.StringVar(&cfg.DSN, "dsn", "", "Database DSN for sqlite and postgres")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database index")
	fs.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", 0, "Automatic snapshot period (0 disables)")
	fs.StringVar(&cfg.Archive, "archive", "", "Snapshot archive: dir:<path> or s3://bucket/prefix")
	fs.StringVar(&cfg.S3Region, "s3-region", "", "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", "", "S3 endpoint for compatible servers")
	fs.StringVar(&cfg.RestorePath, "restore", "", "Snapshot to restore on boot: file path, latest or archive:<name>")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return cfg, nil
}

// validate checks the configuration before any resource is opened.
func (c *Config) validate() error {
	if c.HTTPAddress == "" {
		return errors.New("http address required")
	}

	switch c.Store {
	case storePebble:
		if c.DataPath == "" {
			return errors.New("pebble store requires -data")
		}
	case storeSQLite:
		if c.DSN == "" && c.DataPath == "" {
			return errors.New("sqlite store requires -dsn or -data")
		}
	case storePostgres:
	case storeRedis:
		if c.RedisAddr == "" {
			return errors.New("redis store requires -redis-addr")
		}

		if c.RedisDB < 0 {
			return fmt.Errorf("invalid redis db %d", c.RedisDB)
		}
	case storeMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	if c.SnapshotInterval < 0 {
		return fmt.Errorf("negative snapshot interval %s", c.SnapshotInterval)
	}

	if c.SnapshotInterval > 0 && c.Archive == "" {
		return errors.New("-snapshot-interval requires -archive")
	}

	fromArchive := c.RestorePath == restoreLatest || strings.HasPrefix(c.RestorePath, restoreArchivePrefix)
	if fromArchive && c.Archive == "" {
		return fmt.Errorf("-restore %s requires -archive", c.RestorePath)
	}

	if c.RestorePath == restoreArchivePrefix {
		return errors.New("-restore archive: needs a snapshot name")
	}

	return nil
}
