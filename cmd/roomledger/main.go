package main

import (
	"fmt"
	"os"

	"RoomLedger/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger.Init(level)

	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config:\n%w", err)
	}

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg)

	return node.Run()
}

// printStartupInfo displays the configuration at startup.
func printStartupInfo(cfg *Config) {
	logger.Info("starting roomledger",
		"http", cfg.HTTPAddress,
		"store", cfg.Store,
		"archive", cfg.Archive,
		"snapshot_interval", cfg.SnapshotInterval,
	)
}
