package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
)

func handleStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	cf := registerCommonFlags(fs)

	fs.Usage = func() {
		fmt.Printf(`Print a health and pool snapshot as JSON

The snapshot carries the connection state, query counters, success rate,
circuit breaker state and pool occupancy, in the same shape HealthCheck
reports to applications.

Usage:
  rampart-admin stats [options]

Options:
  --config string  Path to TOML configuration file (default: config.toml)
  --dsn string     PostgreSQL connection string (overrides config)

Examples:
  rampart-admin stats
  rampart-admin stats --dsn postgres://rampart@localhost:5432/rampart | jq .pool
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	cfg := loadConfig(fs, cf)

	ctx := context.Background()
	rdb, err := connect(ctx, cfg)
	if err != nil {
		fmt.Printf("Database is not reachable: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Disconnect()

	result := rdb.HealthCheck(ctx)
	if result.Failed() {
		fmt.Printf("Health check failed: %v\n", result.Err)
		os.Exit(1)
	}

	raw, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode snapshot: %v", err)
	}

	fmt.Println(string(raw))
}
