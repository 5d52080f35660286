package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/pkg/resilient"
	"github.com/rampartdb/rampart/pkg/retry"
)

func handleCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)

	cf := registerCommonFlags(fs)
	wait := fs.Bool("wait", false, "Keep polling until the database is healthy or --timeout expires")
	timeout := fs.Duration("timeout", 60*time.Second, "Give up after this long (with --wait)")

	fs.Usage = func() {
		fmt.Printf(`Run a single health check against the database

The command exits 0 when the database answers a round-trip probe and 1
otherwise. With --wait it keeps polling with backoff until the database
becomes healthy or the timeout expires, which is useful in startup scripts.

Usage:
  rampart-admin check [options]

Options:
  --config string     Path to TOML configuration file (default: config.toml)
  --dsn string        PostgreSQL connection string (overrides config)
  --wait              Keep polling until healthy or --timeout expires
  --timeout duration  Give up after this long with --wait (default: 60s)

Examples:
  rampart-admin check
  rampart-admin check --dsn postgres://rampart@localhost:5432/rampart
  rampart-admin check --wait --timeout 2m
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	cfg := loadConfig(fs, cf)

	if *wait {
		waitForHealthy(cfg, *timeout)
		return
	}

	ctx := context.Background()
	rdb, err := connect(ctx, cfg)
	if err != nil {
		fmt.Printf("Database is not reachable: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Disconnect()

	result := rdb.HealthCheck(ctx)
	if result.Failed() {
		fmt.Printf("Database is not healthy: %v\n", result.Err)
		os.Exit(1)
	}

	printHealth(result)
}

func waitForHealthy(cfg *config.Config, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backoff := retry.BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	}

	var rdb *resilient.ResilientDatabase
	var result resilient.Result

	err := retry.WithRetry(ctx, backoff, func() error {
		if rdb == nil {
			conn, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			rdb = conn
		}

		result = rdb.HealthCheck(ctx)
		if result.Failed() {
			return result.Err
		}
		return nil
	})
	if rdb != nil {
		defer rdb.Disconnect()
	}
	if err != nil {
		fmt.Printf("Database did not become healthy within %v: %v\n", timeout, err)
		os.Exit(1)
	}

	printHealth(result)
}

func printHealth(result resilient.Result) {
	status := result.Data.(*resilient.HealthStatus)

	fmt.Printf("Database is healthy\n")
	fmt.Printf("  State:        %s\n", status.State)
	fmt.Printf("  Success rate: %.1f%% (%d queries, %d failed)\n",
		status.SuccessRate, status.TotalQueries, status.FailedQueries)
	fmt.Printf("  Reconnects:   %d\n", status.TotalReconnections)
	if status.Pool != nil {
		fmt.Printf("  Pool:         %d/%d connections in use, %d idle\n",
			status.Pool.AcquiredConns, status.Pool.MaxConns, status.Pool.IdleConns)
	}
}
