package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"

	"github.com/rampartdb/rampart/pkg/resilient"
)

func handleSelftest() {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)

	cf := registerCommonFlags(fs)
	keep := fs.Bool("keep-table", false, "Keep the scratch table after the run")

	fs.Usage = func() {
		fmt.Printf(`Exercise every facade operation against the live database

A uniquely named scratch table is created, written through every facade
operation (statement, batch, fetch variants, transaction and session
scopes), verified and dropped. Exits 1 when any step fails.

Usage:
  rampart-admin selftest [options]

Options:
  --config string  Path to TOML configuration file (default: config.toml)
  --dsn string     PostgreSQL connection string (overrides config)
  --keep-table     Keep the scratch table after the run

Examples:
  rampart-admin selftest
  rampart-admin selftest --dsn postgres://rampart@localhost:5432/rampart
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	cfg := loadConfig(fs, cf)

	ctx := context.Background()
	rdb, err := connect(ctx, cfg)
	if err != nil {
		fmt.Printf("Self-test failed: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Disconnect()

	table := fmt.Sprintf("rampart_selftest_%d", time.Now().Unix())
	failures := 0

	step := func(name string, result resilient.Result) {
		if result.Failed() {
			failures++
			fmt.Printf("  FAIL %-14s %v\n", name, result.Err)
			return
		}
		fmt.Printf("  ok   %-14s %v (retries: %d)\n",
			name, result.ExecutionTime.Round(time.Microsecond), result.RetryCount)
	}

	fmt.Printf("Running self-test (scratch table %s)\n\n", table)

	step("execute", rdb.Execute(ctx,
		fmt.Sprintf("CREATE TABLE %s (id BIGINT PRIMARY KEY, note TEXT)", table)))

	step("execute_many", rdb.ExecuteMany(ctx,
		fmt.Sprintf("INSERT INTO %s (id, note) VALUES ($1, $2)", table),
		[][]any{{int64(1), "alpha"}, {int64(2), "beta"}, {int64(3), "gamma"}}))

	step("fetch", rdb.Fetch(ctx,
		fmt.Sprintf("SELECT id, note FROM %s ORDER BY id", table)))

	step("fetch_one", rdb.FetchOne(ctx,
		fmt.Sprintf("SELECT note FROM %s WHERE id = $1", table), int64(2)))

	step("fetch_scalar", rdb.FetchScalar(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", table)))

	step("transaction", rdb.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf("UPDATE %s SET note = 'delta' WHERE id = $1", table), int64(3))
		return err
	}))

	step("session", rdb.WithSession(ctx, func(tx *gorm.DB) error {
		var count int64
		return tx.Table(table).Count(&count).Error
	}))

	step("health_check", rdb.HealthCheck(ctx))

	if !*keep {
		step("cleanup", rdb.Execute(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)))
	}

	fmt.Println()
	if failures > 0 {
		fmt.Printf("%d step(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Printf("All steps passed\n")
}
