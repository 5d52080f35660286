package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rampartdb/rampart/db"
)

func handleMigrate() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)

	cf := registerCommonFlags(fs)
	timeout := fs.Duration("timeout", 5*time.Minute, "Abort the schema sync after this long")

	fs.Usage = func() {
		fmt.Printf(`Synchronize the database schema

Creates or alters the tables for every managed model. The sync runs under
a cluster-wide advisory lock, so concurrent invocations serialize instead
of fighting over DDL.

Usage:
  rampart-admin migrate [options]

Options:
  --config string     Path to TOML configuration file (default: config.toml)
  --dsn string        PostgreSQL connection string (overrides config)
  --timeout duration  Abort the schema sync after this long (default: 5m)

Examples:
  rampart-admin migrate
  rampart-admin migrate --dsn postgres://rampart@localhost:5432/rampart
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	cfg := loadConfig(fs, cf)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	database := db.New(&cfg.Database)
	if err := database.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Disconnect()

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("Schema sync failed: %v", err)
	}

	fmt.Printf("Schema synchronized (%d models)\n", len(db.AllModels()))
}

func handleDropTables() {
	fs := flag.NewFlagSet("drop-tables", flag.ExitOnError)

	cf := registerCommonFlags(fs)
	force := fs.Bool("force", false, "Actually drop the tables")

	fs.Usage = func() {
		fmt.Printf(`Drop all managed tables

Destroys every table rampart manages, including all user data. Refuses to
run without --force.

Usage:
  rampart-admin drop-tables --force [options]

Options:
  --config string  Path to TOML configuration file (default: config.toml)
  --dsn string     PostgreSQL connection string (overrides config)
  --force          Actually drop the tables (required)

Examples:
  rampart-admin drop-tables --force
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	if !*force {
		fmt.Printf("Error: --force is required, this command destroys all managed data\n\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(fs, cf)

	ctx := context.Background()
	database := db.New(&cfg.Database)
	if err := database.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Disconnect()

	if err := database.DropTables(ctx); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("Dropped %d tables\n", len(db.AllModels()))
}
