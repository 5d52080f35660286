package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/db"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/resilient"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		handleCheck()
	case "selftest":
		handleSelftest()
	case "stats":
		handleStats()
	case "watch":
		handleWatch()
	case "migrate":
		handleMigrate()
	case "drop-tables":
		handleDropTables()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`RAMPART Admin Tool

Usage:
  rampart-admin <command> [options]

Commands:
  check        Run a single health check against the database
  selftest     Exercise every facade operation against the live database
  stats        Print a health and pool snapshot as JSON
  watch        Monitor database health continuously
  migrate      Synchronize the database schema
  drop-tables  Drop all managed tables (requires --force)
  help         Show this help message

Examples:
  rampart-admin check --dsn postgres://rampart@localhost:5432/rampart
  rampart-admin check --wait --timeout 60s
  rampart-admin watch --interval 10s --metrics-addr :9090
  rampart-admin migrate --config /etc/rampart/config.toml

Use 'rampart-admin <command> --help' for more information about a command.
`)
}

// commonFlags are the flags every subcommand carries.
type commonFlags struct {
	configPath *string
	dsn        *string
}

func registerCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "config.toml", "Path to TOML configuration file"),
		dsn:        fs.String("dsn", "", "PostgreSQL connection string (overrides config and DATABASE_URL)"),
	}
}

// loadConfig reads the TOML file, applies environment and flag overrides,
// validates the result and initializes logging. A missing default config
// file is tolerated; a missing explicitly requested one is fatal.
func loadConfig(fs *flag.FlagSet, cf commonFlags) *config.Config {
	cfg := config.NewDefaultConfig()

	if _, err := toml.DecodeFile(*cf.configPath, &cfg); err != nil {
		if os.IsNotExist(err) {
			if isFlagSet(fs, "config") {
				log.Fatalf("Configuration file '%s' not found", *cf.configPath)
			}
		} else {
			log.Fatalf("Error parsing configuration file '%s': %v", *cf.configPath, err)
		}
	}

	cfg.ApplyEnv()
	if isFlagSet(fs, "dsn") {
		cfg.Database.DSN = *cf.dsn
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if _, err := logger.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	return &cfg
}

// connect builds the resilient facade and establishes the pool.
func connect(ctx context.Context, cfg *config.Config) (*resilient.ResilientDatabase, error) {
	rdb := resilient.NewResilientDatabase(db.New(&cfg.Database), &cfg.Database)
	if err := rdb.Connect(ctx); err != nil {
		return nil, err
	}

	return rdb, nil
}

// isFlagSet reports whether a flag was explicitly set on the command line.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	isSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}
