package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rampartdb/rampart/db"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/health"
	"github.com/rampartdb/rampart/pkg/resilient"
)

func handleWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)

	cf := registerCommonFlags(fs)
	interval := fs.Duration("interval", 15*time.Second, "Time between health probes")
	metricsAddr := fs.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	fs.Usage = func() {
		fmt.Printf(`Monitor database health continuously

One status line per component is printed every interval until interrupted.
A lost connection is re-established under circuit breaker pacing, so a
database that comes back is picked up automatically. With --metrics-addr
the collected Prometheus metrics are served over HTTP while watching.

Usage:
  rampart-admin watch [options]

Options:
  --config string        Path to TOML configuration file (default: config.toml)
  --dsn string           PostgreSQL connection string (overrides config)
  --interval duration    Time between health probes (default: 15s)
  --metrics-addr string  Serve Prometheus metrics on this address

Examples:
  rampart-admin watch
  rampart-admin watch --interval 5s
  rampart-admin watch --metrics-addr :9090
`)
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	cfg := loadConfig(fs, cf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := db.New(&cfg.Database)
	rdb := resilient.NewResilientDatabase(database, &cfg.Database)
	if err := rdb.Connect(ctx); err != nil {
		logger.Warnf("[ADMIN] initial connection failed, watching anyway: %v", err)
	}
	defer rdb.Disconnect()

	if *metricsAddr != "" {
		database.StartPoolMetrics(ctx)
		go serveMetrics(*metricsAddr)
	}

	monitor := health.NewMonitor()
	health.RegisterDatabaseChecks(monitor, rdb)

	fmt.Printf("Watching database health every %v (ctrl-c to stop)\n\n", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		// A probing fetch re-establishes a lost connection under breaker
		// pacing; the health check itself only observes.
		if !rdb.IsConnected() {
			rdb.FetchScalar(ctx, "SELECT 1")
		}

		monitor.RunNow(ctx)
		printSnapshot(monitor)

		select {
		case <-ctx.Done():
			fmt.Println("Stopped")
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Infof("[ADMIN] serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[ADMIN] metrics server failed: %v", err)
	}
}

func printSnapshot(monitor *health.Monitor) {
	now := time.Now().Format("15:04:05")

	for _, snap := range monitor.Snapshot() {
		line := fmt.Sprintf("%s  %-26s %-10s", now, snap.Name, snap.Status)
		if snap.LastError != "" {
			line += "  " + snap.LastError
		}
		fmt.Println(line)
	}

	fmt.Printf("%s  %-26s %-10s\n\n", now, "overall", monitor.OverallStatus())
}
