// Package resilient layers retry, circuit-breaker and health-reporting
// policy over the db connection manager.
//
// Every facade operation returns a Result instead of surfacing its failure:
// callers branch on Result.Failed and read Result.Data, and no database
// fault crosses the package boundary as a panic. Connect is the one
// deliberate exception; it runs at startup, outside the retry contract,
// and the caller decides whether to abort or run degraded.
//
// # Architecture
//
//	┌──────────────────────┐
//	│  ResilientDatabase   │
//	├──────────────────────┤
//	│ - Circuit Breaker    │   reconnect gate
//	│ - Retry Loop         │   jittered exponential backoff
//	│ - Query Facade       │   Execute / Fetch / FetchOne / ...
//	│ - Scoped Tx/Session  │   commit-or-rollback guarantees
//	│ - Health Reporter    │   state + metrics snapshot
//	└──────────┬───────────┘
//	           │
//	    ┌──────▼──────┐
//	    │ db.Database │   state machine, pgx pool + ORM engine
//	    └─────────────┘
//
// # Usage
//
//	database := db.New(&cfg.Database)
//	rdb := resilient.NewResilientDatabase(database, &cfg.Database)
//	if err := rdb.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer rdb.Disconnect()
//
//	result := rdb.FetchOne(ctx, "SELECT nickname FROM users WHERE user_id = $1", userID)
//	if result.Failed() {
//		return result.Err
//	}
//
// # Retry behavior
//
// Each operation runs up to max_retries times. Before every attempt the
// connection is re-checked; a lost connection is re-established at most
// once per call, paced by the circuit breaker so a dead database is not
// hammered with dials. Transient failures (connection drops, pool
// exhaustion, deadlocks) sleep min(2^attempt + jitter, 10s) and run again;
// statement-level errors fail on the first attempt.
//
// Scoped accessors (WithTransaction, WithSession, WithSessionTransaction)
// are never retried: caller callbacks are not assumed to be safely
// re-runnable.
package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/db"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/circuitbreaker"
	"github.com/rampartdb/rampart/pkg/metrics"
	"github.com/rampartdb/rampart/pkg/retry"
)

// backend is the connection-manager surface the orchestrator drives.
// *db.Database satisfies it.
type backend interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	State() db.ConnectionState
	MarkDisconnected()
	TestConnection(ctx context.Context) bool
	CommandTimeout() time.Duration
	Pool() *pgxpool.Pool
	Stat() *pgxpool.Stat
	Metrics() *db.ConnectionMetrics
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
	WithSession(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithSessionTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var _ backend = (*db.Database)(nil)

// operationBackoff paces in-call retries: 1s, 2s, 4s and so on, plus up to
// a tenth of the base term as jitter, capped at 10s.
var operationBackoff = retry.BackoffConfig{
	InitialInterval: 1 * time.Second,
	MaxInterval:     10 * time.Second,
	Multiplier:      2.0,
	Jitter:          true,
}

// ResilientDatabase wraps a db.Database with the retry and circuit-breaker
// policy. It is safe for concurrent use.
type ResilientDatabase struct {
	db      backend
	breaker *circuitbreaker.CircuitBreaker
	cfg     *config.DatabaseConfig
	backoff retry.BackoffConfig
}

// NewResilientDatabase builds the resilient facade over an existing
// database handle. No connection is made; call Connect or let the first
// operation connect lazily.
func NewResilientDatabase(database *db.Database, cfg *config.DatabaseConfig) *ResilientDatabase {
	return newWithBackend(database, cfg)
}

func newWithBackend(b backend, cfg *config.DatabaseConfig) *ResilientDatabase {
	settings := circuitbreaker.Settings{
		Name:      "database",
		Threshold: cfg.GetCircuitBreakerThreshold(),
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("[RESILIENT] circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())

			if to == circuitbreaker.StateOpen {
				metrics.DBCircuitBreakerState.WithLabelValues("open").Set(1)
				metrics.DBCircuitBreakerState.WithLabelValues("closed").Set(0)
			} else {
				metrics.DBCircuitBreakerState.WithLabelValues("open").Set(0)
				metrics.DBCircuitBreakerState.WithLabelValues("closed").Set(1)
			}
		},
	}
	if cooldown, err := cfg.GetCircuitBreakerCooldown(); err == nil {
		settings.Cooldown = cooldown
	}

	metrics.DBCircuitBreakerState.WithLabelValues("open").Set(0)
	metrics.DBCircuitBreakerState.WithLabelValues("closed").Set(1)

	return &ResilientDatabase{
		db:      b,
		breaker: circuitbreaker.NewCircuitBreaker(settings),
		cfg:     cfg,
		backoff: operationBackoff,
	}
}

// Connect establishes the underlying pool and engine. Startup code calls
// this once; afterwards the orchestrator reconnects on demand.
func (rd *ResilientDatabase) Connect(ctx context.Context) error {
	return rd.db.Connect(ctx)
}

// Disconnect tears down the underlying pool and engine. Idempotent.
func (rd *ResilientDatabase) Disconnect() error {
	return rd.db.Disconnect()
}

// IsConnected reports whether the underlying handle is usable.
func (rd *ResilientDatabase) IsConnected() bool {
	return rd.db.IsConnected()
}

// State returns the lifecycle state of the underlying handle.
func (rd *ResilientDatabase) State() db.ConnectionState {
	return rd.db.State()
}

// BreakerState returns the circuit breaker state without the half-open
// side effects of a gating read.
func (rd *ResilientDatabase) BreakerState() circuitbreaker.State {
	return rd.breaker.State()
}

// ensureConnected gets the backend into a usable state before an operation
// runs. The breaker fast-fails while a recent string of reconnect failures
// is cooling down; otherwise a reconnect is attempted at most once and its
// raw error never crosses this boundary unwrapped.
func (rd *ResilientDatabase) ensureConnected(ctx context.Context) error {
	if rd.breaker.IsOpen() {
		return circuitbreaker.ErrCircuitOpen
	}

	if rd.db.IsConnected() {
		return nil
	}

	logger.Warn("[RESILIENT] database not connected, attempting reconnection...")

	if err := rd.db.Connect(ctx); err != nil {
		rd.breaker.RecordFailure()
		metrics.DBCircuitBreakerFailures.Inc()
		logger.Errorf("[RESILIENT] failed to reconnect to database: %v", err)
		return fmt.Errorf("failed to reconnect to database: %w", err)
	}

	rd.breaker.RecordSuccess()
	return nil
}

// operation is one attempt of a facade call, bounded by the command
// timeout carried in ctx.
type operation func(ctx context.Context) (any, error)

// retryOperation drives op to completion: ensure a connection, run the
// attempt, and re-run transient failures with jittered exponential backoff
// until the attempt budget is spent. A failed reconnect ends the call
// immediately; the breaker already paces reconnects, so looping on them
// here would only pile up dials.
func (rd *ResilientDatabase) retryOperation(ctx context.Context, name string, op operation) Result {
	start := time.Now()
	maxAttempts := rd.cfg.GetMaxRetries()
	backoff := retry.NewExponentialBackoff(rd.backoff)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := rd.ensureConnected(ctx); err != nil {
			return Result{Err: err, ExecutionTime: time.Since(start), RetryCount: attempt}
		}

		opCtx, cancel := context.WithTimeout(ctx, rd.db.CommandTimeout())
		opStart := time.Now()
		data, err := op(opCtx)
		cancel()

		if err == nil {
			rd.recordOperation(name, true, time.Since(opStart))
			return Result{
				Success:       true,
				Data:          data,
				ExecutionTime: time.Since(start),
				RetryCount:    attempt,
			}
		}

		if !isRetryableError(err) {
			total := time.Since(start)
			rd.recordOperation(name, false, total)
			logger.Errorf("[RESILIENT] non-retryable error in %s: %v", name, err)
			return Result{Err: err, ExecutionTime: total, RetryCount: attempt + 1}
		}

		logger.Warnf("[RESILIENT] operation %s failed (attempt %d/%d): %v", name, attempt+1, maxAttempts, err)

		if attempt == maxAttempts-1 {
			total := time.Since(start)
			rd.recordOperation(name, false, total)
			logger.Errorf("[RESILIENT] operation %s failed after %d attempts: %v", name, maxAttempts, err)
			return Result{
				Err:           fmt.Errorf("operation failed after %d attempts: %w", maxAttempts, err),
				ExecutionTime: total,
				RetryCount:    attempt + 1,
			}
		}

		if sleepErr := retry.Sleep(ctx, backoff.NextDelay()); sleepErr != nil {
			total := time.Since(start)
			rd.recordOperation(name, false, total)
			return Result{Err: sleepErr, ExecutionTime: total, RetryCount: attempt + 1}
		}

		// Force the next iteration to re-check the connection.
		rd.db.MarkDisconnected()
		metrics.DBRetriesTotal.WithLabelValues(name).Inc()
	}

	return Result{Err: fmt.Errorf("unexpected retry loop exit"), ExecutionTime: time.Since(start)}
}

// recordOperation folds one observation into the rolling connection
// metrics and the Prometheus instruments. Successes carry the duration of
// the attempt that worked, failures the whole call including backoff.
func (rd *ResilientDatabase) recordOperation(name string, success bool, elapsed time.Duration) {
	rd.db.Metrics().Record(success, elapsed)

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.DBQueriesTotal.WithLabelValues(name, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}
