// Package db owns the pooled PostgreSQL connection and the ORM engine
// layered over it. It tracks the connection lifecycle as an explicit state
// machine and exposes raw pool access, scoped transactions, and scoped ORM
// sessions to the resilient layer above it.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rampartdb/rampart/config"
	"github.com/rampartdb/rampart/helpers"
	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/metrics"
)

// Database is the connection manager. One instance is constructed at
// process start and torn down once at shutdown; it is safe for concurrent
// use. Lifecycle transitions (connect, disconnect) are serialized by an
// internal lock, while individual queries rely on the pool's own checkout
// synchronization.
type Database struct {
	cfg *config.DatabaseConfig

	mu    sync.RWMutex // guards state, pool, sqlDB, orm
	state ConnectionState
	pool  *pgxpool.Pool
	sqlDB *sql.DB
	orm   *gorm.DB

	metrics *ConnectionMetrics

	usesMu sync.Mutex
	uses   map[*pgx.Conn]int64 // checkouts per physical connection
}

// New builds a disconnected Database from configuration. No network I/O
// happens until Connect is called.
func New(cfg *config.DatabaseConfig) *Database {
	return &Database{
		cfg:     cfg,
		state:   StateDisconnected,
		metrics: &ConnectionMetrics{},
		uses:    make(map[*pgx.Conn]int64),
	}
}

// Connect establishes the connection pool and the ORM engine over it, then
// verifies both with a round-trip. This is the one lifecycle call that
// surfaces a hard failure: callers at startup decide whether to abort or
// run degraded. On failure the state is Error and any partially built
// handles are torn down.
func (d *Database) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.connectLocked(ctx)
}

func (d *Database) connectLocked(ctx context.Context) error {
	// A caller that lost the race to another reconnect finds the work done.
	if d.state == StateConnected && d.pool != nil && d.orm != nil {
		return nil
	}

	if d.cfg.DSN == "" {
		d.setStateLocked(StateError)
		return fmt.Errorf("database DSN is not configured")
	}

	logger.Infof("[DB] connecting to %s", helpers.MaskDSN(d.cfg.DSN))
	d.setStateLocked(StateConnecting)

	// Remnants of a previous connection are disposed before rebuilding.
	d.closeHandlesLocked()

	poolCfg, err := d.buildPoolConfig()
	if err != nil {
		d.setStateLocked(StateError)
		return err
	}

	connectTimeout, err := d.cfg.GetConnectTimeout()
	if err != nil {
		d.setStateLocked(StateError)
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		d.setStateLocked(StateError)
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		d.setStateLocked(StateError)
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// The ORM engine shares the same physical pool instead of maintaining
	// a second set of connections.
	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxOpenConns(int(poolCfg.MaxConns))
	sqlDB.SetMaxIdleConns(int(poolCfg.MinConns))
	sqlDB.SetConnMaxIdleTime(poolCfg.MaxConnIdleTime)

	gormLevel := gormlogger.Silent
	if d.cfg.LogQueries {
		gormLevel = gormlogger.Info
	}

	orm, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLevel),
		TranslateError: true,
	})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		d.setStateLocked(StateError)
		return fmt.Errorf("failed to initialize ORM engine: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		pool.Close()
		d.setStateLocked(StateError)
		return fmt.Errorf("ORM engine self-test failed: %w", err)
	}

	d.pool = pool
	d.sqlDB = sqlDB
	d.orm = orm
	d.setStateLocked(StateConnected)

	d.metrics.RecordReconnect()
	metrics.DBReconnectsTotal.Inc()

	logger.Info("[DB] connection pool and ORM engine established",
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
		"max_lifetime", poolCfg.MaxConnLifetime.String(),
		"max_idle", poolCfg.MaxConnIdleTime.String())

	return nil
}

func (d *Database) buildPoolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(d.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolCfg.MinConns = d.cfg.GetMinConns()
	poolCfg.MaxConns = d.cfg.GetMaxConns()

	lifetime, err := d.cfg.GetMaxConnLifetime()
	if err != nil {
		return nil, fmt.Errorf("invalid max_conn_lifetime: %w", err)
	}
	poolCfg.MaxConnLifetime = lifetime

	idleTime, err := d.cfg.GetMaxConnIdleTime()
	if err != nil {
		return nil, fmt.Errorf("invalid max_conn_idle_time: %w", err)
	}
	poolCfg.MaxConnIdleTime = idleTime

	connectTimeout, err := d.cfg.GetConnectTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid connect_timeout: %w", err)
	}
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout

	commandTimeout, err := d.cfg.GetCommandTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid command_timeout: %w", err)
	}

	// statement_timeout is enforced server-side as a backstop to the
	// per-operation context deadlines applied by callers.
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(commandTimeout.Milliseconds(), 10)
	poolCfg.ConnConfig.RuntimeParams["jit"] = "off"

	if d.cfg.LogQueries {
		poolCfg.ConnConfig.Tracer = &queryTracer{}
	}

	poolCfg.AfterRelease = d.afterRelease
	poolCfg.BeforeClose = d.beforeClose

	return poolCfg, nil
}

// afterRelease counts checkouts per physical connection and retires a
// connection once it has served max_conn_uses queries. Returning false
// destroys the connection; the pool replaces it on demand.
func (d *Database) afterRelease(conn *pgx.Conn) bool {
	maxUses := d.cfg.GetMaxConnUses()
	if maxUses <= 0 {
		return true
	}

	d.usesMu.Lock()
	d.uses[conn]++
	uses := d.uses[conn]
	d.usesMu.Unlock()

	return uses < maxUses
}

func (d *Database) beforeClose(conn *pgx.Conn) {
	d.usesMu.Lock()
	delete(d.uses, conn)
	d.usesMu.Unlock()

	metrics.DBPoolConnsRecycled.Inc()
}

// Disconnect disposes the ORM engine, then the pool, and resets the state
// to Disconnected. It is idempotent and safe to call even if Connect never
// succeeded.
func (d *Database) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.closeHandlesLocked()
	d.setStateLocked(StateDisconnected)
	logger.Info("[DB] database connections closed")

	return err
}

func (d *Database) closeHandlesLocked() error {
	var closeErr error

	if d.sqlDB != nil {
		logger.Info("[DB] closing ORM engine...")
		if err := d.sqlDB.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close ORM engine: %w", err)
		}
		d.sqlDB = nil
		d.orm = nil
	}

	if d.pool != nil {
		logger.Info("[DB] closing connection pool...")
		d.pool.Close()
		d.pool = nil
	}

	d.usesMu.Lock()
	d.uses = make(map[*pgx.Conn]int64)
	d.usesMu.Unlock()

	return closeErr
}

// TestConnection issues a round-trip query on both the raw pool and the
// ORM engine, bounded by the configured test timeout. It never returns an
// error: failures are logged and reported as false.
func (d *Database) TestConnection(ctx context.Context) bool {
	d.mu.RLock()
	pool, orm := d.pool, d.orm
	d.mu.RUnlock()

	timeout, err := d.cfg.GetTestTimeout()
	if err != nil {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if pool != nil {
		var result int
		if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
			logger.Warnf("[DB] pool connection test failed: %v", err)
			return false
		}
		if result != 1 {
			logger.Warn("[DB] pool connection test returned unexpected result")
			return false
		}
	}

	if orm != nil {
		var result int
		if err := orm.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
			logger.Warnf("[DB] ORM connection test failed: %v", err)
			return false
		}
		if result != 1 {
			logger.Warn("[DB] ORM connection test returned unexpected result")
			return false
		}
	}

	return true
}

// IsConnected reports whether the handle is usable: state Connected with
// both the pool and the ORM engine in place.
func (d *Database) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.state == StateConnected && d.pool != nil && d.orm != nil
}

// State returns the current lifecycle state.
func (d *Database) State() ConnectionState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.state
}

// MarkDisconnected drops the state back to Disconnected without touching
// the pool handles. Callers use it after a transport failure so the next
// operation re-checks the connection.
func (d *Database) MarkDisconnected() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setStateLocked(StateDisconnected)
}

// setStateLocked must be called with the lifecycle lock held.
func (d *Database) setStateLocked(state ConnectionState) {
	if d.state == state {
		return
	}

	logger.Debug("[DB] connection state changed", "from", d.state.String(), "to", state.String())
	d.state = state
}

// Pool returns the raw connection pool, or nil while disconnected.
func (d *Database) Pool() *pgxpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.pool
}

// ORM returns the engine handle, or nil while disconnected.
func (d *Database) ORM() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.orm
}

// Metrics returns the per-handle query statistics.
func (d *Database) Metrics() *ConnectionMetrics {
	return d.metrics
}

// Stat returns a snapshot of pool statistics, or nil while disconnected.
func (d *Database) Stat() *pgxpool.Stat {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.pool == nil {
		return nil
	}

	return d.pool.Stat()
}

// CommandTimeout returns the per-operation deadline callers should apply.
func (d *Database) CommandTimeout() time.Duration {
	timeout, err := d.cfg.GetCommandTimeout()
	if err != nil {
		return 60 * time.Second
	}

	return timeout
}

// StartPoolMetrics starts a goroutine that periodically exports connection
// pool gauges until the context is canceled.
func (d *Database) StartPoolMetrics(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.collectPoolStats()
			}
		}
	}()
}

func (d *Database) collectPoolStats() {
	stat := d.Stat()
	if stat == nil {
		return
	}

	metrics.DBPoolTotalConns.Set(float64(stat.TotalConns()))
	metrics.DBPoolIdleConns.Set(float64(stat.IdleConns()))
	metrics.DBPoolInUseConns.Set(float64(stat.AcquiredConns()))
	metrics.DBPoolMaxConns.Set(float64(stat.MaxConns()))
	metrics.DBPoolEmptyAcquires.Set(float64(stat.EmptyAcquireCount()))
}
