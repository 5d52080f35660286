package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database query metrics
var (
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_db_queries_total",
			Help: "Total number of database operations executed",
		},
		[]string{"operation", "status"}, // status: "success", "failure"
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rampart_db_query_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)

	DBRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_db_retries_total",
			Help: "Total number of retry waits performed before re-running an operation",
		},
		[]string{"operation"},
	)
)

// Database transaction and session metrics
var (
	DBTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_db_transactions_total",
			Help: "Total number of raw database transactions.",
		},
		[]string{"status"}, // status: "commit", "rollback"
	)

	DBTransactionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rampart_db_transaction_duration_seconds",
			Help:    "Duration of raw database transactions in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	DBSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_db_sessions_total",
			Help: "Total number of ORM sessions.",
		},
		[]string{"status"}, // status: "commit", "rollback"
	)
)

// Database connection pool metrics
var (
	DBPoolTotalConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rampart_db_pool_total_conns",
			Help: "Total number of connections in the pool.",
		},
	)
	DBPoolIdleConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rampart_db_pool_idle_conns",
			Help: "Number of idle connections in the pool.",
		},
	)
	DBPoolInUseConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rampart_db_pool_in_use_conns",
			Help: "Number of connections currently in use.",
		},
	)
	DBPoolMaxConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rampart_db_pool_max_conns",
			Help: "Configured maximum size of the pool.",
		},
	)
	DBPoolEmptyAcquires = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rampart_db_pool_empty_acquires",
			Help: "Cumulative number of acquires that waited for a free connection.",
		},
	)
	DBPoolConnsRecycled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rampart_db_pool_conns_recycled_total",
			Help: "Connections destroyed after reaching their checkout limit.",
		},
	)
	DBReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rampart_db_reconnects_total",
			Help: "Total number of successful pool (re)connections.",
		},
	)
)

// Database circuit breaker metrics
var (
	DBCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rampart_db_circuit_breaker_state",
			Help: "State of the database circuit breaker (1=active, 0=inactive).",
		},
		[]string{"state"}, // state: "open", "closed"
	)

	DBCircuitBreakerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rampart_db_circuit_breaker_failures_total",
			Help: "Total number of failures recorded by the circuit breaker.",
		},
	)
)

// Health check metrics
var (
	DBHealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_db_health_checks_total",
			Help: "Total number of database health checks.",
		},
		[]string{"status"}, // status: "healthy", "unhealthy"
	)

	ComponentHealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rampart_health_checks_total",
			Help: "Total number of component health checks by result.",
		},
		[]string{"component", "status"},
	)

	ComponentHealthStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rampart_health_status",
			Help: "Component health (0=unreachable, 1=unhealthy, 2=degraded, 3=healthy).",
		},
		[]string{"component"},
	)

	ComponentHealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rampart_health_check_duration_seconds",
			Help:    "Duration of component health checks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)
)
