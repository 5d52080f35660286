package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/rampartdb/rampart/db"
	"github.com/rampartdb/rampart/pkg/circuitbreaker"
	"github.com/rampartdb/rampart/pkg/metrics"
)

// HealthStatus is the diagnostic snapshot produced by HealthCheck.
type HealthStatus struct {
	State                  string      `json:"state"`
	CircuitBreakerOpen     bool        `json:"circuit_breaker_open"`
	CircuitBreakerFailures int         `json:"circuit_breaker_failures"`
	TotalQueries           int64       `json:"total_queries"`
	FailedQueries          int64       `json:"failed_queries"`
	SuccessRate            float64     `json:"success_rate"`
	AverageQueryTime       float64     `json:"average_query_time"` // seconds
	LastConnectionTime     time.Time   `json:"last_connection_time"`
	TotalReconnections     int64       `json:"total_reconnections"`
	Pool                   *PoolStatus `json:"pool,omitempty"`
}

// PoolStatus reports connection pool occupancy.
type PoolStatus struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// HealthCheck verifies the connection end to end and reports a diagnostic
// snapshot. A handle that is not in the connected state fails fast without
// touching the network; otherwise a round-trip probe runs under the health
// timeout and the snapshot is composed from the live counters.
func (rd *ResilientDatabase) HealthCheck(ctx context.Context) Result {
	start := time.Now()

	if state := rd.db.State(); state != db.StateConnected {
		metrics.DBHealthChecksTotal.WithLabelValues("unhealthy").Inc()
		return Result{
			Err:           fmt.Errorf("database not connected (state: %s)", state),
			ExecutionTime: time.Since(start),
		}
	}

	timeout, err := rd.cfg.GetHealthTimeout()
	if err != nil {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !rd.db.TestConnection(probeCtx) {
		metrics.DBHealthChecksTotal.WithLabelValues("unhealthy").Inc()
		return Result{
			Err:           fmt.Errorf("connection test failed"),
			ExecutionTime: time.Since(start),
		}
	}

	snapshot := rd.db.Metrics().Snapshot()
	status := &HealthStatus{
		State:                  rd.db.State().String(),
		CircuitBreakerOpen:     rd.breaker.State() == circuitbreaker.StateOpen,
		CircuitBreakerFailures: rd.breaker.Failures(),
		TotalQueries:           snapshot.TotalQueries,
		FailedQueries:          snapshot.FailedQueries,
		SuccessRate:            snapshot.SuccessRate(),
		AverageQueryTime:       snapshot.AverageQueryTime.Seconds(),
		LastConnectionTime:     snapshot.LastConnectionTime,
		TotalReconnections:     snapshot.TotalReconnections,
	}
	if stat := rd.db.Stat(); stat != nil {
		status.Pool = &PoolStatus{
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
			MaxConns:      stat.MaxConns(),
		}
	}

	metrics.DBHealthChecksTotal.WithLabelValues("healthy").Inc()
	return Result{Success: true, Data: status, ExecutionTime: time.Since(start)}
}
