package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rampartdb/rampart/pkg/circuitbreaker"
	"github.com/rampartdb/rampart/pkg/resilient"
)

// RegisterDatabaseChecks wires the database facade into the monitor: a
// critical end-to-end probe and a non-critical breaker observer, so an open
// breaker shows up even between probe intervals.
func RegisterDatabaseChecks(m *Monitor, rdb *resilient.ResilientDatabase) {
	m.Register(&Check{
		Name:     "database",
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
		Critical: true,
		Probe: func(ctx context.Context) error {
			if result := rdb.HealthCheck(ctx); result.Failed() {
				return result.Err
			}
			return nil
		},
	})

	m.Register(&Check{
		Name:     "database_circuit_breaker",
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
		Critical: false,
		Probe: func(ctx context.Context) error {
			if rdb.BreakerState() == circuitbreaker.StateOpen {
				return fmt.Errorf("circuit breaker is open")
			}
			return nil
		},
	})
}
