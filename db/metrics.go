package db

import (
	"sync"
	"time"
)

// ConnectionMetrics accumulates query statistics for one Database handle.
// The average is maintained incrementally so recording stays O(1); it is
// numerically equivalent to recomputing the mean over every observation.
// Counters are never reset for the lifetime of the process.
type ConnectionMetrics struct {
	mu                 sync.Mutex
	totalQueries       int64
	failedQueries      int64
	totalReconnections int64
	lastConnectionTime time.Time
	averageQueryTime   float64 // seconds
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TotalQueries       int64
	FailedQueries      int64
	TotalReconnections int64
	LastConnectionTime time.Time
	AverageQueryTime   time.Duration
}

// SuccessRate returns the percentage of queries that succeeded. With no
// queries observed yet it reports 100 rather than dividing by zero.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalQueries == 0 {
		return 100
	}

	return float64(s.TotalQueries-s.FailedQueries) / float64(s.TotalQueries) * 100
}

// Record folds one operation into the counters. Every observation, failed
// or not, contributes its elapsed time to the rolling average.
func (m *ConnectionMetrics) Record(success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	if !success {
		m.failedQueries++
	}

	n := float64(m.totalQueries)
	m.averageQueryTime = (m.averageQueryTime*(n-1) + elapsed.Seconds()) / n
}

// RecordReconnect bumps the reconnect counter and stamps the connect time.
func (m *ConnectionMetrics) RecordReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalReconnections++
	m.lastConnectionTime = time.Now()
}

func (m *ConnectionMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		TotalQueries:       m.totalQueries,
		FailedQueries:      m.failedQueries,
		TotalReconnections: m.totalReconnections,
		LastConnectionTime: m.lastConnectionTime,
		AverageQueryTime:   time.Duration(m.averageQueryTime * float64(time.Second)),
	}
}
