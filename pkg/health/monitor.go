// Package health runs registered component checks on their own intervals
// and folds the results into an overall status for operators.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rampartdb/rampart/logger"
	"github.com/rampartdb/rampart/pkg/metrics"
)

type ComponentStatus string

const (
	StatusHealthy     ComponentStatus = "healthy"
	StatusDegraded    ComponentStatus = "degraded"
	StatusUnhealthy   ComponentStatus = "unhealthy"
	StatusUnreachable ComponentStatus = "unreachable"
)

// Check is one registered component probe plus its rolling state. The
// exported fields configure the check and are read-only after Register.
type Check struct {
	Name     string
	Probe    func(ctx context.Context) error
	Interval time.Duration
	Timeout  time.Duration
	Critical bool // a failing critical check drags the overall status down

	mu        sync.RWMutex
	status    ComponentStatus
	lastCheck time.Time
	lastErr   error
	runs      int
	failures  int
}

// CheckSnapshot is a point-in-time copy of one check's state.
type CheckSnapshot struct {
	Name      string          `json:"name"`
	Status    ComponentStatus `json:"status"`
	Critical  bool            `json:"critical"`
	LastCheck time.Time       `json:"last_check"`
	LastError string          `json:"last_error,omitempty"`
	Runs      int             `json:"runs"`
	Failures  int             `json:"failures"`
}

func (c *Check) snapshot() CheckSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := CheckSnapshot{
		Name:      c.Name,
		Status:    c.status,
		Critical:  c.Critical,
		LastCheck: c.lastCheck,
		Runs:      c.runs,
		Failures:  c.failures,
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}

	return snap
}

// Monitor owns a set of checks, each probed on its own interval by its own
// goroutine between Start and Stop.
type Monitor struct {
	mu        sync.RWMutex
	checks    map[string]*Check
	overall   ComponentStatus
	callbacks []func(name string, status ComponentStatus)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewMonitor() *Monitor {
	return &Monitor{
		checks:  make(map[string]*Check),
		overall: StatusHealthy,
	}
}

// Register adds a check. A zero interval defaults to 30s, a zero timeout
// to 10s. Registering after Start does not schedule the check.
func (m *Monitor) Register(check *Check) {
	if check.Interval == 0 {
		check.Interval = 30 * time.Second
	}
	if check.Timeout == 0 {
		check.Timeout = 10 * time.Second
	}
	check.status = StatusHealthy

	m.mu.Lock()
	m.checks[check.Name] = check
	m.mu.Unlock()
}

// OnStatusChange registers a callback invoked whenever a check changes
// status. Callbacks run on their own goroutines and must not block forever.
func (m *Monitor) OnStatusChange(fn func(name string, status ComponentStatus)) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Start launches one probe loop per registered check. Loops wait a full
// interval before the first probe so startup is not judged while the
// process is still wiring itself up; call RunNow for an immediate pass.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.RLock()
	for _, check := range m.checks {
		go m.runLoop(check)
	}
	m.mu.RUnlock()
}

// Stop ends all probe loops. Safe to call without a prior Start.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// RunNow probes every registered check once, synchronously.
func (m *Monitor) RunNow(ctx context.Context) {
	m.mu.RLock()
	checks := make([]*Check, 0, len(m.checks))
	for _, check := range m.checks {
		checks = append(checks, check)
	}
	m.mu.RUnlock()

	for _, check := range checks {
		m.performCheck(ctx, check)
	}
}

func (m *Monitor) runLoop(check *Check) {
	ticker := time.NewTicker(check.Interval)
	defer ticker.Stop()

	logger.Infof("[HEALTH] monitoring '%s' every %v", check.Name, check.Interval)

	for {
		select {
		case <-m.ctx.Done():
			logger.Infof("[HEALTH] monitoring stopped for '%s'", check.Name)
			return
		case <-ticker.C:
			m.performCheck(m.ctx, check)
		}
	}
}

func (m *Monitor) performCheck(ctx context.Context, check *Check) {
	// A panicking probe marks the component unhealthy instead of taking the
	// loop down with it.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Errorf("[HEALTH] panic during check '%s': %v", check.Name, err)

			check.mu.Lock()
			check.status = StatusUnhealthy
			check.lastErr = err
			check.mu.Unlock()

			m.notify(check.Name, StatusUnhealthy)
			m.updateOverall()
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	start := time.Now()
	err := check.Probe(probeCtx)
	metrics.ComponentHealthCheckDuration.WithLabelValues(check.Name).Observe(time.Since(start).Seconds())

	check.mu.Lock()
	check.runs++
	check.lastCheck = time.Now()
	previous := check.status
	first := check.runs == 1

	if err != nil {
		check.failures++
		check.lastErr = err

		// One failure among many runs is a degradation; failing half the
		// time is an outage.
		if rate := float64(check.failures) / float64(check.runs); rate >= 0.5 {
			check.status = StatusUnhealthy
		} else {
			check.status = StatusDegraded
		}

		logger.Warnf("[HEALTH] check '%s' failed: %v (status: %s)", check.Name, err, check.status)
	} else {
		check.lastErr = nil
		check.status = StatusHealthy
	}

	current := check.status
	check.mu.Unlock()

	metrics.ComponentHealthChecks.WithLabelValues(check.Name, string(current)).Inc()
	metrics.ComponentHealthStatus.WithLabelValues(check.Name).Set(statusValue(current))

	if previous != current || first {
		if first {
			logger.Infof("[HEALTH] check '%s' initialized: %s", check.Name, current)
		} else {
			logger.Infof("[HEALTH] check '%s' status changed: %s -> %s", check.Name, previous, current)
		}
		m.notify(check.Name, current)
	}

	m.updateOverall()
}

func statusValue(status ComponentStatus) float64 {
	switch status {
	case StatusHealthy:
		return 3
	case StatusDegraded:
		return 2
	case StatusUnhealthy:
		return 1
	default:
		return 0
	}
}

func (m *Monitor) notify(name string, status ComponentStatus) {
	m.mu.RLock()
	callbacks := make([]func(string, ComponentStatus), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, fn := range callbacks {
		go fn(name, status)
	}
}

func (m *Monitor) updateOverall() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var criticalDown, anyDegraded bool
	for _, check := range m.checks {
		check.mu.RLock()
		status := check.status
		critical := check.Critical
		check.mu.RUnlock()

		switch status {
		case StatusUnhealthy, StatusUnreachable:
			if critical {
				criticalDown = true
			} else {
				anyDegraded = true
			}
		case StatusDegraded:
			anyDegraded = true
		}
	}

	previous := m.overall
	switch {
	case criticalDown:
		m.overall = StatusUnhealthy
	case anyDegraded:
		m.overall = StatusDegraded
	default:
		m.overall = StatusHealthy
	}

	if previous != m.overall {
		logger.Infof("[HEALTH] overall status changed: %s -> %s", previous, m.overall)
	}
}

// OverallStatus reports the aggregate across all checks: unhealthy when a
// critical check is down, degraded when anything else is off, healthy
// otherwise.
func (m *Monitor) OverallStatus() ComponentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.overall
}

// Status reports one check's current status.
func (m *Monitor) Status(name string) (ComponentStatus, bool) {
	m.mu.RLock()
	check, ok := m.checks[name]
	m.mu.RUnlock()

	if !ok {
		return StatusUnreachable, false
	}

	check.mu.RLock()
	defer check.mu.RUnlock()

	return check.status, true
}

// Snapshot returns the state of every check, sorted by name.
func (m *Monitor) Snapshot() []CheckSnapshot {
	m.mu.RLock()
	checks := make([]*Check, 0, len(m.checks))
	for _, check := range m.checks {
		checks = append(checks, check)
	}
	m.mu.RUnlock()

	out := make([]CheckSnapshot, 0, len(checks))
	for _, check := range checks {
		out = append(out, check.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
