package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCY MODEL
// ══════════════════════════════════════════════════════════════════════════════

// Impact says what an operator loses when a dependency is down.
type Impact int

const (
	// ImpactCritical dependencies are needed to save a receipt. While one
	// is down the desk is not ready.
	ImpactCritical Impact = iota

	// ImpactDegraded dependencies only limit the desk: sessions still open
	// and report the failure through their notice.
	ImpactDegraded
)

func (i Impact) String() string {
	if i == ImpactCritical {
		return "critical"
	}
	return "degraded"
}

// State is the health of the desk or of a single dependency.
type State string

const (
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// CheckFunc probes one dependency. details, when non-nil, is reported as is.
type CheckFunc func(ctx context.Context) (details any, err error)

// Pinger is implemented by the cache and the student service client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a dependency with Ping.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (any, error) {
		return nil, p.Ping(ctx)
	}
}

// DependencyReport is the outcome of one probe.
type DependencyReport struct {
	State   State  `json:"state"`
	Impact  string `json:"impact"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
	Details any    `json:"details,omitempty"`
}

// HealthReport is the aggregated view served by /health and /ready.
type HealthReport struct {
	State        State                       `json:"state"`
	Ready        bool                        `json:"ready"`
	Message      string                      `json:"message,omitempty"`
	Dependencies map[string]DependencyReport `json:"dependencies,omitempty"`
	Uptime       string                      `json:"uptime"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
}

// HealthChecker produces a HealthReport.
type HealthChecker interface {
	Check(ctx context.Context) HealthReport
}

// ══════════════════════════════════════════════════════════════════════════════
// READINESS MONITOR
// ══════════════════════════════════════════════════════════════════════════════

type dependency struct {
	impact Impact
	check  CheckFunc
}

// ReadinessMonitor probes every registered dependency concurrently and
// folds the results by impact: a critical failure takes the desk down, a
// degraded one leaves it serving.
type ReadinessMonitor struct {
	mu      sync.RWMutex
	deps    map[string]dependency
	started time.Time
	version string
	timeout time.Duration
}

// NewReadinessMonitor creates a monitor. timeout bounds each probe; zero
// uses five seconds.
func NewReadinessMonitor(version string, timeout time.Duration) *ReadinessMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReadinessMonitor{
		deps:    make(map[string]dependency),
		started: time.Now(),
		version: version,
		timeout: timeout,
	}
}

// Register adds or replaces a named dependency.
func (m *ReadinessMonitor) Register(name string, impact Impact, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps[name] = dependency{impact: impact, check: check}
}

// Check probes all dependencies.
func (m *ReadinessMonitor) Check(ctx context.Context) HealthReport {
	m.mu.RLock()
	deps := make(map[string]dependency, len(m.deps))
	for name, d := range m.deps {
		deps[name] = d
	}
	m.mu.RUnlock()

	report := HealthReport{
		State:        StateOK,
		Ready:        true,
		Dependencies: make(map[string]DependencyReport, len(deps)),
		Uptime:       time.Since(m.started).Round(time.Second).String(),
		Timestamp:    time.Now().UTC(),
		Version:      m.version,
	}

	type result struct {
		name   string
		impact Impact
		report DependencyReport
	}
	results := make(chan result, len(deps))

	var wg sync.WaitGroup
	for name, d := range deps {
		wg.Add(1)
		go func(name string, d dependency) {
			defer wg.Done()
			results <- result{name: name, impact: d.impact, report: m.probe(ctx, d)}
		}(name, d)
	}
	wg.Wait()
	close(results)

	var down, degraded []string
	for r := range results {
		report.Dependencies[r.name] = r.report
		if r.report.State == StateOK {
			continue
		}
		if r.impact == ImpactCritical {
			down = append(down, r.name)
		} else {
			degraded = append(degraded, r.name)
		}
	}
	sort.Strings(down)
	sort.Strings(degraded)

	switch {
	case len(down) > 0:
		report.State = StateDown
		report.Ready = false
		report.Message = "unavailable: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		report.State = StateDegraded
		report.Message = "degraded: " + strings.Join(degraded, ", ")
	}
	return report
}

func (m *ReadinessMonitor) probe(ctx context.Context, d dependency) DependencyReport {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	details, err := d.check(ctx)

	r := DependencyReport{
		State:   StateOK,
		Impact:  d.impact.String(),
		Latency: time.Since(start).Round(time.Millisecond).String(),
		Details: details,
	}
	if err != nil {
		r.State = StateDown
		r.Message = err.Error()
	}
	return r
}
