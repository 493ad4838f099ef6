package monitor

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/cgm-ingest/internal/metrics"
)

// Check probes one dependency. A nil error means the dependency is up.
type Check func(ctx context.Context) error

// Target is a named dependency check.
type Target struct {
	Name     string
	Check    Check
	Critical bool // A failing critical target makes the ingester unhealthy
}

// Result is the latest outcome of one target.
type Result struct {
	Up        bool          `json:"up"`
	Critical  bool          `json:"critical"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Config holds monitor configuration.
type Config struct {
	Interval    time.Duration // Check interval (default: 30s)
	Concurrency int           // Max concurrent checks (default: 4)
	Timeout     time.Duration // Per-check timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Concurrency: 4,
		Timeout:     5 * time.Second,
	}
}

// Monitor periodically runs dependency checks.
type Monitor struct {
	cfg     Config
	targets []Target
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	results map[string]Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Monitor. A nil metrics records nothing.
func New(cfg Config, targets []Target, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Monitor{
		cfg:     cfg,
		targets: targets,
		metrics: m,
		logger:  logger,
		results: make(map[string]Result, len(targets)),
	}
}

// Start begins the check loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("dependency monitor started",
		"interval", m.cfg.Interval,
		"targets", len(m.targets),
	)

	return nil
}

// Stop gracefully shuts down the monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("dependency monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns a copy of the latest result per target name.
// Targets that have not completed a check yet are absent.
func (m *Monitor) Results() map[string]Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.results)
}

// run is the main check loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Check immediately on start.
	m.checkAll()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAll()
		}
	}
}

// checkAll runs every target concurrently.
func (m *Monitor) checkAll() {
	if len(m.targets) == 0 {
		return
	}

	start := time.Now()

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, m.cfg.Concurrency)
	var wg sync.WaitGroup
	var down atomic.Int64

	for _, target := range m.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-m.ctx.Done():
				return
			}

			if !m.check(t) {
				down.Add(1)
			}
		}(target)
	}

	wg.Wait()

	m.logger.Debug("dependency check complete",
		"targets", len(m.targets),
		"down", down.Load(),
		"duration", time.Since(start),
	)
}

// check runs one target and records its result.
func (m *Monitor) check(t Target) bool {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := t.Check(ctx)
	res := Result{
		Up:        err == nil,
		Critical:  t.Critical,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}
	if err != nil {
		res.Error = err.Error()
	}

	m.mu.Lock()
	prev, seen := m.results[t.Name]
	m.results[t.Name] = res
	m.mu.Unlock()

	m.metrics.DependencyUp(t.Name, res.Up)

	// Log transitions only.
	switch {
	case !res.Up && (!seen || prev.Up):
		m.logger.Warn("dependency down", "name", t.Name, "critical", t.Critical, "err", err)
	case res.Up && seen && !prev.Up:
		m.logger.Info("dependency recovered", "name", t.Name, "latency", res.Latency)
	}

	return res.Up
}
