package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc performs a health check for a component.
// It returns nil if the component is healthy.
type CheckFunc func(ctx context.Context) error

// Statuses of a single check.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
)

// Overall statuses of a Report.
const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// CheckResult is the result of a single check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message is the error of an unhealthy check.
	Message string `json:"message,omitempty"`

	// Critical checks decide readiness.
	Critical bool `json:"critical"`

	// DurationMs is how long the check took.
	DurationMs int64 `json:"duration_ms"`
}

// Report is the aggregated result of all checks.
type Report struct {
	// Status is "ready", "degraded" or "not_ready".
	Status string `json:"status"`

	Checks map[string]CheckResult `json:"checks"`

	Timestamp time.Time `json:"timestamp"`
}

// Ready reports whether every critical check passed.
func (r Report) Ready() bool {
	return r.Status != StatusNotReady
}

type check struct {
	fn       CheckFunc
	critical bool
}

// Checker runs registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	now     func() time.Time
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: timeout,
		now:     time.Now,
	}
}

// Register adds a critical check, replacing any check with the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.register(name, fn, true)
}

// RegisterOptional adds a check whose failure only degrades the report.
func (c *Checker) RegisterOptional(name string, fn CheckFunc) {
	c.register(name, fn, false)
}

func (c *Checker) register(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, critical: critical}
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all checks concurrently and aggregates the results. With no
// checks registered the report is ready.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, ch := range checks {
		name, ch := name, ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.run(ctx, ch)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status == StatusOK {
			continue
		}
		if result.Critical {
			status = StatusNotReady
			break
		}
		status = StatusDegraded
	}

	return Report{
		Status:    status,
		Checks:    results,
		Timestamp: c.now().UTC(),
	}
}

// run executes one check, bounded by the checker timeout even when the check
// ignores its context.
func (c *Checker) run(ctx context.Context, ch check) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- ch.fn(checkCtx)
	}()

	result := CheckResult{Status: StatusOK, Critical: ch.critical}
	select {
	case err := <-errChan:
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
		}
	case <-checkCtx.Done():
		result.Status = StatusUnhealthy
		result.Message = "health check timeout"
	}
	result.DurationMs = c.now().Sub(start).Milliseconds()
	return result
}
