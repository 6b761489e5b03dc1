package http

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything that can report connectivity: Postgres, Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the body of /health.
type HealthStatus struct {
	Healthy bool                   `json:"healthy"`
	Message string                 `json:"message,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
	Uptime  string                 `json:"uptime,omitempty"`
	Version string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthChecker runs named pings concurrently, each with its own timeout.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]Pinger
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checks:    make(map[string]Pinger),
		startTime: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

// Add registers a dependency under name.
func (c *HealthChecker) Add(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = p
}

// Check pings every registered dependency.
func (c *HealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]Pinger, len(c.checks))
	for name, p := range c.checks {
		checks[name] = p
	}
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy: true,
		Checks:  make(map[string]CheckResult, len(checks)),
		Uptime:  time.Since(c.startTime).Round(time.Second).String(),
		Version: c.version,
	}

	type named struct {
		name   string
		result CheckResult
	}
	results := make(chan named, len(checks))
	var wg sync.WaitGroup
	for name, p := range checks {
		name, p := name, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(checkCtx)
			res := CheckResult{
				Healthy:  err == nil,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				res.Message = err.Error()
			}
			results <- named{name, res}
		}()
	}
	wg.Wait()
	close(results)

	var failed []string
	for r := range results {
		status.Checks[r.name] = r.result
		if !r.result.Healthy {
			status.Healthy = false
			failed = append(failed, r.name)
		}
	}
	if !status.Healthy {
		status.Message = "failing: " + strings.Join(failed, ", ")
	}
	return status
}
