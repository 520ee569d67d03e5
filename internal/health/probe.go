package health

import (
	"context"
	"sync"
	"time"
)

type CheckFunc func(ctx context.Context) error

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// ProbeRunner evaluates registered dependency checks for the readiness
// endpoint. Each check runs with its own timeout so one slow dependency
// cannot stall the probe.
type ProbeRunner struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewProbeRunner(timeout time.Duration) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ProbeRunner{checks: make(map[string]CheckFunc), timeout: timeout}
}

func (p *ProbeRunner) Register(name string, check CheckFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = check
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.RLock()
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	p.mu.RUnlock()

	ready := true
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		p.mu.RLock()
		check := p.checks[name]
		p.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := check(checkCtx)
		cancel()

		result := CheckResult{Name: name, Healthy: err == nil}
		if err != nil {
			result.Error = err.Error()
			ready = false
		}
		results = append(results, result)
	}
	return ready, results
}
