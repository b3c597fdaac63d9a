package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinaka-makhana/storefront/internal/platform/httpx"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
	defaultCheckTimeout  = 2 * time.Second
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version     string    `json:"version"`
	CommitSHA   string    `json:"commitSha"`
	Environment string    `json:"environment"`
	StartedAt   time.Time `json:"startedAt"`
}

// DependencyCheck probes one downstream dependency for /readyz.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  BuildInfo
	clock  func() time.Time
	checks []DependencyCheck
}

type HealthOption func(*HealthHandlers)

func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthChecks adds readiness checks; checks without a name or func are ignored.
func WithHealthChecks(checks ...DependencyCheck) HealthOption {
	return func(h *HealthHandlers) {
		for _, c := range checks {
			if strings.TrimSpace(c.Name) == "" || c.Check == nil {
				continue
			}
			h.checks = append(h.checks, c)
		}
	}
}

func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	if h.build.Version == "" {
		h.build.Version = "dev"
	}
	return h
}

// Healthz reports liveness only; it never touches dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    healthStatusOK,
		"uptime":    now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"version":   h.build.Version,
		"commitSha": h.build.CommitSHA,
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz runs every dependency check in parallel and answers 503 if any failed.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := make(map[string]checkResult, len(h.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range h.checks {
		check := check
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeout := check.Timeout
			if timeout <= 0 {
				timeout = defaultCheckTimeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := check.Check(checkCtx)
			res := checkResult{Status: healthStatusOK, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = healthStatusDegraded
				res.Error = err.Error()
			}
			mu.Lock()
			results[check.Name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := healthStatusOK
	code := http.StatusOK
	for _, res := range results {
		if res.Status != healthStatusOK {
			status = healthStatusDegraded
			code = http.StatusServiceUnavailable
		}
	}

	httpx.WriteJSON(w, code, map[string]any{
		"status":      status,
		"checks":      results,
		"environment": h.build.Environment,
		"timestamp":   h.clock().UTC().Format(time.RFC3339),
	})
}
