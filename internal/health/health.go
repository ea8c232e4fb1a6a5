// Package health runs a background checker loop and exposes liveness and
// readiness over HTTP, probing backend reachability. There is no
// schema-cache readiness check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckResult is the outcome of a single named check.
type CheckResult struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Checker periodically evaluates a set of named checks and answers
// liveness/readiness queries from the last evaluation.
type Checker struct {
	logger *zap.Logger

	mu     sync.RWMutex
	checks map[string]CheckResult
	live   bool
	ready  bool

	backendPing func(ctx context.Context) error
}

// NewChecker builds a Checker. backendPing is called on every tick to
// confirm the storage backend still accepts transactions.
func NewChecker(logger *zap.Logger, backendPing func(ctx context.Context) error) *Checker {
	return &Checker{
		logger:      logger,
		checks:      make(map[string]CheckResult),
		live:        true,
		backendPing: backendPing,
	}
}

// Start runs the check loop until ctx is done.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.runChecks(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runChecks(ctx)
		}
	}
}

func (c *Checker) runChecks(ctx context.Context) {
	results := make(map[string]CheckResult)
	allReady := true

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.backendPing(checkCtx)
	res := CheckResult{Name: "backend", Healthy: err == nil, Timestamp: time.Now().UTC()}
	if err != nil {
		res.Message = err.Error()
		allReady = false
		c.logger.Warn("backend health check failed", zap.Error(err))
	}
	results["backend"] = res

	c.mu.Lock()
	c.checks = results
	c.ready = allReady
	c.mu.Unlock()
}

// IsLive reports whether the process should keep receiving traffic at all.
func (c *Checker) IsLive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

// IsReady reports whether the process should receive new requests.
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Checks returns a snapshot of the last check results.
func (c *Checker) Checks() map[string]CheckResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]CheckResult, len(c.checks))
	for k, v := range c.checks {
		out[k] = v
	}
	return out
}

// LivenessHandler answers /health/live.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if !c.IsLive() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ReadinessHandler answers /health/ready.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !c.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(c.Checks())
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(c.Checks())
}

// Serve starts a standalone HTTP server exposing the liveness/readiness
// endpoints on port.
func Serve(ctx context.Context, port int, checker *Checker, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", checker.LivenessHandler)
	mux.HandleFunc("/health/ready", checker.ReadinessHandler)

	srv := &http.Server{Addr: ":" + strconv.Itoa(port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("health server stopped", zap.Error(err))
	}
}
