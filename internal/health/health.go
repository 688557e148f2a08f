// Package health provides the liveness, readiness and detailed health
// endpoints served next to the proxy routes.
//
// Checks are registered once at startup and run concurrently on every
// readiness or health probe:
//
//	h := health.NewHandler(version, health.WithLogger(logger))
//	h.AddCheck(health.NewHealthCheckFunc("allowlist", func(context.Context) error {
//	    return nil
//	}))
//	h.RegisterRoutes(engine)
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// Route paths.
const (
	RouteHealth = "/health"
	RouteReady  = "/ready"
	RouteLive   = "/live"
)

// Status values reported by the endpoints.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDraining = "draining"
)

// Default timeout values for probes.
const (
	DefaultReadinessProbeTimeout = 5 * time.Second
	DefaultLivenessProbeTimeout  = 10 * time.Second
)

// HealthCheck defines the interface for health checks.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthCheck.
type HealthCheckFunc struct {
	name      string
	checkFunc func(ctx context.Context) error
}

// NewHealthCheckFunc creates a named health check from a function.
func NewHealthCheckFunc(name string, check func(ctx context.Context) error) *HealthCheckFunc {
	return &HealthCheckFunc{name: name, checkFunc: check}
}

// Name returns the name of the health check.
func (f *HealthCheckFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *HealthCheckFunc) Check(ctx context.Context) error {
	return f.checkFunc(ctx)
}

// HealthStatus is the body of the health and readiness endpoints.
type HealthStatus struct {
	Status    string                  `json:"status"`
	Version   string                  `json:"version,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime,omitempty"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for failed checks.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetricsRegisterer registers the probe metrics with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(h *Handler) {
		h.registerer = reg
	}
}

// WithTimeouts overrides the probe timeouts. Non-positive values keep the
// defaults.
func WithTimeouts(readiness, liveness time.Duration) Option {
	return func(h *Handler) {
		if readiness > 0 {
			h.readinessTimeout = readiness
		}
		if liveness > 0 {
			h.livenessTimeout = liveness
		}
	}
}

// Handler serves the probe endpoints.
type Handler struct {
	version          string
	startTime        time.Time
	logger           observability.Logger
	registerer       prometheus.Registerer
	metrics          *probeMetrics
	readinessTimeout time.Duration
	livenessTimeout  time.Duration

	mu       sync.RWMutex
	checks   []HealthCheck
	draining atomic.Bool
}

// NewHandler creates a probe handler reporting version.
func NewHandler(version string, opts ...Option) *Handler {
	h := &Handler{
		version:          version,
		startTime:        time.Now(),
		logger:           observability.NopLogger(),
		readinessTimeout: DefaultReadinessProbeTimeout,
		livenessTimeout:  DefaultLivenessProbeTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics = newProbeMetrics(h.registerer)
	return h
}

// AddCheck adds a health check.
func (h *Handler) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// RemoveCheck removes a health check by name.
func (h *Handler) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, check := range h.checks {
		if check.Name() == name {
			h.checks = append(h.checks[:i], h.checks[i+1:]...)
			return
		}
	}
}

// SetDraining marks the server as shutting down. A draining server fails
// readiness so load balancers stop routing to it.
func (h *Handler) SetDraining(draining bool) {
	h.draining.Store(draining)
}

// IsDraining reports whether the server is shutting down.
func (h *Handler) IsDraining() bool {
	return h.draining.Load()
}

// LivenessHandler answers while the process is running.
func (h *Handler) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.probes.WithLabelValues("liveness").Inc()
		c.JSON(http.StatusOK, gin.H{
			"status":    StatusOK,
			"timestamp": time.Now().UTC(),
		})
	}
}

// ReadinessHandler answers 200 when every check passes and the server is
// not draining, 503 otherwise.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.probes.WithLabelValues("readiness").Inc()

		if h.IsDraining() {
			c.JSON(http.StatusServiceUnavailable, &HealthStatus{
				Status:    StatusDraining,
				Timestamp: time.Now().UTC(),
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.readinessTimeout)
		defer cancel()

		status := h.runChecks(ctx)
		c.JSON(statusCode(status), status)
	}
}

// HealthHandler reports every check with version and uptime.
func (h *Handler) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.metrics.probes.WithLabelValues("health").Inc()

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.livenessTimeout)
		defer cancel()

		status := h.runChecks(ctx)
		status.Version = h.version
		status.Uptime = time.Since(h.startTime).Round(time.Second).String()
		c.JSON(statusCode(status), status)
	}
}

// RegisterRoutes registers the probe routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(RouteHealth, h.HealthHandler())
	r.GET(RouteReady, h.ReadinessHandler())
	r.GET(RouteLive, h.LivenessHandler())
}

func (h *Handler) runChecks(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(hc HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := hc.Check(ctx)
			duration := time.Since(start)

			result := &CheckResult{
				Status:    StatusOK,
				Duration:  duration.String(),
				Timestamp: time.Now().UTC(),
			}
			healthy := 1.0
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()
				healthy = 0
				h.logger.Warn("health check failed",
					observability.String("check", hc.Name()),
					observability.Error(err),
					observability.Duration("duration", duration),
				)
			}
			h.metrics.status.WithLabelValues(hc.Name()).Set(healthy)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status.Status = StatusError
			}
			status.Checks[hc.Name()] = result
		}(check)
	}

	wg.Wait()
	return status
}

func statusCode(status *HealthStatus) int {
	if status.Status != StatusOK {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
