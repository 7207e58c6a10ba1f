package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// ClientProber pings every registered client that supports health checks.
// The result maps client names to their ping error (nil when healthy).
type ClientProber interface {
	PingClients(ctx context.Context) map[string]error
}

// HealthChecker provides liveness and readiness probes
type HealthChecker struct {
	prober  ClientProber
	version string
	// critical names clients whose failure makes the service unhealthy rather than degraded
	critical map[string]bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(prober ClientProber, version string, critical ...string) *HealthChecker {
	c := make(map[string]bool, len(critical))
	for _, name := range critical {
		c[name] = true
	}
	return &HealthChecker{
		prober:   prober,
		version:  version,
		critical: c,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single client backend
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns 200 whenever the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness checks the registered clients; 503 only when unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check performs a health check of every pingable client. A failing client
// degrades the service unless it was named critical.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus),
	}
	if h.prober == nil {
		return status
	}

	start := time.Now()
	results := h.prober.PingClients(ctx)
	latency := time.Since(start)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dep := DependencyStatus{
			Status:    StatusHealthy,
			Latency:   latency,
			Timestamp: time.Now(),
		}
		if err := results[name]; err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			if h.critical[name] {
				status.Status = StatusUnhealthy
			} else if status.Status != StatusUnhealthy {
				status.Status = StatusDegraded
			}
		}
		status.Dependencies[name] = dep
	}

	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
