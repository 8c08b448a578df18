package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger is implemented by the optional Mongo repository and Redis cache
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker handles health checks
type HealthChecker struct {
	deps          map[string]Pinger
	hasCredential bool
}

// NewHealthChecker creates a new health checker. Nil dependencies are reported
// as "not configured" and do not affect the status.
func NewHealthChecker(hasCredential bool, deps map[string]Pinger) *HealthChecker {
	configured := make(map[string]Pinger, len(deps))
	for name, dep := range deps {
		if dep != nil {
			configured[name] = dep
		}
	}
	return &HealthChecker{deps: configured, hasCredential: hasCredential}
}

func (h *HealthChecker) checkDeps(ctx context.Context, checks map[string]string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ok := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			ok = false
			checks[name] = "failed: " + err.Error()
		} else {
			checks[name] = "ok"
		}
	}
	return ok
}

// HealthHandler handles the /health endpoint
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if !h.checkDeps(r.Context(), response.Checks) {
		response.Status = "unhealthy"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeResponse(w, statusCode, response)
}

// ReadyHandler handles the /ready endpoint. Without an API key every
// submission would fail, so the instance is reported as not ready.
func (h *HealthChecker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.hasCredential {
		response.Checks["openai_api_key"] = "ok"
	} else {
		response.Status = "not ready"
		response.Checks["openai_api_key"] = "not configured"
	}

	if !h.checkDeps(r.Context(), response.Checks) {
		response.Status = "not ready"
	}

	statusCode := http.StatusOK
	if response.Status == "not ready" {
		statusCode = http.StatusServiceUnavailable
	}
	writeResponse(w, statusCode, response)
}

func writeResponse(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
