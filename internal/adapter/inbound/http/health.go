package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/stockpile-hq/stockpile/internal/adapter/outbound/memory"
	"github.com/stockpile-hq/stockpile/internal/domain/catalog"
	"github.com/stockpile-hq/stockpile/internal/domain/inventory"
	domainruntime "github.com/stockpile-hq/stockpile/internal/domain/runtime"
)

// healthCheckTimeout bounds the store ping inside one health probe.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies component health. Pass nil for components that
// aren't configured.
type HealthChecker struct {
	store       inventory.Store
	rateLimiter *memory.RateLimiter
	handle      *domainruntime.Handle
	registry    *catalog.Registry
	version     string
}

// NewHealthChecker creates a HealthChecker with optional components.
func NewHealthChecker(store inventory.Store, rateLimiter *memory.RateLimiter, handle *domainruntime.Handle, registry *catalog.Registry, version string) *HealthChecker {
	return &HealthChecker{
		store:       store,
		rateLimiter: rateLimiter,
		handle:      handle,
		registry:    registry,
		version:     version,
	}
}

// Check performs health checks on all components. The engine being cold
// is not unhealthy: it starts lazily on the first exchange.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		if err := h.store.Ping(pingCtx); err != nil {
			checks["database"] = fmt.Sprintf("error: %v", err)
			healthy = false
		} else {
			checks["database"] = "ok"
		}
		cancel()
	} else {
		checks["database"] = "not configured"
	}

	if h.rateLimiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d keys", h.rateLimiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	if h.registry != nil {
		// The fingerprint lets an operator confirm which tool set a
		// replica is serving without calling tools/list.
		checks["catalog"] = fmt.Sprintf("ok: %d tools, fingerprint %016x",
			h.registry.Len(), h.registry.Fingerprint())
	} else {
		checks["catalog"] = "not configured"
	}

	if h.handle != nil {
		if h.handle.Started() {
			checks["engine"] = "started"
		} else {
			checks["engine"] = "cold"
		}
	} else {
		checks["engine"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}
