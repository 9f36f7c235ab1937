package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by the PostgreSQL and Redis connections.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready reports 503 until both PostgreSQL and Redis answer a ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready", Services: map[string]string{}}
	status := http.StatusOK
	for name, checker := range map[string]HealthChecker{"postgres": h.db, "redis": h.redis} {
		if checker == nil {
			continue
		}
		if err := checker.Health(ctx); err != nil {
			resp.Services[name] = "unhealthy"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "healthy"
	}

	writeJSON(w, status, resp)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "alive"})
}
