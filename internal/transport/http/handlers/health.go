package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/grepdeck/authgate/internal/transport/http/response"
)

// Pinger is anything that can report liveness of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler builds a health endpoint over named dependency checks.
// Nil pingers are skipped so optional backends (Redis, RabbitMQ) can be
// absent without faking a check.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &HealthHandler{checks: filtered}
}

type healthPayload struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Healthz handles GET /healthz. Any failing dependency turns the whole
// response into a 503 so orchestrators stop routing here.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	payload := healthPayload{
		Status: "healthy",
		Checks: make(map[string]checkResult, len(h.checks)),
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			payload.Status = "unhealthy"
			payload.Checks[name] = checkResult{Status: "down", Error: err.Error()}
			continue
		}
		payload.Checks[name] = checkResult{Status: "up"}
	}

	status := http.StatusOK
	if payload.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	response.WriteJSON(w, status, payload)
}
