package api

import (
	"log/slog"
	"net/http"

	"github.com/kura-kb/kura/internal/knowledge"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	svc    *knowledge.Service
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. svc backs the
// readiness check.
func NewHealthHandler(svc *knowledge.Service, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK if the knowledge store answers a stats call.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "knowledge service not configured")
		return
	}
	if _, err := h.svc.Stats(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not_ready", "knowledge store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
