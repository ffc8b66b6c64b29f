package api

import (
	"net/http"

	"github.com/coursechat/coursechat/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	svc    QueryService
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
// svc backs the readiness check.
func NewHealthHandler(svc QueryService, logger log.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness is a readiness probe endpoint.
// Returns 200 OK once the query service is wired; the catalog read
// exercises the vector store.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.svc == nil {
		h.logger.Error("readiness check failed", "error", "query service not configured")
		writeError(w, http.StatusServiceUnavailable, "not_ready", "query service not configured")
		return
	}
	total, _ := h.svc.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"total_courses": total,
	})
}
