package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coursechat/coursechat/internal/log"
	"github.com/coursechat/coursechat/internal/tools"
)

// maxQueryBytes caps the request body size for /api/query.
const maxQueryBytes = 64 * 1024

// QueryHandler answers questions over HTTP.
type QueryHandler struct {
	svc    QueryService
	logger log.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(svc QueryService, logger log.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.handleQuery)
}

// QueryRequest is the request body for POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the response body for POST /api/query.
type QueryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []tools.Citation `json:"sources"`
	SessionID string           `json:"session_id"`
}

func (h *QueryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	answer, err := h.svc.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "failed to answer query")
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []tools.Citation{}
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}
