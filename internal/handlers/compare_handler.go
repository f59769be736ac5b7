package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/services/compare"
)

// CompareHandler exposes the session comparison engine.
type CompareHandler struct {
	compare *compare.Service
	logger  arbor.ILogger
}

// NewCompareHandler creates a new compare handler
func NewCompareHandler(compareService *compare.Service, logger arbor.ILogger) *CompareHandler {
	return &CompareHandler{
		compare: compareService,
		logger:  logger,
	}
}

// CompareHandler ranks a small set of sessions side by side.
// POST /api/compare {"session_ids": ["a", "b"]}
func (h *CompareHandler) CompareHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		SessionIDs []string `json:"session_ids"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid compare payload")
		return
	}

	result, err := h.compare.CompareSessions(r.Context(), req.SessionIDs)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
