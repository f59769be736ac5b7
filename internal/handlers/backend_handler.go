package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/gateway"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// BackendHandler proxies device, session, flow and metrics reads plus
// start/stop commands to the automation backend.
type BackendHandler struct {
	gateway  interfaces.BackendGateway
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewBackendHandler creates a new backend handler
func NewBackendHandler(backendGateway interfaces.BackendGateway, logger arbor.ILogger) *BackendHandler {
	return &BackendHandler{
		gateway:  backendGateway,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListDevicesHandler returns the connected device pool.
// GET /api/devices
func (h *BackendHandler) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	devices, err := h.gateway.ListDevices(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

// ListSessionsHandler returns all backend sessions.
// GET /api/sessions
func (h *BackendHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	sessions, err := h.gateway.ListSessions(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// SessionHandler routes /api/sessions/{id} and /api/sessions/{id}/logs.
func (h *BackendHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		WriteError(w, http.StatusNotFound, "Session id is required")
		return
	}

	switch action {
	case "":
		session, err := h.gateway.GetSession(r.Context(), sessionID)
		if err != nil {
			h.writeGatewayError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, session)
	case "logs":
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		level := models.LogLevel(r.URL.Query().Get("level"))
		if level == "" {
			level = models.LogLevelAll
		}

		logs, err := h.gateway.GetSessionLogs(r.Context(), sessionID, limit, level)
		if err != nil {
			h.writeGatewayError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// StartAutomationHandler launches a flow on one device.
// POST /api/automation/start
func (h *BackendHandler) StartAutomationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.StartRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid start payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.gateway.StartAutomation(r.Context(), req)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.logger.Info().
		Str("session_id", session.ID).
		Str("device_udid", req.DeviceUDID).
		Str("flow", req.Flow).
		Msg("Automation started")
	WriteJSON(w, http.StatusCreated, session)
}

// StopAutomationHandler stops a running session.
// POST /api/automation/{id}/stop
func (h *BackendHandler) StopAutomationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/automation/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" || action != "stop" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	if err := h.gateway.StopAutomation(r.Context(), sessionID); err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.logger.Info().Str("session_id", sessionID).Msg("Automation stopped")
	WriteSuccess(w, "Automation stopped")
}

// ListFlowsHandler returns the backend's flow configurations.
// GET /api/flows
func (h *BackendHandler) ListFlowsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	flows, err := h.gateway.ListFlows(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"flows": flows})
}

// MetricsHandler passes the backend's aggregate metrics through.
// GET /api/backend/metrics
func (h *BackendHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	metrics, err := h.gateway.GetMetrics(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, metrics)
}

// writeGatewayError maps backend failures to the panel's responses. Backend
// status codes pass through; transport failures become 502.
func (h *BackendHandler) writeGatewayError(w http.ResponseWriter, err error) {
	var backendErr *gateway.BackendError
	if errors.As(err, &backendErr) {
		WriteError(w, backendErr.StatusCode, backendErr.Message)
		return
	}
	WriteError(w, http.StatusBadGateway, err.Error())
}
