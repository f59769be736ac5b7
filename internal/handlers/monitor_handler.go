package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
	logsvc "github.com/Pimboto/automation-bot-ui/internal/services/logs"
)

// MonitorHandler exposes the multi-log viewer's session registry.
type MonitorHandler struct {
	monitor interfaces.MonitorService
	gateway interfaces.BackendGateway
	logger  arbor.ILogger
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitor interfaces.MonitorService, gateway interfaces.BackendGateway, logger arbor.ILogger) *MonitorHandler {
	return &MonitorHandler{
		monitor: monitor,
		gateway: gateway,
		logger:  logger,
	}
}

// ListEntriesHandler returns all monitored session entries.
// GET /api/monitor
func (h *MonitorHandler) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": h.monitor.ListEntries(),
	})
}

// AddSessionHandler adds a session to the monitor.
// POST /api/monitor {"session_id": "..."}
func (h *MonitorHandler) AddSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := DecodeJSON(r, &req); err != nil || req.SessionID == "" {
		WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	session, err := h.gateway.GetSession(r.Context(), req.SessionID)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := h.monitor.AddSession(r.Context(), session, true); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry, _ := h.monitor.GetEntry(req.SessionID)
	WriteJSON(w, http.StatusOK, entry)
}

// EntryHandler routes /api/monitor/{id} and its sub-paths.
func (h *MonitorHandler) EntryHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/monitor/")
	if rest == "" {
		WriteError(w, http.StatusNotFound, "Session id is required")
		return
	}

	sessionID, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		switch r.Method {
		case "GET":
			h.getEntry(w, r, sessionID)
		case "PATCH", "PUT":
			h.updateEntry(w, r, sessionID)
		case "DELETE":
			h.removeEntry(w, r, sessionID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "refresh":
		h.refreshEntry(w, r, sessionID)
	case "logs":
		h.entryLogs(w, r, sessionID)
	case "export":
		h.exportEntry(w, r, sessionID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *MonitorHandler) getEntry(w http.ResponseWriter, r *http.Request, sessionID string) {
	entry, ok := h.monitor.GetEntry(sessionID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Session is not monitored")
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

func (h *MonitorHandler) updateEntry(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, ok := h.monitor.GetEntry(sessionID); !ok {
		WriteError(w, http.StatusNotFound, "Session is not monitored")
		return
	}

	var update models.EntryUpdate
	if err := DecodeJSON(r, &update); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid update payload")
		return
	}
	if err := h.monitor.UpdateEntry(sessionID, update); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry, _ := h.monitor.GetEntry(sessionID)
	WriteJSON(w, http.StatusOK, entry)
}

func (h *MonitorHandler) removeEntry(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.monitor.RemoveSession(r.Context(), sessionID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "Session removed from monitor")
}

// refreshEntry triggers an immediate fetch outside the polling schedule.
// POST /api/monitor/{id}/refresh
func (h *MonitorHandler) refreshEntry(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if _, ok := h.monitor.GetEntry(sessionID); !ok {
		WriteError(w, http.StatusNotFound, "Session is not monitored")
		return
	}
	if err := h.monitor.FetchLogsFor(r.Context(), sessionID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entry, _ := h.monitor.GetEntry(sessionID)
	WriteJSON(w, http.StatusOK, entry)
}

// entryLogs returns the entry's log buffer through the filter engine, with
// derived statistics over the filtered set.
// GET /api/monitor/{id}/logs?level=&search=&case_sensitive=&pattern=&start=&end=
func (h *MonitorHandler) entryLogs(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	entry, ok := h.monitor.GetEntry(sessionID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Session is not monitored")
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filtered := logsvc.FilterLogs(entry.Logs, filter)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  filtered,
		"stats": logsvc.ComputeStats(filtered),
	})
}

// exportEntry serializes the entry's (optionally filtered) logs.
// GET /api/monitor/{id}/export?format=csv&level=...
func (h *MonitorHandler) exportEntry(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	entry, ok := h.monitor.GetEntry(sessionID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Session is not monitored")
		return
	}

	format, err := logsvc.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := filterFromQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := logsvc.SessionMeta{SessionID: sessionID}
	if entry.Session != nil {
		meta.DeviceName = entry.Session.DeviceName
		meta.Flow = entry.Session.Flow
		meta.Status = string(entry.Session.Status)
	}

	export, err := logsvc.ExportLogs(logsvc.FilterLogs(entry.Logs, filter), meta, format, time.Now())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", export.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(export.Data)
}

// filterFromQuery builds a log filter from query parameters. Timestamps are
// RFC 3339.
func filterFromQuery(r *http.Request) (logsvc.Filter, error) {
	q := r.URL.Query()
	filter := logsvc.Filter{
		Level:         models.LogLevel(q.Get("level")),
		SearchTerm:    q.Get("search"),
		CaseSensitive: q.Get("case_sensitive") == "true",
		Pattern:       q.Get("pattern"),
	}

	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.EndTime = &t
	}
	return filter, nil
}
