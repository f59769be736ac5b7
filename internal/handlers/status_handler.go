package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
)

// StatusHandler reports panel health and component state.
type StatusHandler struct {
	monitor   interfaces.MonitorService
	batches   interfaces.BatchService
	scheduler interfaces.SchedulerService
	gateway   interfaces.BackendGateway
	logger    arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	monitor interfaces.MonitorService,
	batches interfaces.BatchService,
	scheduler interfaces.SchedulerService,
	backendGateway interfaces.BackendGateway,
	logger arbor.ILogger,
) *StatusHandler {
	return &StatusHandler{
		monitor:   monitor,
		batches:   batches,
		scheduler: scheduler,
		gateway:   backendGateway,
		logger:    logger,
	}
}

// GetStatusHandler returns panel status.
// GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	backendUp := true
	if _, err := h.gateway.ListDevices(r.Context()); err != nil {
		backendUp = false
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":            common.Version,
		"backend_reachable":  backendUp,
		"monitored_sessions": len(h.monitor.ListEntries()),
		"batch_executing":    h.batches.IsExecuting(),
		"scheduler_running":  h.scheduler.IsRunning(),
	})
}

// VersionHandler returns the build version.
// GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.Version,
		"build":   common.Build,
	})
}

// NotFoundHandler answers unmatched /api/ paths.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found")
}
