package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
	"github.com/Pimboto/automation-bot-ui/internal/services/batch"
)

// BatchHandler exposes batch configuration CRUD, execution and sharing.
type BatchHandler struct {
	batches   interfaces.BatchService
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batches interfaces.BatchService, scheduler interfaces.SchedulerService, logger arbor.ILogger) *BatchHandler {
	return &BatchHandler{
		batches:   batches,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CollectionHandler routes /api/batches.
// GET lists saved configs, POST creates one.
func (h *BatchHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"batches":   h.batches.ListConfigs(),
			"executing": h.batches.IsExecuting(),
		})
	case "POST":
		h.create(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ImportHandler creates a config from a shared YAML document.
// POST /api/batches/import
func (h *BatchHandler) ImportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	cfg, err := batch.ImportYAML(data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.batches.CreateConfig(r.Context(), cfg); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.registerSchedule(cfg)
	WriteJSON(w, http.StatusCreated, cfg)
}

// ItemHandler routes /api/batches/{id} and its sub-paths.
func (h *BatchHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	if rest == "import" {
		h.ImportHandler(w, r)
		return
	}

	batchID, action, _ := strings.Cut(rest, "/")
	if batchID == "" {
		WriteError(w, http.StatusNotFound, "Batch id is required")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case "GET":
			h.get(w, r, batchID)
		case "PUT":
			h.update(w, r, batchID)
		case "DELETE":
			h.delete(w, r, batchID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "execute":
		h.execute(w, r, batchID)
	case "execution":
		h.execution(w, r, batchID)
	case "export":
		h.export(w, r, batchID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *BatchHandler) create(w http.ResponseWriter, r *http.Request) {
	var cfg models.BatchConfig
	if err := DecodeJSON(r, &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid batch config payload")
		return
	}
	if err := h.batches.CreateConfig(r.Context(), &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.registerSchedule(&cfg)
	WriteJSON(w, http.StatusCreated, &cfg)
}

func (h *BatchHandler) get(w http.ResponseWriter, r *http.Request, batchID string) {
	cfg, ok := h.batches.GetConfig(batchID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Batch config not found")
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

func (h *BatchHandler) update(w http.ResponseWriter, r *http.Request, batchID string) {
	var cfg models.BatchConfig
	if err := DecodeJSON(r, &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid batch config payload")
		return
	}
	cfg.ID = batchID
	if err := h.batches.UpdateConfig(r.Context(), &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cfg.CronExpr == "" {
		if h.scheduler != nil {
			_ = h.scheduler.UnregisterBatch(batchID)
		}
	} else {
		h.registerSchedule(&cfg)
	}
	WriteJSON(w, http.StatusOK, &cfg)
}

func (h *BatchHandler) delete(w http.ResponseWriter, r *http.Request, batchID string) {
	if h.scheduler != nil {
		_ = h.scheduler.UnregisterBatch(batchID)
	}
	if err := h.batches.DeleteConfig(r.Context(), batchID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteSuccess(w, "Batch config deleted")
}

// execute starts a batch run in the background. The execution endpoint and
// websocket events report progress.
// POST /api/batches/{id}/execute
func (h *BatchHandler) execute(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if _, ok := h.batches.GetConfig(batchID); !ok {
		WriteError(w, http.StatusNotFound, "Batch config not found")
		return
	}
	if h.batches.IsExecuting() {
		WriteError(w, http.StatusConflict, "Another batch execution is already in progress")
		return
	}

	// Detached context: the run must outlive this request.
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error().
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("batch_id", batchID).
					Msg("PANIC RECOVERED in batch execution")
			}
		}()
		if _, err := h.batches.Execute(context.Background(), batchID); err != nil {
			h.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Batch execution failed")
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "started",
		"batch_id": batchID,
	})
}

// execution returns the latest run of a batch.
// GET /api/batches/{id}/execution
func (h *BatchHandler) execution(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	exec, ok := h.batches.GetExecution(batchID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Batch has not been executed")
		return
	}
	WriteJSON(w, http.StatusOK, exec)
}

// export serves the config as shareable YAML.
// GET /api/batches/{id}/export
func (h *BatchHandler) export(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	cfg, ok := h.batches.GetConfig(batchID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Batch config not found")
		return
	}
	data, err := batch.ExportYAML(cfg)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="batch_`+cfg.Name+`.yaml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *BatchHandler) registerSchedule(cfg *models.BatchConfig) {
	if h.scheduler == nil || cfg.CronExpr == "" {
		return
	}
	if err := h.scheduler.RegisterBatch(cfg.ID, cfg.CronExpr); err != nil {
		h.logger.Warn().
			Err(err).
			Str("batch_id", cfg.ID).
			Msg("Failed to register batch schedule")
	}
}
