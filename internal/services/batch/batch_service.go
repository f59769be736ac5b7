// Package batch runs automation flows across a device fleet in staggered
// waves. At most one batch execution runs at a time process-wide.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/models"
	"github.com/Pimboto/automation-bot-ui/internal/services/events"
)

// ErrExecutionInProgress is returned when Execute is called while another
// batch is running.
var ErrExecutionInProgress = fmt.Errorf("another batch execution is already in progress")

// Service implements BatchService.
type Service struct {
	gateway  interfaces.BackendGateway
	storage  interfaces.BatchConfigStorage
	events   interfaces.EventService
	logger   arbor.ILogger
	validate *validator.Validate
	stagger  time.Duration

	mu         sync.RWMutex
	configs    map[string]*models.BatchConfig
	executions map[string]*models.BatchExecution
	executing  bool
}

// NewService creates the batch service and loads persisted configurations.
func NewService(
	config *common.Config,
	gateway interfaces.BackendGateway,
	storage interfaces.BatchConfigStorage,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) (interfaces.BatchService, error) {
	s := &Service{
		gateway:    gateway,
		storage:    storage,
		events:     eventService,
		logger:     logger,
		validate:   validator.New(),
		stagger:    config.Batch.StaggerDuration(),
		configs:    make(map[string]*models.BatchConfig),
		executions: make(map[string]*models.BatchExecution),
	}

	if storage != nil {
		saved, err := storage.ListConfigs(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load batch configs: %w", err)
		}
		for _, cfg := range saved {
			// A run interrupted by shutdown is not still running.
			if cfg.Status == models.BatchRunning {
				cfg.Status = models.BatchReady
			}
			s.configs[cfg.ID] = cfg
		}
		logger.Info().Int("count", len(saved)).Msg("Batch configs loaded")
	}

	return s, nil
}

// CreateConfig validates and saves a new batch configuration. Names must be
// unique among saved configs.
func (s *Service) CreateConfig(ctx context.Context, cfg *models.BatchConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid batch config: %w", err)
	}
	if cfg.Schedule.MaxConcurrent < 1 {
		cfg.Schedule.MaxConcurrent = 1
	}

	s.mu.Lock()
	for _, existing := range s.configs {
		if strings.EqualFold(existing.Name, cfg.Name) {
			s.mu.Unlock()
			return fmt.Errorf("batch config named %q already exists", cfg.Name)
		}
	}

	if cfg.ID == "" {
		cfg.ID = common.NewBatchID()
	}
	now := time.Now()
	cfg.Status = models.BatchReady
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()

	if err := s.save(ctx, cfg); err != nil {
		return err
	}

	s.logger.Info().
		Str("batch_id", cfg.ID).
		Str("name", cfg.Name).
		Int("devices", len(cfg.Devices)).
		Msg("Batch config created")
	return nil
}

// UpdateConfig replaces an existing configuration.
func (s *Service) UpdateConfig(ctx context.Context, cfg *models.BatchConfig) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid batch config: %w", err)
	}

	s.mu.Lock()
	existing, ok := s.configs[cfg.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("batch config %s not found", cfg.ID)
	}
	for id, other := range s.configs {
		if id != cfg.ID && strings.EqualFold(other.Name, cfg.Name) {
			s.mu.Unlock()
			return fmt.Errorf("batch config named %q already exists", cfg.Name)
		}
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.Status = existing.Status
	cfg.UpdatedAt = time.Now()
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()

	return s.save(ctx, cfg)
}

// GetConfig returns one saved configuration.
func (s *Service) GetConfig(id string) (*models.BatchConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[id]
	if !ok {
		return nil, false
	}
	copied := *cfg
	return &copied, true
}

// ListConfigs returns all saved configurations sorted by creation time.
func (s *Service) ListConfigs() []*models.BatchConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]*models.BatchConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		copied := *cfg
		configs = append(configs, &copied)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs
}

// DeleteConfig removes a saved configuration. Missing ids are a no-op.
func (s *Service) DeleteConfig(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.configs, id)
	delete(s.executions, id)
	s.mu.Unlock()

	if s.storage != nil {
		return s.storage.DeleteConfig(ctx, id)
	}
	return nil
}

// IsExecuting reports whether a batch execution is currently running.
func (s *Service) IsExecuting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executing
}

// GetExecution returns the latest execution for a batch.
func (s *Service) GetExecution(batchID string) (*models.BatchExecution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[batchID]
	if !ok {
		return nil, false
	}
	return exec.Clone(), true
}

// Execute runs a batch to completion: devices are partitioned into waves
// of MaxConcurrent, launches within a wave are staggered per slot, and
// waves are separated by the configured delay. Every device reaches a
// terminal state; one device's failure never aborts its siblings.
func (s *Service) Execute(ctx context.Context, batchID string) (*models.BatchExecution, error) {
	s.mu.Lock()
	if s.executing {
		s.mu.Unlock()
		events.Notify(ctx, s.events, interfaces.Notification{
			Kind:    interfaces.NotifyWarning,
			Title:   "Batch not started",
			Message: "Another batch is already executing",
		})
		return nil, ErrExecutionInProgress
	}
	cfg, ok := s.configs[batchID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("batch config %s not found", batchID)
	}

	s.executing = true
	cfg.Status = models.BatchRunning
	cfg.UpdatedAt = time.Now()
	execution := models.NewBatchExecution(common.NewExecutionID(), cfg, time.Now())
	s.executions[batchID] = execution
	batch := *cfg
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.executing = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Str("batch_id", batchID).
		Str("execution_id", execution.ID).
		Int("devices", len(batch.Devices)).
		Int("max_concurrent", batch.Schedule.MaxConcurrent).
		Msg("Batch execution started")

	offset := 0
	waves := batch.Waves()
	for w, wave := range waves {
		var wg sync.WaitGroup
		for k, udid := range wave {
			wg.Add(1)
			go func(slot int, index int, udid string) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						s.failDevice(ctx, batchID, execution, index, fmt.Sprintf("panic: %v", r))
						s.logger.Error().
							Str("panic", fmt.Sprintf("%v", r)).
							Str("device_udid", udid).
							Msg("PANIC RECOVERED in batch launch")
					}
				}()

				time.Sleep(time.Duration(slot) * s.stagger)
				s.launchDevice(ctx, batchID, &batch, execution, index, udid)
			}(k, offset+k, udid)
		}
		wg.Wait()
		offset += len(wave)

		if w < len(waves)-1 && batch.Schedule.DelayBetweenSeconds > 0 {
			time.Sleep(time.Duration(batch.Schedule.DelayBetweenSeconds) * time.Second)
		}
	}

	now := time.Now()
	failed := 0

	s.mu.Lock()
	execution.EndedAt = &now
	failed = execution.FailedCount()
	status := models.BatchCompleted
	if failed > 0 {
		status = models.BatchError
	}
	saved := batch
	if current, ok := s.configs[batchID]; ok {
		current.Status = status
		current.UpdatedAt = now
		saved = *current
	}
	result := execution.Clone()
	s.mu.Unlock()

	if err := s.save(ctx, &saved); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", batchID).Msg("Failed to persist batch status")
	}

	kind := interfaces.NotifySuccess
	message := fmt.Sprintf("All %d devices completed", len(batch.Devices))
	if failed > 0 {
		kind = interfaces.NotifyError
		message = fmt.Sprintf("%d of %d devices failed", failed, len(batch.Devices))
	}
	events.Notify(ctx, s.events, interfaces.Notification{
		Kind:    kind,
		Title:   fmt.Sprintf("Batch %q finished", batch.Name),
		Message: message,
		Actions: []interfaces.NotificationAction{
			{Label: "View details", URL: "/batches/" + batchID},
		},
	})
	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventBatchFinished,
			Payload: result,
		})
	}

	s.logger.Info().
		Str("batch_id", batchID).
		Str("status", string(status)).
		Int("failed", failed).
		Msg("Batch execution finished")

	return result, nil
}

// launchDevice runs one device launch to a terminal state. Availability is
// checked with a fresh device lookup; unavailable devices fail without a
// start request being issued.
func (s *Service) launchDevice(ctx context.Context, batchID string, batch *models.BatchConfig, execution *models.BatchExecution, index int, udid string) {
	now := time.Now()
	s.mu.Lock()
	execution.Devices[index].Status = models.DeviceRunning
	execution.Devices[index].StartedAt = &now
	s.mu.Unlock()
	s.publishProgress(ctx, batchID, udid, models.DeviceRunning)

	if !s.deviceAvailable(ctx, udid) {
		s.failDevice(ctx, batchID, execution, index, "Device not available")
		events.Notify(ctx, s.events, interfaces.Notification{
			Kind:       interfaces.NotifyError,
			Title:      "Session error",
			Message:    "Device not available",
			DeviceUDID: udid,
		})
		return
	}

	req := models.StartRequest{
		DeviceUDID: udid,
		Flow:       batch.Flow,
	}.MergeParams(batch.Params)

	session, err := s.gateway.StartAutomation(ctx, req)
	if err != nil {
		s.failDevice(ctx, batchID, execution, index, err.Error())
		events.Notify(ctx, s.events, interfaces.Notification{
			Kind:       interfaces.NotifyError,
			Title:      "Session error",
			Message:    err.Error(),
			DeviceUDID: udid,
		})
		return
	}

	end := time.Now()
	s.mu.Lock()
	execution.Devices[index].Status = models.DeviceCompleted
	execution.Devices[index].SessionID = session.ID
	execution.Devices[index].EndedAt = &end
	s.mu.Unlock()
	s.publishProgress(ctx, batchID, udid, models.DeviceCompleted)

	events.Notify(ctx, s.events, interfaces.Notification{
		Kind:       interfaces.NotifySuccess,
		Title:      "Session started",
		Message:    fmt.Sprintf("Flow %s started on %s", batch.Flow, udid),
		DeviceUDID: udid,
	})
}

func (s *Service) failDevice(ctx context.Context, batchID string, execution *models.BatchExecution, index int, message string) {
	now := time.Now()
	s.mu.Lock()
	udid := execution.Devices[index].DeviceUDID
	execution.Devices[index].Status = models.DeviceFailed
	execution.Devices[index].Error = message
	execution.Devices[index].EndedAt = &now
	s.mu.Unlock()
	s.publishProgress(ctx, batchID, udid, models.DeviceFailed)

	s.logger.Warn().
		Str("batch_id", batchID).
		Str("device_udid", udid).
		Str("error", message).
		Msg("Batch device failed")
}

// deviceAvailable does a fresh lookup against the backend's device list.
func (s *Service) deviceAvailable(ctx context.Context, udid string) bool {
	devices, err := s.gateway.ListDevices(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Device lookup failed")
		return false
	}
	for _, d := range devices {
		if d.UDID == udid {
			return d.Available
		}
	}
	return false
}

func (s *Service) publishProgress(ctx context.Context, batchID, udid string, status models.DeviceRunStatus) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventBatchProgress,
		Payload: map[string]interface{}{
			"batch_id":    batchID,
			"device_udid": udid,
			"status":      string(status),
		},
	})
}

func (s *Service) save(ctx context.Context, cfg *models.BatchConfig) error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to persist batch config: %w", err)
	}
	return nil
}
