// Package scheduler runs saved batches on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	"github.com/Pimboto/automation-bot-ui/internal/services/batch"
	"github.com/Pimboto/automation-bot-ui/internal/services/events"
)

// Service implements SchedulerService on top of robfig/cron. Each registered
// batch gets one cron entry; a firing that collides with a running execution
// is skipped with a warning.
type Service struct {
	batchService interfaces.BatchService
	eventService interfaces.EventService
	cron         *cron.Cron
	logger       arbor.ILogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// NewService creates a new scheduler service
func NewService(batchService interfaces.BatchService, eventService interfaces.EventService, logger arbor.ILogger) interfaces.SchedulerService {
	return &Service{
		batchService: batchService,
		eventService: eventService,
		cron:         cron.New(),
		logger:       logger,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start begins firing registered schedules.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	// Pick up cron expressions on configs saved before startup.
	for _, cfg := range s.batchService.ListConfigs() {
		if cfg.CronExpr == "" {
			continue
		}
		if err := s.register(cfg.ID, cfg.CronExpr); err != nil {
			s.logger.Warn().
				Err(err).
				Str("batch_id", cfg.ID).
				Msg("Skipping invalid cron expression")
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("schedules", len(s.entries)).Msg("Batch scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a firing in progress to return.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Batch scheduler stopped")
	return nil
}

// RegisterBatch adds or replaces the cron schedule for a batch.
func (s *Service) RegisterBatch(batchID, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(batchID, cronExpr)
}

// register assumes s.mu is held.
func (s *Service) register(batchID, cronExpr string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression is required")
	}
	if existing, ok := s.entries[batchID]; ok {
		s.cron.Remove(existing)
		delete(s.entries, batchID)
	}

	id, err := s.cron.AddFunc(cronExpr, func() { s.fire(batchID) })
	if err != nil {
		return fmt.Errorf("failed to add cron schedule: %w", err)
	}
	s.entries[batchID] = id

	s.logger.Info().
		Str("batch_id", batchID).
		Str("cron_expr", cronExpr).
		Msg("Batch schedule registered")
	return nil
}

// UnregisterBatch removes a batch's schedule. Unknown ids are a no-op.
func (s *Service) UnregisterBatch(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[batchID]; ok {
		s.cron.Remove(id)
		delete(s.entries, batchID)
		s.logger.Info().Str("batch_id", batchID).Msg("Batch schedule removed")
	}
	return nil
}

// IsRunning reports whether the scheduler is started.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// fire executes one scheduled batch run. A collision with an execution
// already in progress skips this firing rather than queueing it.
func (s *Service) fire(batchID string) {
	ctx := context.Background()

	s.logger.Info().Str("batch_id", batchID).Msg("Scheduled batch firing")

	_, err := s.batchService.Execute(ctx, batchID)
	if errors.Is(err, batch.ErrExecutionInProgress) {
		s.logger.Warn().
			Str("batch_id", batchID).
			Msg("Scheduled batch skipped, another execution is in progress")
		events.Notify(ctx, s.eventService, interfaces.Notification{
			Kind:    interfaces.NotifyWarning,
			Title:   "Scheduled batch skipped",
			Message: "Another batch execution was already running",
		})
		return
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("batch_id", batchID).
			Msg("Scheduled batch failed")
	}
}
