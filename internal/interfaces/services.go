package interfaces

import (
	"context"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// MonitorService is the multi-log viewer's session registry: a keyed
// collection of monitored sessions refreshed by polling.
type MonitorService interface {
	AddSession(ctx context.Context, session *models.AutomationSession, persist bool) error
	RemoveSession(ctx context.Context, sessionID string) error
	UpdateEntry(sessionID string, update models.EntryUpdate) error
	FetchLogsFor(ctx context.Context, sessionID string) error
	GetEntry(sessionID string) (*models.MonitoredSessionEntry, bool)
	ListEntries() []*models.MonitoredSessionEntry
	Restore(ctx context.Context) error
	Start()
	Stop()
}

// BatchService schedules and tracks batched automation launches across a
// device pool. At most one execution runs at a time process-wide.
type BatchService interface {
	CreateConfig(ctx context.Context, cfg *models.BatchConfig) error
	UpdateConfig(ctx context.Context, cfg *models.BatchConfig) error
	GetConfig(id string) (*models.BatchConfig, bool)
	ListConfigs() []*models.BatchConfig
	DeleteConfig(ctx context.Context, id string) error

	// Execute runs the batch to completion. It returns an error without
	// side effects when another execution is already running.
	Execute(ctx context.Context, batchID string) (*models.BatchExecution, error)
	GetExecution(batchID string) (*models.BatchExecution, bool)
	IsExecuting() bool
}

// SchedulerService runs saved batches on cron schedules.
type SchedulerService interface {
	Start() error
	Stop() error
	RegisterBatch(batchID, cronExpr string) error
	UnregisterBatch(batchID string) error
	IsRunning() bool
}
