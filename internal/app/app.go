// Package app wires configuration, storage, services and handlers together.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/gateway"
	"github.com/Pimboto/automation-bot-ui/internal/handlers"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
	badgerstore "github.com/Pimboto/automation-bot-ui/internal/storage/badger"

	"github.com/Pimboto/automation-bot-ui/internal/services/batch"
	"github.com/Pimboto/automation-bot-ui/internal/services/compare"
	"github.com/Pimboto/automation-bot-ui/internal/services/events"
	"github.com/Pimboto/automation-bot-ui/internal/services/monitor"
	"github.com/Pimboto/automation-bot-ui/internal/services/scheduler"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB           *badgerstore.BadgerDB
	KVStorage    interfaces.KeyValueStorage
	BatchStorage interfaces.BatchConfigStorage

	// Services
	EventService     interfaces.EventService
	Gateway          interfaces.BackendGateway
	MonitorService   interfaces.MonitorService
	BatchService     interfaces.BatchService
	SchedulerService interfaces.SchedulerService
	CompareService   *compare.Service

	// HTTP handlers
	MonitorHandler *handlers.MonitorHandler
	BatchHandler   *handlers.BatchHandler
	CompareHandler *handlers.CompareHandler
	BackendHandler *handlers.BackendHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	logger.Info().
		Str("backend_url", cfg.Backend.URL).
		Msg("Application initialization complete")
	return app, nil
}

func (a *App) initStorage() error {
	db, err := badgerstore.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.KVStorage = badgerstore.NewKVStorage(db, a.Logger)
	a.BatchStorage = badgerstore.NewBatchStorage(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	a.Gateway = gateway.NewClient(&a.Config.Backend, a.Logger)

	a.MonitorService = monitor.NewService(a.Config, a.Gateway, a.KVStorage, a.EventService, a.Logger)

	batchService, err := batch.NewService(a.Config, a.Gateway, a.BatchStorage, a.EventService, a.Logger)
	if err != nil {
		return err
	}
	a.BatchService = batchService

	a.SchedulerService = scheduler.NewService(a.BatchService, a.EventService, a.Logger)
	a.CompareService = compare.NewService(a.Gateway, a.Logger)
	return nil
}

func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	a.MonitorHandler = handlers.NewMonitorHandler(a.MonitorService, a.Gateway, a.Logger)
	a.BatchHandler = handlers.NewBatchHandler(a.BatchService, a.SchedulerService, a.Logger)
	a.CompareHandler = handlers.NewCompareHandler(a.CompareService, a.Logger)
	a.BackendHandler = handlers.NewBackendHandler(a.Gateway, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.MonitorService, a.BatchService, a.SchedulerService, a.Gateway, a.Logger)
}

// Start restores persisted state and begins background work.
func (a *App) Start(ctx context.Context) error {
	if err := a.MonitorService.Restore(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to restore monitored sessions")
	}
	a.MonitorService.Start()

	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts down background work and releases storage.
func (a *App) Close() error {
	a.MonitorService.Stop()

	if err := a.SchedulerService.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler shutdown failed")
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service shutdown failed")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
