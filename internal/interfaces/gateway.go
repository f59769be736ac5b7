package interfaces

import (
	"context"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// BackendGateway is the HTTP contract to the device-automation backend.
// All device detection, automation execution and log generation lives
// behind this boundary; the panel only reads and issues start/stop calls.
type BackendGateway interface {
	// ListDevices returns the currently connected devices.
	ListDevices(ctx context.Context) ([]models.Device, error)

	// ListSessions returns all automation sessions known to the backend.
	ListSessions(ctx context.Context) ([]models.AutomationSession, error)

	// GetSession returns the current state of one session.
	GetSession(ctx context.Context, sessionID string) (*models.AutomationSession, error)

	// GetSessionLogs returns the session's log tail, bounded to limit
	// lines. A level other than LogLevelAll filters server-side.
	GetSessionLogs(ctx context.Context, sessionID string, limit int, level models.LogLevel) ([]models.AutomationLog, error)

	// StartAutomation launches a flow on a device and returns the created
	// session.
	StartAutomation(ctx context.Context, req models.StartRequest) (*models.AutomationSession, error)

	// StopAutomation asks the backend to stop a running session.
	StopAutomation(ctx context.Context, sessionID string) error

	// ListFlows returns the backend's flow configurations.
	ListFlows(ctx context.Context) ([]models.FlowConfig, error)

	// GetMetrics returns the backend's aggregate metric groups.
	GetMetrics(ctx context.Context) (*models.BackendMetrics, error)
}
