package models

import "time"

// SessionStatus is the lifecycle status of an automation session.
// Sessions are owned by the backend; the panel only holds refreshed copies.
type SessionStatus string

const (
	SessionInitializing SessionStatus = "initializing"
	SessionRunning      SessionStatus = "running"
	SessionCompleted    SessionStatus = "completed"
	SessionError        SessionStatus = "error"
	SessionStopped      SessionStatus = "stopped"
)

// IsTerminal reports whether the session can no longer produce new logs.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionError || s == SessionStopped
}

// AutomationSession is one execution of an automation flow on one device.
// The backend is the source of truth; fields are merged in on every refresh.
type AutomationSession struct {
	ID         string        `json:"id"`
	DeviceUDID string        `json:"device_udid"`
	DeviceName string        `json:"device_name,omitempty"`
	Flow       string        `json:"flow"`
	Checkpoint string        `json:"checkpoint,omitempty"`
	Status     SessionStatus `json:"status"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`

	// RunCount/MaxRuns track finite-repeat mode. Infinite sessions have
	// Infinite=true and MaxRuns is ignored.
	RunCount int  `json:"run_count"`
	MaxRuns  int  `json:"max_runs"`
	Infinite bool `json:"infinite"`

	LastError string `json:"last_error,omitempty"`
}

// Duration returns wall-clock time from start to end, or to now for
// sessions that have not ended. Zero when the session never started.
func (s *AutomationSession) Duration(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(*s.StartedAt) {
		return 0
	}
	return end.Sub(*s.StartedAt)
}
