package models

import "time"

// LogLevel is the severity of a single automation log line.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogLevelAll is the level-filter wildcard accepted by the monitor and the
// log filter engine. It is not a valid level for a log line itself.
const LogLevelAll LogLevel = "all"

// AutomationLog is one log line emitted by a session. Immutable once
// received; ordering is as returned by the backend (chronological).
type AutomationLog struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
