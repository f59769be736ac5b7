package models

import "time"

// MonitoredSessionEntry is the panel-local wrapper around a session in the
// multi-log viewer: the last-known session snapshot, the accumulated log
// buffer and per-entry view state. Only the session id survives a reload;
// everything else is rebuilt by re-fetching.
type MonitoredSessionEntry struct {
	SessionID string             `json:"session_id"`
	Session   *AutomationSession `json:"session,omitempty"`
	Logs      []AutomationLog    `json:"logs"`

	IsLoading  bool `json:"is_loading"`
	IsPaused   bool `json:"is_paused"`
	AutoScroll bool `json:"auto_scroll"`

	// LevelFilter is applied server-side on fetch; LogLevelAll (or empty)
	// requests every level. SearchTerm is a client-side view filter only.
	LevelFilter LogLevel `json:"level_filter"`
	SearchTerm  string   `json:"search_term"`

	LastError   string    `json:"last_error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep-enough copy for handing snapshots to handlers
// without exposing registry-owned state.
func (e *MonitoredSessionEntry) Clone() *MonitoredSessionEntry {
	c := *e
	if e.Session != nil {
		s := *e.Session
		c.Session = &s
	}
	c.Logs = append([]AutomationLog(nil), e.Logs...)
	return &c
}

// EntryUpdate carries partial per-entry view-state changes. Nil fields are
// left untouched.
type EntryUpdate struct {
	IsPaused    *bool     `json:"is_paused,omitempty"`
	AutoScroll  *bool     `json:"auto_scroll,omitempty"`
	LevelFilter *LogLevel `json:"level_filter,omitempty"`
	SearchTerm  *string   `json:"search_term,omitempty"`
}
