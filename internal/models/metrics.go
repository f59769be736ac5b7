package models

import "time"

// CheckpointEvent is one observed checkpoint transition in a session's logs.
type CheckpointEvent struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMetrics are derived, recomputed-on-demand aggregates over one
// session's log set. Never persisted.
type SessionMetrics struct {
	SessionID            string            `json:"session_id"`
	DeviceName           string            `json:"device_name,omitempty"`
	Flow                 string            `json:"flow,omitempty"`
	TotalLogs            int               `json:"total_logs"`
	ErrorCount           int               `json:"error_count"`
	WarningCount         int               `json:"warning_count"`
	DurationSeconds      float64           `json:"duration_seconds"`
	CheckpointsCompleted int               `json:"checkpoints_completed"`
	AvgCheckpointSeconds float64           `json:"avg_checkpoint_seconds"`
	ErrorRate            float64           `json:"error_rate"`
	Timeline             []CheckpointEvent `json:"timeline,omitempty"`
}

// MetricExtremes names the best and worst session for one comparison metric.
type MetricExtremes struct {
	Best  string `json:"best"`
	Worst string `json:"worst"`
}

// ComparisonResult is the side-by-side comparison of a small set of
// sessions: per-session metrics, per-metric best/worst, and the overall
// winner by metric win count.
type ComparisonResult struct {
	Sessions    []SessionMetrics          `json:"sessions"`
	Analysis    map[string]MetricExtremes `json:"metric_analysis"`
	WinCounts   map[string]int            `json:"win_counts"`
	BestOverall string                    `json:"best_overall"`
}

// BackendMetrics is the aggregate metrics document returned by the backend,
// grouped by subsystem. Passed through to the UI untouched.
type BackendMetrics struct {
	System     map[string]interface{} `json:"system,omitempty"`
	Automation map[string]interface{} `json:"automation,omitempty"`
	Devices    map[string]interface{} `json:"devices,omitempty"`
	API        map[string]interface{} `json:"api,omitempty"`
	Server     map[string]interface{} `json:"server,omitempty"`
}
