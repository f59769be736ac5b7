package models

import "time"

// BatchStatus is the lifecycle status of a saved batch configuration.
// "paused" is part of the modeled state space but no transition into it is
// implemented; batch runs go ready -> running -> completed|error.
type BatchStatus string

const (
	BatchReady     BatchStatus = "ready"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchError     BatchStatus = "error"
	BatchPaused    BatchStatus = "paused"
)

// DeviceRunStatus is the per-device outcome within a batch execution.
type DeviceRunStatus string

const (
	DevicePending   DeviceRunStatus = "pending"
	DeviceRunning   DeviceRunStatus = "running"
	DeviceCompleted DeviceRunStatus = "completed"
	DeviceFailed    DeviceRunStatus = "error"
)

// IsTerminal reports whether the device sub-record reached a final state.
func (s DeviceRunStatus) IsTerminal() bool {
	return s == DeviceCompleted || s == DeviceFailed
}

// BatchSchedule controls pacing of a batch run: launches happen in waves of
// MaxConcurrent devices with DelayBetweenSeconds between waves.
type BatchSchedule struct {
	DelayBetweenSeconds int `json:"delay_between_seconds" toml:"delay_between_seconds" yaml:"delay_between_seconds" validate:"min=0"`
	MaxConcurrent       int `json:"max_concurrent" toml:"max_concurrent" yaml:"max_concurrent" validate:"min=1"`
}

// BatchConfig is a named, reusable fleet-launch plan.
type BatchConfig struct {
	ID      string   `json:"id" yaml:"id" badgerhold:"key"`
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Flow    string   `json:"flow" yaml:"flow" validate:"required"`
	Devices []string `json:"devices" yaml:"devices" validate:"min=1,dive,required"`

	// Params is the start-request template merged into every device launch.
	Params   map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Schedule BatchSchedule          `json:"schedule" yaml:"schedule"`

	// CronExpr, when set, runs the batch on a cron schedule in addition to
	// manual execution.
	CronExpr string `json:"cron_expr,omitempty" yaml:"cron_expr,omitempty"`

	Status    BatchStatus `json:"status" yaml:"-"`
	CreatedAt time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt time.Time   `json:"updated_at" yaml:"-"`
}

// Waves partitions the device list into consecutive launch waves of at most
// MaxConcurrent devices. The last wave may be smaller.
func (b *BatchConfig) Waves() [][]string {
	size := b.Schedule.MaxConcurrent
	if size < 1 {
		size = 1
	}
	var waves [][]string
	for i := 0; i < len(b.Devices); i += size {
		end := i + size
		if end > len(b.Devices) {
			end = len(b.Devices)
		}
		waves = append(waves, b.Devices[i:end])
	}
	return waves
}

// DeviceExecution is the per-device sub-record of one batch run.
type DeviceExecution struct {
	DeviceUDID string          `json:"device_udid"`
	Status     DeviceRunStatus `json:"status"`
	SessionID  string          `json:"session_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// BatchExecution is the runtime record of one run of a BatchConfig. The
// sub-record count equals the config's device count and is fixed at
// creation. Re-executing a batch supersedes the previous execution.
type BatchExecution struct {
	ID        string            `json:"id"`
	BatchID   string            `json:"batch_id"`
	Devices   []DeviceExecution `json:"devices"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
}

// NewBatchExecution builds an execution with one pending sub-record per
// device, in config order.
func NewBatchExecution(id string, batch *BatchConfig, now time.Time) *BatchExecution {
	devices := make([]DeviceExecution, len(batch.Devices))
	for i, udid := range batch.Devices {
		devices[i] = DeviceExecution{DeviceUDID: udid, Status: DevicePending}
	}
	return &BatchExecution{
		ID:        id,
		BatchID:   batch.ID,
		Devices:   devices,
		StartedAt: now,
	}
}

// FailedCount returns the number of device sub-records in error state.
func (e *BatchExecution) FailedCount() int {
	n := 0
	for i := range e.Devices {
		if e.Devices[i].Status == DeviceFailed {
			n++
		}
	}
	return n
}

// Clone returns a copy safe to hand outside the batch service.
func (e *BatchExecution) Clone() *BatchExecution {
	c := *e
	c.Devices = append([]DeviceExecution(nil), e.Devices...)
	return &c
}
