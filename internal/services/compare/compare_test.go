package compare

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

func TestBuildMetrics(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(100 * time.Second)
	session := &models.AutomationSession{
		ID:         "sess-a",
		DeviceName: "iPhone 15",
		Flow:       "login_flow",
		Checkpoint: "init",
		Status:     models.SessionCompleted,
		StartedAt:  &start,
		EndedAt:    &end,
	}
	logs := []models.AutomationLog{
		{Timestamp: start, Level: models.LogLevelInfo, Message: "Checkpoint: init"},
		{Timestamp: start.Add(20 * time.Second), Level: models.LogLevelInfo, Message: "CHECKPOINT: login"},
		{Timestamp: start.Add(30 * time.Second), Level: models.LogLevelError, Message: "tap failed"},
		{Timestamp: start.Add(40 * time.Second), Level: models.LogLevelWarn, Message: "slow"},
		{Timestamp: start.Add(60 * time.Second), Level: models.LogLevelInfo, Message: "checkpoint: login"},
		{Timestamp: start.Add(80 * time.Second), Level: models.LogLevelInfo, Message: "checkpoint: done"},
	}

	m := BuildMetrics(session, logs, end)

	assert.Equal(t, "sess-a", m.SessionID)
	assert.Equal(t, 6, m.TotalLogs)
	assert.Equal(t, 1, m.ErrorCount)
	assert.Equal(t, 1, m.WarningCount)
	assert.InDelta(t, 100.0, m.DurationSeconds, 0.0001)
	assert.InDelta(t, 1.0/6.0, m.ErrorRate, 0.0001)

	// "init" matches the seeded current checkpoint and the repeated "login"
	// is not a transition, so the timeline is login then done.
	require.Len(t, m.Timeline, 2)
	assert.Equal(t, "login", m.Timeline[0].Name)
	assert.Equal(t, "done", m.Timeline[1].Name)
	assert.Equal(t, 2, m.CheckpointsCompleted)
	assert.InDelta(t, 50.0, m.AvgCheckpointSeconds, 0.0001)
}

func TestBuildMetricsNoCheckpointsNoLogs(t *testing.T) {
	session := &models.AutomationSession{ID: "sess-b", Status: models.SessionRunning}
	m := BuildMetrics(session, nil, time.Now())

	assert.Zero(t, m.TotalLogs)
	assert.Zero(t, m.ErrorRate)
	assert.Zero(t, m.CheckpointsCompleted)
	assert.Zero(t, m.AvgCheckpointSeconds)
	assert.Zero(t, m.DurationSeconds)
}

func TestCompareErrorCountExtremes(t *testing.T) {
	a := models.SessionMetrics{SessionID: "a", TotalLogs: 10, ErrorCount: 2, ErrorRate: 0.2}
	b := models.SessionMetrics{SessionID: "b", TotalLogs: 10, ErrorCount: 0, ErrorRate: 0}

	result, err := Compare([]models.SessionMetrics{a, b})
	require.NoError(t, err)

	assert.Equal(t, "b", result.Analysis["error_count"].Best)
	assert.Equal(t, "a", result.Analysis["error_count"].Worst)
	assert.Equal(t, "b", result.Analysis["error_rate"].Best)

	// a keeps every tied metric, so it still leads the win count.
	assert.Equal(t, 2, result.WinCounts["b"])
	assert.Equal(t, "a", result.BestOverall)
}

func TestCompareTiesGoToFirst(t *testing.T) {
	a := models.SessionMetrics{SessionID: "a", TotalLogs: 5}
	b := models.SessionMetrics{SessionID: "b", TotalLogs: 5}

	result, err := Compare([]models.SessionMetrics{a, b})
	require.NoError(t, err)

	for metric, extremes := range result.Analysis {
		assert.Equal(t, "a", extremes.Best, metric)
		assert.Equal(t, "a", extremes.Worst, metric)
	}
	assert.Equal(t, "a", result.BestOverall)
}

func TestCompareHigherIsBetterCheckpoints(t *testing.T) {
	a := models.SessionMetrics{SessionID: "a", CheckpointsCompleted: 1}
	b := models.SessionMetrics{SessionID: "b", CheckpointsCompleted: 4}

	result, err := Compare([]models.SessionMetrics{a, b})
	require.NoError(t, err)

	assert.Equal(t, "b", result.Analysis["checkpoints_completed"].Best)
	assert.Equal(t, "a", result.Analysis["checkpoints_completed"].Worst)
}

func TestCompareSessionCountBounds(t *testing.T) {
	one := []models.SessionMetrics{{SessionID: "a"}}
	_, err := Compare(one)
	assert.Error(t, err)

	six := make([]models.SessionMetrics, MaxSessions+1)
	for i := range six {
		six[i].SessionID = string(rune('a' + i))
	}
	_, err = Compare(six)
	assert.Error(t, err)
}

func TestCompareWinCounts(t *testing.T) {
	fast := models.SessionMetrics{SessionID: "fast", DurationSeconds: 10, ErrorCount: 0, CheckpointsCompleted: 3}
	slow := models.SessionMetrics{SessionID: "slow", DurationSeconds: 99, ErrorCount: 5, ErrorRate: 0.5, WarningCount: 2, CheckpointsCompleted: 1, AvgCheckpointSeconds: 99}

	result, err := Compare([]models.SessionMetrics{slow, fast})
	require.NoError(t, err)

	// fast wins every metric.
	assert.Equal(t, 6, result.WinCounts["fast"])
	assert.Equal(t, 0, result.WinCounts["slow"])
	assert.Equal(t, "fast", result.BestOverall)
}
