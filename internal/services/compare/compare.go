// Package compare derives per-session metrics from raw logs and ranks a
// small set of sessions against each other. All functions are pure.
package compare

import (
	"fmt"
	"regexp"
	"time"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// MaxSessions caps a single comparison. Side-by-side views degrade past
// this and every extra session costs a full log fetch.
const MaxSessions = 5

var checkpointPattern = regexp.MustCompile(`(?i)checkpoint:\s*(\S+)`)

// Metric directions. Lower-is-better metrics win with the smallest value,
// higher-is-better with the largest.
var (
	lowerIsBetter  = []string{"duration_seconds", "error_count", "warning_count", "error_rate", "avg_checkpoint_seconds"}
	higherIsBetter = []string{"checkpoints_completed"}
)

// BuildMetrics computes the comparison metrics for one session from its
// session record and full log set.
func BuildMetrics(session *models.AutomationSession, logs []models.AutomationLog, now time.Time) models.SessionMetrics {
	m := models.SessionMetrics{
		SessionID: session.ID,
		TotalLogs: len(logs),
	}
	m.DeviceName = session.DeviceName
	m.Flow = session.Flow
	m.DurationSeconds = session.Duration(now).Seconds()

	// Timeline records checkpoint transitions only, seeded with the
	// session's current checkpoint so a repeated mention is not a change.
	previous := session.Checkpoint
	for _, log := range logs {
		switch log.Level {
		case models.LogLevelError:
			m.ErrorCount++
		case models.LogLevelWarn:
			m.WarningCount++
		}

		if match := checkpointPattern.FindStringSubmatch(log.Message); match != nil && match[1] != previous {
			m.Timeline = append(m.Timeline, models.CheckpointEvent{
				Name:      match[1],
				Timestamp: log.Timestamp,
			})
			previous = match[1]
		}
	}

	m.CheckpointsCompleted = len(m.Timeline)
	if m.TotalLogs > 0 {
		m.ErrorRate = float64(m.ErrorCount) / float64(m.TotalLogs)
	}
	if m.CheckpointsCompleted > 0 && m.DurationSeconds > 0 {
		m.AvgCheckpointSeconds = m.DurationSeconds / float64(m.CheckpointsCompleted)
	}

	return m
}

// Compare ranks the given session metrics per metric and overall. Input
// order is significant: ties go to the first-encountered session.
func Compare(sessions []models.SessionMetrics) (*models.ComparisonResult, error) {
	if len(sessions) < 2 {
		return nil, fmt.Errorf("comparison requires at least 2 sessions, got %d", len(sessions))
	}
	if len(sessions) > MaxSessions {
		return nil, fmt.Errorf("comparison supports at most %d sessions, got %d", MaxSessions, len(sessions))
	}

	result := &models.ComparisonResult{
		Sessions:  sessions,
		Analysis:  make(map[string]models.MetricExtremes),
		WinCounts: make(map[string]int),
	}
	for _, s := range sessions {
		result.WinCounts[s.SessionID] = 0
	}

	for _, metric := range lowerIsBetter {
		extremes := findExtremes(sessions, metric, false)
		result.Analysis[metric] = extremes
		result.WinCounts[extremes.Best]++
	}
	for _, metric := range higherIsBetter {
		extremes := findExtremes(sessions, metric, true)
		result.Analysis[metric] = extremes
		result.WinCounts[extremes.Best]++
	}

	// Overall winner has the most metric wins; first session wins ties.
	best := sessions[0].SessionID
	for _, s := range sessions[1:] {
		if result.WinCounts[s.SessionID] > result.WinCounts[best] {
			best = s.SessionID
		}
	}
	result.BestOverall = best

	return result, nil
}

// findExtremes picks best and worst for one metric. Strict comparisons so
// earlier sessions keep ties.
func findExtremes(sessions []models.SessionMetrics, metric string, higherBetter bool) models.MetricExtremes {
	best, worst := 0, 0
	for i := 1; i < len(sessions); i++ {
		v := metricValue(sessions[i], metric)
		if higherBetter {
			if v > metricValue(sessions[best], metric) {
				best = i
			}
			if v < metricValue(sessions[worst], metric) {
				worst = i
			}
		} else {
			if v < metricValue(sessions[best], metric) {
				best = i
			}
			if v > metricValue(sessions[worst], metric) {
				worst = i
			}
		}
	}
	return models.MetricExtremes{
		Best:  sessions[best].SessionID,
		Worst: sessions[worst].SessionID,
	}
}

func metricValue(m models.SessionMetrics, metric string) float64 {
	switch metric {
	case "duration_seconds":
		return m.DurationSeconds
	case "error_count":
		return float64(m.ErrorCount)
	case "error_rate":
		return m.ErrorRate
	case "warning_count":
		return float64(m.WarningCount)
	case "avg_checkpoint_seconds":
		return m.AvgCheckpointSeconds
	case "checkpoints_completed":
		return float64(m.CheckpointsCompleted)
	default:
		return 0
	}
}
