// Package logs holds the pure log transforms of the multi-log viewer:
// filtering, derived statistics and export serialization. Nothing in this
// package performs I/O.
package logs

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// Filter is a conjunction of independent predicates over a log set. Zero
// values disable the corresponding predicate, so filters compose by AND.
type Filter struct {
	// Level matches exactly; LogLevelAll (or empty) matches every level.
	Level models.LogLevel `json:"level,omitempty"`

	// SearchTerm is substring-matched against the message concatenated
	// with the serialized data payload.
	SearchTerm    string `json:"search_term,omitempty"`
	CaseSensitive bool   `json:"case_sensitive"`

	// StartTime/EndTime bound the timestamp inclusively.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Pattern is a regex tested against the message alone. A malformed
	// pattern fails open: the predicate is skipped, never an error.
	Pattern string `json:"pattern,omitempty"`
}

// FilterLogs returns the logs passing every predicate of the filter,
// preserving input order. The input slice is never mutated.
func FilterLogs(logs []models.AutomationLog, filter Filter) []models.AutomationLog {
	var re *regexp.Regexp
	if filter.Pattern != "" {
		expr := filter.Pattern
		if !filter.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, _ = regexp.Compile(expr) // malformed pattern -> nil, fails open
	}

	term := filter.SearchTerm
	if !filter.CaseSensitive {
		term = strings.ToLower(term)
	}

	result := make([]models.AutomationLog, 0, len(logs))
	for _, log := range logs {
		if !matchesLevel(log, filter.Level) {
			continue
		}
		if term != "" && !matchesSearch(log, term, filter.CaseSensitive) {
			continue
		}
		if filter.StartTime != nil && log.Timestamp.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && log.Timestamp.After(*filter.EndTime) {
			continue
		}
		if re != nil && !re.MatchString(log.Message) {
			continue
		}
		result = append(result, log)
	}
	return result
}

func matchesLevel(log models.AutomationLog, level models.LogLevel) bool {
	if level == "" || level == models.LogLevelAll {
		return true
	}
	return log.Level == level
}

func matchesSearch(log models.AutomationLog, term string, caseSensitive bool) bool {
	haystack := log.Message
	if len(log.Data) > 0 {
		if data, err := json.Marshal(log.Data); err == nil {
			haystack += " " + string(data)
		}
	}
	if !caseSensitive {
		haystack = strings.ToLower(haystack)
	}
	return strings.Contains(haystack, term)
}

// Stats are derived aggregates over a (typically filtered) log set.
type Stats struct {
	Total            int                     `json:"total"`
	ByLevel          map[models.LogLevel]int `json:"by_level"`
	ErrorRate        float64                 `json:"error_rate"`
	AvgLogsPerMinute float64                 `json:"avg_logs_per_minute"`
}

// ComputeStats returns counts by level, error rate and throughput for the
// given logs. Division guards: error rate is 0 for an empty set, and
// logs-per-minute is 0 with fewer than 2 logs or zero elapsed time.
func ComputeStats(logs []models.AutomationLog) Stats {
	stats := Stats{
		Total:   len(logs),
		ByLevel: make(map[models.LogLevel]int),
	}

	for _, log := range logs {
		stats.ByLevel[log.Level]++
	}

	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.ByLevel[models.LogLevelError]) / float64(stats.Total)
	}

	if stats.Total >= 2 {
		elapsed := logs[len(logs)-1].Timestamp.Sub(logs[0].Timestamp)
		if elapsed > 0 {
			stats.AvgLogsPerMinute = float64(stats.Total) / elapsed.Minutes()
		}
	}

	return stats
}
