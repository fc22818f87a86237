package analytics

import (
	"fmt"
	"time"

	"tilequest/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// ParsePeriod accepts daily, weekly or monthly; empty means daily.
func ParsePeriod(s string) (AggregationPeriod, error) {
	switch p := AggregationPeriod(s); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown aggregation period %q", s)
	}
}

// Summary is the aggregate of one period.
type Summary struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // e.g. "2024-01-01", "2024-W01", "2024-01"
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveSessions int                      `json:"active_sessions"`
	Events         map[core.EventType]int64 `json:"events"`
	ClaimsByTier   map[int]int64            `json:"claims_by_tier"`
	TotalClaims    int64                    `json:"total_claims"`
}

// bounds returns the key and [start, end) of the period containing at.
func bounds(period AggregationPeriod, at time.Time) (string, time.Time, time.Time) {
	at = at.UTC()
	midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodWeekly:
		// ISO weeks start on Monday
		offset := (int(at.Weekday()) + 6) % 7
		start := midnight.AddDate(0, 0, -offset)
		return weekKey(at), start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return monthKey(at), start, start.AddDate(0, 1, 0)
	default:
		return dayKey(at), midnight, midnight.AddDate(0, 0, 1)
	}
}

// Summarize aggregates the period containing at.
func (m *Metrics) Summarize(period AggregationPeriod, at time.Time) Summary {
	key, start, end := bounds(period, at)
	s := Summary{
		Period:       period,
		Key:          key,
		StartTime:    start,
		EndTime:      end,
		Events:       make(map[core.EventType]int64),
		ClaimsByTier: make(map[int]int64),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s.ActiveSessions = len(m.activeSessions[key])
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		k := dayKey(day)
		for typ, n := range m.eventsByDay[k] {
			s.Events[typ] += n
		}
		for tier, n := range m.claimsByDay[k] {
			s.ClaimsByTier[tier] += n
			s.TotalClaims += n
		}
	}
	return s
}
