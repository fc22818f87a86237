package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tilequest/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// Metrics tracks event counts, active sessions and reward claims per day.
// It is safe for concurrent use.
type Metrics struct {
	mu sync.RWMutex

	// day, week and month keys share one map; their formats never collide
	activeSessions map[string]map[string]struct{}

	eventsByDay map[string]map[core.EventType]int64
	claimsByDay map[string]map[int]int64

	walletsByTier  map[int]map[string]struct{}
	completions    map[int]int64
	failureReasons map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: make(map[string]map[string]struct{}),
		eventsByDay:    make(map[string]map[core.EventType]int64),
		claimsByDay:    make(map[string]map[int]int64),
		walletsByTier:  make(map[int]map[string]struct{}),
		completions:    make(map[int]int64),
		failureReasons: make(map[string]int64),
	}
}

// Handle adapts Metrics to an event bus subscriber.
func (m *Metrics) Handle(_ context.Context, e core.Event) { m.OnEvent(e) }

func (m *Metrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(e.Time)
	if e.SessionID != "" {
		for _, k := range []string{day, weekKey(e.Time), monthKey(e.Time)} {
			addToSet(m.activeSessions, k, e.SessionID)
		}
	}
	if m.eventsByDay[day] == nil {
		m.eventsByDay[day] = make(map[core.EventType]int64)
	}
	m.eventsByDay[day][e.Type]++

	switch e.Type {
	case core.EventAddressSubmitted:
		if m.claimsByDay[day] == nil {
			m.claimsByDay[day] = make(map[int]int64)
		}
		m.claimsByDay[day][e.Level]++
		if e.Wallet != "" {
			addToSet(m.walletsByTier, e.Level, e.Wallet)
		}
	case core.EventLevelCompleted:
		m.completions[e.Level]++
	case core.EventLevelFailed:
		reason, _ := e.Metadata["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		m.failureReasons[reason]++
	}
}

// ActiveSessions returns the number of distinct sessions seen under key
// (2006-01-02, 2006-W01 or 2006-01).
func (m *Metrics) ActiveSessions(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeSessions[key])
}

// EventsOn returns the count of events of typ on day.
func (m *Metrics) EventsOn(day string, typ core.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsByDay[day][typ]
}

// UniqueWallets returns how many distinct wallets claimed tier. Wallets are
// compared as submitted.
func (m *Metrics) UniqueWallets(tier int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.walletsByTier[tier])
}

// Completions returns how many times level was solved.
func (m *Metrics) Completions(level int) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completions[level]
}

// FailureReasons returns a copy of the failure counts keyed by reason.
func (m *Metrics) FailureReasons() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.failureReasons))
	for k, v := range m.failureReasons {
		out[k] = v
	}
	return out
}

func addToSet[K comparable](sets map[K]map[string]struct{}, k K, v string) {
	if sets[k] == nil {
		sets[k] = make(map[string]struct{})
	}
	sets[k][v] = struct{}{}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func monthKey(t time.Time) string { return t.UTC().Format("2006-01") }
