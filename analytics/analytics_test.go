package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilequest/core"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

// Wednesday of ISO week 42
var at = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func event(e core.Event, t time.Time) core.Event {
	e.Time = t
	return e
}

func TestMetrics_OnEvent(t *testing.T) {
	m := NewMetrics()
	m.OnEvent(event(core.NewLevelStarted("s1", 10), at))
	m.OnEvent(event(core.NewLevelCompleted("s1", 10, 30, 3), at))
	m.OnEvent(event(core.NewLevelFailed("s2", 11, 80, "move_limit"), at))
	m.OnEvent(event(core.NewLevelFailed("s2", 11, 12, "time_limit"), at))
	m.OnEvent(event(core.NewLevelFailed("s2", 11, 12, ""), at))
	m.OnEvent(event(core.NewAddressSubmitted("s1", 10, wallet, 1), at))

	assert.Equal(t, 2, m.ActiveSessions("2026-10-14"))
	assert.Equal(t, 2, m.ActiveSessions("2026-W42"))
	assert.Equal(t, 2, m.ActiveSessions("2026-10"))
	assert.Equal(t, 0, m.ActiveSessions("2026-10-15"))

	assert.Equal(t, int64(3), m.EventsOn("2026-10-14", core.EventLevelFailed))
	assert.Equal(t, int64(1), m.Completions(10))
	assert.Equal(t, 1, m.UniqueWallets(10))
	assert.Equal(t, map[string]int64{"move_limit": 1, "time_limit": 1, "unknown": 1}, m.FailureReasons())
}

func TestMetrics_HandleAsBusSubscriber(t *testing.T) {
	m := NewMetrics()
	m.Handle(context.Background(), event(core.NewAddressSubmitted("", 25, wallet, 7), at))
	assert.Equal(t, int64(1), m.EventsOn("2026-10-14", core.EventAddressSubmitted))
	assert.Equal(t, 0, m.ActiveSessions("2026-10-14"))
}

func TestSummarize(t *testing.T) {
	m := NewMetrics()
	monday := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	nextMonday := monday.AddDate(0, 0, 7)

	m.OnEvent(event(core.NewAddressSubmitted("a", 10, wallet, 1), monday))
	m.OnEvent(event(core.NewAddressSubmitted("b", 25, wallet, 2), at))
	m.OnEvent(event(core.NewAddressSubmitted("c", 10, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", 3), at))
	m.OnEvent(event(core.NewAddressSubmitted("d", 50, wallet, 4), nextMonday))

	daily := m.Summarize(PeriodDaily, at)
	assert.Equal(t, "2026-10-14", daily.Key)
	assert.Equal(t, int64(2), daily.TotalClaims)
	assert.Equal(t, 2, daily.ActiveSessions)

	weekly := m.Summarize(PeriodWeekly, at)
	assert.Equal(t, "2026-W42", weekly.Key)
	assert.Equal(t, monday.Truncate(24*time.Hour), weekly.StartTime)
	assert.Equal(t, nextMonday.Truncate(24*time.Hour), weekly.EndTime)
	assert.Equal(t, map[int]int64{10: 2, 25: 1}, weekly.ClaimsByTier)
	assert.Equal(t, int64(3), weekly.Events[core.EventAddressSubmitted])
	assert.Equal(t, 3, weekly.ActiveSessions)

	monthly := m.Summarize(PeriodMonthly, at)
	assert.Equal(t, "2026-10", monthly.Key)
	assert.Equal(t, int64(4), monthly.TotalClaims)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), monthly.EndTime)
}

func TestSummarize_WeekStartsMonday(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	s := NewMetrics().Summarize(PeriodWeekly, sunday)
	assert.Equal(t, time.Monday, s.StartTime.Weekday())
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), s.StartTime)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodDaily, p)

	p, err = ParsePeriod("monthly")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, p)

	_, err = ParsePeriod("hourly")
	require.Error(t, err)
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.OnEvent(event(core.NewLevelCompleted("s", i%3+1, 10, 2), at))
			_ = m.Summarize(PeriodDaily, at)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), m.EventsOn("2026-10-14", core.EventLevelCompleted))
}
