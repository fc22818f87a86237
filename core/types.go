package core

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"time"
)

// ProgressRecord is the single persisted snapshot of a player's progress.
// Callers that hand a record to another owner should pass a Clone.
type ProgressRecord struct {
	CurrentLevel        int         `json:"currentLevel"`
	UnlockedLevels      int         `json:"unlockedLevels"`
	LevelStars          map[int]int `json:"levelStars"`
	ClaimedAchievements []int       `json:"claimedAchievements"`
	SessionID           string      `json:"sessionId"`
	LastPlayed          time.Time   `json:"lastPlayed"`
	TotalPlayTime       int64       `json:"totalPlayTime"`
	GameStats           GameStats   `json:"gameStats"`
}

// GameStats holds aggregate counters across all attempts.
type GameStats struct {
	TotalMoves       int64   `json:"totalMoves"`
	TotalGamesPlayed int64   `json:"totalGamesPlayed"`
	TotalGamesWon    int64   `json:"totalGamesWon"`
	BestTime         *int    `json:"bestTime"`
	AverageStars     float64 `json:"averageStars"`
}

// DefaultRecord returns a fresh level-one record stamped with the given session and time.
func DefaultRecord(sessionID string, now time.Time) ProgressRecord {
	return ProgressRecord{
		CurrentLevel:        1,
		UnlockedLevels:      1,
		LevelStars:          map[int]int{},
		ClaimedAchievements: []int{},
		SessionID:           sessionID,
		LastPlayed:          now.UTC(),
	}
}

// Clone returns a deep copy of the record.
func (r ProgressRecord) Clone() ProgressRecord {
	cp := r
	cp.LevelStars = make(map[int]int, len(r.LevelStars))
	for k, v := range r.LevelStars {
		cp.LevelStars[k] = v
	}
	cp.ClaimedAchievements = append([]int{}, r.ClaimedAchievements...)
	if r.GameStats.BestTime != nil {
		bt := *r.GameStats.BestTime
		cp.GameStats.BestTime = &bt
	}
	return cp
}

// Normalize fills nil collections so the record is always fully shaped.
func (r *ProgressRecord) Normalize() {
	if r.LevelStars == nil {
		r.LevelStars = map[int]int{}
	}
	if r.ClaimedAchievements == nil {
		r.ClaimedAchievements = []int{}
	}
}

// HasClaimed reports whether the reward for level was already recorded.
func (r ProgressRecord) HasClaimed(level int) bool {
	for _, l := range r.ClaimedAchievements {
		if l == level {
			return true
		}
	}
	return false
}

// Completed reports whether the level has a star rating.
func (r ProgressRecord) Completed(level int) bool {
	return r.LevelStars[level] > 0
}

// RecomputeAverage sets GameStats.AverageStars to the mean of LevelStars, or 0 when empty.
func (r *ProgressRecord) RecomputeAverage() {
	if len(r.LevelStars) == 0 {
		r.GameStats.AverageStars = 0
		return
	}
	total := 0
	for _, s := range r.LevelStars {
		total += s
	}
	r.GameStats.AverageStars = float64(total) / float64(len(r.LevelStars))
}

// CompletedLevels returns the starred levels in ascending order.
func (r ProgressRecord) CompletedLevels() []int {
	out := make([]int, 0, len(r.LevelStars))
	for l := range r.LevelStars {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// MergeStars returns the best of the stored and newly scored star counts.
func MergeStars(stored map[int]int, level, stars int) int {
	if prev := stored[level]; prev > stars {
		return prev
	}
	return stars
}

// ProgressPatch is a shallow partial update of a ProgressRecord.
// Nil fields are left untouched.
type ProgressPatch struct {
	CurrentLevel        *int
	UnlockedLevels      *int
	LevelStars          map[int]int
	ClaimedAchievements []int
	TotalPlayTime       *int64
	GameStats           *GameStats
}

// Apply shallow-merges the patch over r. Collections replace, they do not merge.
func (p ProgressPatch) Apply(r *ProgressRecord) {
	if p.CurrentLevel != nil {
		r.CurrentLevel = *p.CurrentLevel
	}
	if p.UnlockedLevels != nil {
		r.UnlockedLevels = *p.UnlockedLevels
	}
	if p.LevelStars != nil {
		r.LevelStars = p.LevelStars
	}
	if p.ClaimedAchievements != nil {
		r.ClaimedAchievements = p.ClaimedAchievements
	}
	if p.TotalPlayTime != nil {
		r.TotalPlayTime = *p.TotalPlayTime
	}
	if p.GameStats != nil {
		r.GameStats = *p.GameStats
	}
}

// StatsPatch is a shallow partial update of GameStats.
// AverageStars is derived and therefore not patchable.
type StatsPatch struct {
	TotalMoves       *int64
	TotalGamesPlayed *int64
	TotalGamesWon    *int64
	BestTime         *int
}

// Apply merges the patch into s.
func (p StatsPatch) Apply(s *GameStats) {
	if p.TotalMoves != nil {
		s.TotalMoves = *p.TotalMoves
	}
	if p.TotalGamesPlayed != nil {
		s.TotalGamesPlayed = *p.TotalGamesPlayed
	}
	if p.TotalGamesWon != nil {
		s.TotalGamesWon = *p.TotalGamesWon
	}
	if p.BestTime != nil {
		bt := *p.BestTime
		s.BestTime = &bt
	}
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateWalletAddress checks the EVM form ^0x[0-9a-fA-F]{40}$.
func ValidateWalletAddress(addr string) error {
	if addr == "" {
		return errors.New("empty wallet address")
	}
	if !walletPattern.MatchString(addr) {
		return errors.New("invalid wallet address")
	}
	return nil
}

// ShortAddress abbreviates a valid wallet address as 0x1234...abcd.
func ShortAddress(addr string) string {
	if ValidateWalletAddress(addr) != nil {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Ptr returns a pointer to v; handy for building patches.
func Ptr[T any](v T) *T { return &v }
