package core

import (
	"fmt"
	"time"
)

// MaxLevel is the number of playable levels.
const MaxLevel = 100

// LevelConfig holds the derived difficulty constants for one level.
type LevelConfig struct {
	Level     int    `json:"level"`
	Name      string `json:"name"`
	Shuffles  int    `json:"shuffles"`
	TimeLimit int    `json:"timeLimit"` // seconds
	GridSize  int    `json:"gridSize"`
	MaxMoves  int    `json:"maxMoves"`
}

// TimeLimitDuration returns the time limit as a time.Duration.
func (c LevelConfig) TimeLimitDuration() time.Duration {
	return time.Duration(c.TimeLimit) * time.Second
}

var levelTable = buildLevels()

// ValidLevel reports whether level is in 1..MaxLevel.
func ValidLevel(level int) bool { return level >= 1 && level <= MaxLevel }

// LevelConfigFor returns the configuration of a level; ok is false when out of range.
func LevelConfigFor(level int) (LevelConfig, bool) {
	if !ValidLevel(level) {
		return LevelConfig{}, false
	}
	return levelTable[level-1], true
}

// Levels returns a copy of the full level table.
func Levels() []LevelConfig {
	return append([]LevelConfig(nil), levelTable...)
}

func buildLevels() []LevelConfig {
	out := make([]LevelConfig, 0, MaxLevel)
	for i := 1; i <= MaxLevel; i++ {
		out = append(out, LevelConfig{
			Level:     i,
			Name:      fmt.Sprintf("%s %d", tierName(i), i),
			Shuffles:  min(10+i*3+(i*i)/20, 500),
			TimeLimit: timeLimit(i),
			GridSize:  gridSize(i),
			MaxMoves:  maxMoves(i),
		})
	}
	return out
}

func timeLimit(i int) int {
	switch {
	case i <= 10:
		return max(180-i*6, 120)
	case i <= 25:
		return max(120-(i-10)*3, 90)
	case i <= 50:
		return max(90-(i-25)*2, 60)
	case i <= 75:
		return max(60-(i-50), 45)
	default:
		return max(45-(i-75), 30)
	}
}

func maxMoves(i int) int {
	switch {
	case i <= 5:
		return max(150-i*10, 100)
	case i <= 15:
		return max(100-(i-5)*5, 60)
	case i <= 30:
		return max(60-(i-15)*2, 40)
	case i <= 50:
		return max(40-(i-30)/2, 25)
	case i <= 75:
		return max(25-(i-50)/3, 18)
	default:
		return max(18-(i-75)/5, 12)
	}
}

func gridSize(i int) int {
	switch {
	case i >= 95:
		return 6
	case i >= 70:
		return 5
	case i >= 30:
		return 4
	default:
		return 3
	}
}

func tierName(i int) string {
	switch {
	case i <= 3:
		return "Tutorial"
	case i <= 8:
		return "Beginner"
	case i <= 15:
		return "Challenging"
	case i <= 25:
		return "Hard"
	case i <= 40:
		return "Very Hard"
	case i <= 55:
		return "Extreme"
	case i <= 70:
		return "Nightmare"
	case i <= 85:
		return "Insane"
	case i <= 95:
		return "Impossible"
	default:
		return "Legendary"
	}
}

// ScoreStars rates a completed level from 1 to 3.
// One star for completion, one for using at most 60% of the move cap and one
// for using at most half the time limit. A nil timeUsed means the level was untimed.
func ScoreStars(cfg LevelConfig, moves int, timeUsed *int) int {
	stars := 1
	if moves*10 <= cfg.MaxMoves*6 {
		stars++
	}
	if timeUsed == nil || *timeUsed*2 <= cfg.TimeLimit {
		stars++
	}
	return min(stars, 3)
}
