package puzzle

import (
	"errors"
	"math/rand/v2"
	"time"

	"tilequest/core"
)

// Status is the lifecycle state of a Game.
type Status int

const (
	StatusReady Status = iota
	StatusPlaying
	StatusWon
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Loss reasons.
const (
	ReasonMoveCap = "move_limit"
	ReasonTimeout = "time_limit"
)

var (
	ErrNotPlaying  = errors.New("game is not in progress")
	ErrIllegalMove = errors.New("tile is not adjacent to the blank")
)

// Outcome describes the result of a single move.
type Outcome struct {
	Status   Status
	Moves    int
	Stars    int    // set when Status is StatusWon
	TimeUsed int    // whole seconds since start
	Reason   string // set when Status is StatusLost
}

// Game is one attempt at a level.
type Game struct {
	cfg     core.LevelConfig
	board   Board
	moves   int
	status  Status
	started time.Time
	reason  string
	now     func() time.Time
}

// NewGame prepares an attempt showing the solved preview. A nil clock uses time.Now.
func NewGame(cfg core.LevelConfig, now func() time.Time) *Game {
	if now == nil {
		now = time.Now
	}
	return &Game{cfg: cfg, board: Solved(cfg.GridSize), now: now}
}

func (g *Game) Config() core.LevelConfig { return g.cfg }
func (g *Game) Board() Board              { return Board{size: g.board.size, tiles: g.board.Tiles()} }
func (g *Game) Moves() int                { return g.moves }
func (g *Game) Reason() string            { return g.reason }

// Start shuffles the board and starts the clock.
func (g *Game) Start(rng *rand.Rand) {
	g.board = Solved(g.cfg.GridSize)
	g.board.Shuffle(rng, g.cfg.Shuffles)
	for g.board.IsSolved() {
		g.board.Shuffle(rng, g.cfg.Shuffles)
	}
	g.moves = 0
	g.reason = ""
	g.status = StatusPlaying
	g.started = g.now()
}

// Status returns the current state, expiring the attempt if the time limit passed.
func (g *Game) Status() Status {
	if g.status == StatusPlaying && g.TimeLeft() <= 0 {
		g.lose(ReasonTimeout)
	}
	return g.status
}

// TimeUsed returns whole seconds elapsed since Start.
func (g *Game) TimeUsed() int {
	if g.started.IsZero() {
		return 0
	}
	return int(g.now().Sub(g.started) / time.Second)
}

// TimeLeft returns the remaining time, never negative.
func (g *Game) TimeLeft() time.Duration {
	if g.started.IsZero() {
		return g.cfg.TimeLimitDuration()
	}
	left := g.cfg.TimeLimitDuration() - g.now().Sub(g.started)
	if left < 0 {
		return 0
	}
	return left
}

// Move slides the tile at index. Reaching the move cap ends the attempt as a
// loss even when that move solves the board.
func (g *Game) Move(index int) (Outcome, error) {
	if g.Status() != StatusPlaying {
		return g.outcome(), ErrNotPlaying
	}
	if !g.board.Slide(index) {
		return g.outcome(), ErrIllegalMove
	}
	g.moves++
	switch {
	case g.cfg.MaxMoves > 0 && g.moves >= g.cfg.MaxMoves:
		g.lose(ReasonMoveCap)
	case g.board.IsSolved():
		g.status = StatusWon
	}
	return g.outcome(), nil
}

// Abandon stops the attempt without a result.
func (g *Game) Abandon() {
	if g.status == StatusPlaying {
		g.status = StatusReady
	}
}

func (g *Game) lose(reason string) {
	g.status = StatusLost
	g.reason = reason
}

func (g *Game) outcome() Outcome {
	out := Outcome{Status: g.status, Moves: g.moves, TimeUsed: g.TimeUsed(), Reason: g.reason}
	if g.status == StatusWon {
		used := min(out.TimeUsed, g.cfg.TimeLimit)
		out.Stars = core.ScoreStars(g.cfg, g.moves, &used)
	}
	return out
}
