package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tilequest/core"
	"tilequest/puzzle"
)

var (
	ErrLevelLocked      = errors.New("level is locked")
	ErrNotRewardTier    = errors.New("level has no reward")
	ErrRewardLocked     = errors.New("reward level not completed yet")
	ErrAlreadyClaimed   = errors.New("reward already claimed")
	ErrClaimInProgress  = errors.New("claim already in progress")
	ErrNoSubmitter      = errors.New("no claim submitter configured")
	ErrInvalidWallet    = errors.New("invalid EVM wallet address format")
	ErrNoGameInProgress = errors.New("no game in progress")
)

// DefaultAutosaveInterval is how often play time is persisted during a level.
const DefaultAutosaveInterval = 30 * time.Second

// PlayState is a read-only view of the current attempt.
type PlayState struct {
	Level    int
	Config   core.LevelConfig
	Board    puzzle.Board
	Status   puzzle.Status
	Moves    int
	TimeLeft time.Duration
}

// ServiceOption configures a GameService.
type ServiceOption func(*GameService)

// WithSubmitter sets the remote claim submitter.
func WithSubmitter(s ClaimSubmitter) ServiceOption { return func(g *GameService) { g.submitter = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r RuleEngine) ServiceOption { return func(g *GameService) { g.rules = r } }

// WithRand sets the shuffle source.
func WithRand(r *rand.Rand) ServiceOption { return func(g *GameService) { g.rng = r } }

// WithServiceClock sets the clock used for level timing.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(g *GameService) { g.now = now }
}

// WithAutosaveInterval sets the play-time autosave period; 0 disables it.
func WithAutosaveInterval(d time.Duration) ServiceOption {
	return func(g *GameService) { g.autosaveEvery = d }
}

// WithLoadOptions tunes the initial load of the record.
func WithLoadOptions(o LoadOptions) ServiceOption {
	return func(g *GameService) { g.loadOpts = o }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(g *GameService) { g.logger = l }
}

// GameService is the headless game controller. It keeps the in-memory working
// copy of the progress record and writes it through the cache after every mutation.
type GameService struct {
	mu            sync.Mutex
	cache         *ProgressCache
	bus           *EventBus
	rules         RuleEngine
	submitter     ClaimSubmitter
	rng           *rand.Rand
	now           func() time.Time
	autosaveEvery time.Duration
	loadOpts      LoadOptions
	logger        zerolog.Logger

	record   core.ProgressRecord
	game     *puzzle.Game
	settled  bool
	claiming map[int]bool
	autosave *autosaver
}

func NewGameService(cache *ProgressCache, bus *EventBus, opts ...ServiceOption) *GameService {
	if cache == nil || bus == nil {
		panic("NewGameService requires non-nil cache and bus")
	}
	g := &GameService{
		cache:         cache,
		bus:           bus,
		rules:         DefaultRuleEngine(),
		now:           time.Now,
		autosaveEvery: DefaultAutosaveInterval,
		logger:        zerolog.Nop(),
		claiming:      map[int]bool{},
	}
	for _, o := range opts {
		o(g)
	}
	if g.rng == nil {
		seed := uint64(time.Now().UnixNano())
		g.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	g.record = cache.Load(context.Background(), g.loadOpts)
	g.resetGame()
	return g
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{core.UnlockRule{}, core.RewardRule{}}}
}

// Subscribe convenience method.
func (g *GameService) Subscribe(typ core.EventType, handler Handler) func() {
	return g.bus.Subscribe(typ, handler)
}

// Progress returns a copy of the working record.
func (g *GameService) Progress() core.ProgressRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record.Clone()
}

// Level is the level currently selected.
func (g *GameService) Level() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record.CurrentLevel
}

// State returns the current attempt, expiring it first if its time ran out.
func (g *GameService) State(ctx context.Context) PlayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settleLocked(ctx)
	return PlayState{
		Level:    g.record.CurrentLevel,
		Config:   g.game.Config(),
		Board:    g.game.Board(),
		Status:   g.game.Status(),
		Moves:    g.game.Moves(),
		TimeLeft: g.game.TimeLeft(),
	}
}

// SelectLevel switches to an unlocked level and resets the board.
func (g *GameService) SelectLevel(ctx context.Context, level int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !core.ValidLevel(level) || level > g.record.UnlockedLevels {
		return fmt.Errorf("%w: %d", ErrLevelLocked, level)
	}
	g.stopAutosaveLocked()
	g.record.CurrentLevel = level
	g.resetGame()
	g.persistLocked(ctx)
	return nil
}

// NextLevel advances to the following level when it is unlocked.
func (g *GameService) NextLevel(ctx context.Context) error {
	g.mu.Lock()
	next := g.record.CurrentLevel + 1
	g.mu.Unlock()
	return g.SelectLevel(ctx, next)
}

// Start shuffles the current level and starts the clock and autosave.
func (g *GameService) Start(ctx context.Context) puzzle.Board {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetGame()
	g.game.Start(g.rng)
	g.startAutosaveLocked()
	g.bus.Publish(ctx, core.NewLevelStarted(g.record.SessionID, g.record.CurrentLevel))
	return g.game.Board()
}

// Move slides a tile and records the result.
func (g *GameService) Move(ctx context.Context, tile int) (puzzle.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out, err := g.game.Move(tile)
	if err != nil {
		g.settleLocked(ctx)
		return out, err
	}

	g.record.GameStats.TotalMoves++
	if out.Moves == 1 {
		g.record.GameStats.TotalGamesPlayed++
	}
	if !g.settleLocked(ctx) {
		g.persistLocked(ctx)
	}
	return out, nil
}

// Abandon stops the current attempt without a result.
func (g *GameService) Abandon(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.game.Abandon()
	g.stopAutosaveLocked()
	g.persistLocked(ctx)
}

// Suspend flushes the working copy; call it when the player leaves.
func (g *GameService) Suspend(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.Save(ctx, &g.record)
}

// ClaimReward submits wallet for the reward of tier. The claim is recorded
// locally only after the submitter succeeds.
func (g *GameService) ClaimReward(ctx context.Context, tier int, wallet string) (int64, error) {
	g.mu.Lock()
	switch {
	case !core.IsRewardTier(tier):
		g.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrNotRewardTier, tier)
	case g.record.HasClaimed(tier):
		g.mu.Unlock()
		return 0, ErrAlreadyClaimed
	case !g.record.Completed(tier):
		g.mu.Unlock()
		return 0, ErrRewardLocked
	case g.claiming[tier]:
		g.mu.Unlock()
		return 0, ErrClaimInProgress
	case g.submitter == nil:
		g.mu.Unlock()
		return 0, ErrNoSubmitter
	}
	if err := core.ValidateWalletAddress(wallet); err != nil {
		g.mu.Unlock()
		return 0, ErrInvalidWallet
	}
	g.claiming[tier] = true
	session := g.record.SessionID
	g.mu.Unlock()

	id, err := g.submitter.SubmitClaim(ctx, wallet, tier, session)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claiming, tier)
	if err != nil {
		g.logger.Warn().Err(err).Int("tier", tier).Msg("reward claim rejected")
		return 0, err
	}
	if !g.record.HasClaimed(tier) {
		g.record.ClaimedAchievements = append(g.record.ClaimedAchievements, tier)
	}
	g.persistLocked(ctx)
	g.bus.Publish(ctx, core.NewRewardClaimed(session, tier, wallet))
	return id, nil
}

// Close stops the autosave loop, flushes progress and closes the bus.
func (g *GameService) Close(ctx context.Context) {
	g.mu.Lock()
	wait := g.stopAutosaveLocked()
	g.cache.Save(ctx, &g.record)
	g.mu.Unlock()
	wait()
	g.bus.Close()
}

func (g *GameService) resetGame() {
	cfg, ok := core.LevelConfigFor(g.record.CurrentLevel)
	if !ok {
		g.record.CurrentLevel = 1
		cfg, _ = core.LevelConfigFor(1)
	}
	g.game = puzzle.NewGame(cfg, g.now)
	g.settled = false
}

// settleLocked records a finished attempt once. It reports whether it persisted.
func (g *GameService) settleLocked(ctx context.Context) bool {
	if g.settled {
		return false
	}
	switch g.game.Status() {
	case puzzle.StatusWon:
		g.recordWinLocked(ctx)
	case puzzle.StatusLost:
		g.bus.Publish(ctx, core.NewLevelFailed(g.record.SessionID, g.record.CurrentLevel, g.game.Moves(), g.game.Reason()))
	default:
		return false
	}
	g.settled = true
	g.stopAutosaveLocked()
	g.persistLocked(ctx)
	return true
}

func (g *GameService) recordWinLocked(ctx context.Context) {
	level := g.record.CurrentLevel
	cfg := g.game.Config()
	used := min(g.game.TimeUsed(), cfg.TimeLimit)
	stars := core.ScoreStars(cfg, g.game.Moves(), &used)

	g.record.LevelStars[level] = core.MergeStars(g.record.LevelStars, level, stars)
	g.record.GameStats.TotalGamesWon++
	if g.record.GameStats.BestTime == nil || used < *g.record.GameStats.BestTime {
		g.record.GameStats.BestTime = core.Ptr(used)
	}
	g.record.RecomputeAverage()

	trigger := core.NewLevelCompleted(g.record.SessionID, level, g.game.Moves(), stars)
	g.bus.Publish(ctx, trigger)
	for _, d := range g.rules.Evaluate(ctx, g.record, trigger) {
		if d.Type == core.EventLevelUnlocked && d.Level > g.record.UnlockedLevels {
			g.record.UnlockedLevels = d.Level
		}
		g.bus.Publish(ctx, d)
	}
}

func (g *GameService) persistLocked(ctx context.Context) {
	if !g.cache.Save(ctx, &g.record) {
		g.logger.Warn().Int("level", g.record.CurrentLevel).Msg("failed to save game progress")
	}
}

type autosaver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (g *GameService) startAutosaveLocked() {
	g.stopAutosaveLocked()
	if g.autosaveEvery <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &autosaver{cancel: cancel, done: make(chan struct{})}
	g.autosave = a
	go func() {
		defer close(a.done)
		t := time.NewTicker(g.autosaveEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.autosaveTick(ctx)
			}
		}
	}()
}

func (g *GameService) autosaveTick(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	// a lapsed time limit ends the attempt even when nobody is moving
	if g.settleLocked(ctx) || g.game.Status() != puzzle.StatusPlaying {
		return
	}
	total, err := core.AddSafe(g.record.TotalPlayTime, int64(g.autosaveEvery/time.Second))
	if err != nil {
		g.logger.Warn().Err(err).Msg("play time overflow")
		return
	}
	g.record.TotalPlayTime = total
	g.persistLocked(ctx)
}

// stopAutosaveLocked cancels the loop. The returned func waits for the
// goroutine and must be called without holding g.mu.
func (g *GameService) stopAutosaveLocked() (wait func()) {
	a := g.autosave
	if a == nil {
		return func() {}
	}
	g.autosave = nil
	a.cancel()
	return func() { <-a.done }
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, record core.ProgressRecord, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, record, trigger)...)
	}
	return out
}
