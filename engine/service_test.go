package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilequest/core"
	"tilequest/puzzle"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSubmitter struct {
	calls int
	id    int64
	err   error
}

func (f *fakeSubmitter) SubmitClaim(_ context.Context, wallet string, level int, session string) (int64, error) {
	f.calls++
	return f.id, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(_ context.Context, e core.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// solve finds a shortest slide sequence by breadth-first search.
func solve(t *testing.T, b puzzle.Board) []int {
	t.Helper()
	type node struct {
		board puzzle.Board
		path  []int
	}
	seen := map[string]bool{fmt.Sprint(b.Tiles()): true}
	queue := []node{{board: b}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n.board.IsSolved() {
			return n.path
		}
		for _, nb := range n.board.Neighbors(n.board.BlankIndex()) {
			next, err := puzzle.FromTiles(n.board.Size(), n.board.Tiles())
			require.NoError(t, err)
			next.Slide(nb)
			key := fmt.Sprint(next.Tiles())
			if seen[key] {
				continue
			}
			seen[key] = true
			queue = append(queue, node{board: next, path: append(append([]int{}, n.path...), nb)})
		}
	}
	t.Fatal("board has no solution")
	return nil
}

func newTestService(t *testing.T, slot Slot, opts ...ServiceOption) (*GameService, *stepClock, *recorder) {
	t.Helper()
	clock := &stepClock{t: fixedNow}
	rec := &recorder{}
	bus := NewEventBus(DispatchSync)
	bus.SubscribeAll(rec.handle)
	base := []ServiceOption{
		WithServiceClock(clock.now),
		WithRand(rand.New(rand.NewPCG(11, 12))),
		WithAutosaveInterval(0),
	}
	svc := NewGameService(newTestCache(slot), bus, append(base, opts...)...)
	t.Cleanup(func() { svc.Close(context.Background()) })
	return svc, clock, rec
}

func TestWinUnlocksNextLevel(t *testing.T) {
	ctx := context.Background()
	slot := newMapSlot()
	svc, clock, events := newTestService(t, slot)

	board := svc.Start(ctx)
	path := solve(t, board)
	clock.advance(10 * time.Second)

	var out puzzle.Outcome
	for _, tile := range path {
		var err error
		out, err = svc.Move(ctx, tile)
		require.NoError(t, err)
	}
	require.Equal(t, puzzle.StatusWon, out.Status)

	p := svc.Progress()
	assert.Equal(t, 2, p.UnlockedLevels)
	assert.Equal(t, 3, p.LevelStars[1])
	assert.EqualValues(t, len(path), p.GameStats.TotalMoves)
	assert.EqualValues(t, 1, p.GameStats.TotalGamesPlayed)
	assert.EqualValues(t, 1, p.GameStats.TotalGamesWon)
	require.NotNil(t, p.GameStats.BestTime)
	assert.Equal(t, 10, *p.GameStats.BestTime)
	assert.InDelta(t, 3.0, p.GameStats.AverageStars, 1e-9)

	assert.Equal(t, []core.EventType{
		core.EventLevelStarted,
		core.EventLevelCompleted,
		core.EventLevelUnlocked,
	}, events.types())

	stored := newTestCache(slot).Load(ctx, LoadOptions{})
	assert.Equal(t, 2, stored.UnlockedLevels)
	assert.Equal(t, 3, stored.LevelStars[1])

	require.NoError(t, svc.NextLevel(ctx))
	assert.Equal(t, 2, svc.Progress().CurrentLevel)
	assert.ErrorIs(t, svc.NextLevel(ctx), ErrLevelLocked)
}

func TestSelectLevelRejectsLocked(t *testing.T) {
	svc, _, _ := newTestService(t, newMapSlot())
	assert.ErrorIs(t, svc.SelectLevel(context.Background(), 2), ErrLevelLocked)
	assert.ErrorIs(t, svc.SelectLevel(context.Background(), 0), ErrLevelLocked)
	assert.NoError(t, svc.SelectLevel(context.Background(), 1))
}

func TestTimeoutFailsOnce(t *testing.T) {
	ctx := context.Background()
	svc, clock, events := newTestService(t, newMapSlot())
	svc.Start(ctx)

	clock.advance(time.Hour)
	assert.Equal(t, puzzle.StatusLost, svc.State(ctx).Status)
	assert.Equal(t, puzzle.StatusLost, svc.State(ctx).Status)

	_, err := svc.Move(ctx, 0)
	assert.ErrorIs(t, err, puzzle.ErrNotPlaying)
	assert.Equal(t, []core.EventType{core.EventLevelStarted, core.EventLevelFailed}, events.types())
	assert.Equal(t, 1, svc.Progress().UnlockedLevels)
}

func TestFirstMoveCountsGamePlayed(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, newMapSlot())
	board := svc.Start(ctx)
	nbs := board.Neighbors(board.BlankIndex())
	_, err := svc.Move(ctx, nbs[0])
	require.NoError(t, err)
	p := svc.Progress()
	assert.EqualValues(t, 1, p.GameStats.TotalMoves)
	assert.EqualValues(t, 1, p.GameStats.TotalGamesPlayed)
}

func seededSlot(t *testing.T, stars map[int]int, unlocked int) *mapSlot {
	t.Helper()
	slot := newMapSlot()
	c := newTestCache(slot)
	rec := c.Defaults()
	rec.LevelStars = stars
	rec.UnlockedLevels = unlocked
	require.True(t, c.Save(context.Background(), &rec))
	return slot
}

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

func TestClaimReward(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{id: 42}
	slot := seededSlot(t, map[int]int{10: 2}, 11)
	svc, _, events := newTestService(t, slot, WithSubmitter(sub))

	id, err := svc.ClaimReward(ctx, 10, wallet)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.Equal(t, []int{10}, svc.Progress().ClaimedAchievements)
	assert.Contains(t, events.types(), core.EventRewardClaimed)

	_, err = svc.ClaimReward(ctx, 10, wallet)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, 1, sub.calls)

	stored := newTestCache(slot).Load(ctx, LoadOptions{})
	assert.Equal(t, core.ClaimClaimed, core.TierStatus(stored, 10))
}

func TestClaimRewardGuards(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{id: 1}
	svc, _, _ := newTestService(t, seededSlot(t, map[int]int{10: 1}, 11), WithSubmitter(sub))

	_, err := svc.ClaimReward(ctx, 9, wallet)
	assert.ErrorIs(t, err, ErrNotRewardTier)
	_, err = svc.ClaimReward(ctx, 25, wallet)
	assert.ErrorIs(t, err, ErrRewardLocked)
	_, err = svc.ClaimReward(ctx, 10, "0x123")
	assert.ErrorIs(t, err, ErrInvalidWallet)
	assert.Zero(t, sub.calls)
}

func TestClaimRewardFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	remote := errors.New("address already submitted for this NFT level")
	sub := &fakeSubmitter{err: remote}
	svc, _, _ := newTestService(t, seededSlot(t, map[int]int{10: 3}, 11), WithSubmitter(sub))

	_, err := svc.ClaimReward(ctx, 10, wallet)
	assert.ErrorIs(t, err, remote)
	assert.Empty(t, svc.Progress().ClaimedAchievements)

	sub.err = nil
	_, err = svc.ClaimReward(ctx, 10, wallet)
	assert.NoError(t, err)
}

func TestClaimRewardWithoutSubmitter(t *testing.T) {
	svc, _, _ := newTestService(t, seededSlot(t, map[int]int{10: 3}, 11))
	_, err := svc.ClaimReward(context.Background(), 10, wallet)
	assert.ErrorIs(t, err, ErrNoSubmitter)
}

func TestAutosaveWritesPeriodically(t *testing.T) {
	ctx := context.Background()
	slot := newMapSlot()
	svc, _, _ := newTestService(t, slot, WithAutosaveInterval(5*time.Millisecond))
	svc.Start(ctx)

	slot.mu.Lock()
	before := slot.setCalls
	slot.mu.Unlock()
	assert.Eventually(t, func() bool {
		slot.mu.Lock()
		defer slot.mu.Unlock()
		return slot.setCalls >= before+2
	}, time.Second, 5*time.Millisecond)

	svc.Abandon(ctx)
}

func TestAutosaveStopsWhenTimeRunsOut(t *testing.T) {
	ctx := context.Background()
	slot := newMapSlot()
	svc, clock, events := newTestService(t, slot, WithAutosaveInterval(5*time.Millisecond))
	svc.Start(ctx)
	clock.advance(time.Hour)

	// no Move or State call: the ticker alone has to notice the timeout
	assert.Eventually(t, func() bool {
		for _, typ := range events.types() {
			if typ == core.EventLevelFailed {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	slot.mu.Lock()
	settled := slot.setCalls
	slot.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	slot.mu.Lock()
	assert.Equal(t, settled, slot.setCalls, "no saves after the attempt ended")
	slot.mu.Unlock()

	assert.Equal(t, []core.EventType{core.EventLevelStarted, core.EventLevelFailed}, events.types())
	assert.EqualValues(t, 0, svc.Progress().TotalPlayTime)
	assert.Equal(t, puzzle.StatusLost, svc.State(ctx).Status)
}

func TestSuspendFlushesWorkingCopy(t *testing.T) {
	ctx := context.Background()
	slot := newMapSlot()
	svc, _, _ := newTestService(t, slot)
	board := svc.Start(ctx)
	_, err := svc.Move(ctx, board.Neighbors(board.BlankIndex())[0])
	require.NoError(t, err)
	require.True(t, svc.Suspend(ctx))

	stored := newTestCache(slot).Load(ctx, LoadOptions{})
	assert.EqualValues(t, 1, stored.GameStats.TotalMoves)
}
