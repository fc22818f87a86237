package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tilequest/core"
	"tilequest/engine"
	"tilequest/puzzle"
)

func newPlayCmd(c *cli) *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the current (or a chosen unlocked) level",
		Long: `Shuffles the level and reads moves from standard input, one tile number
per line. Enter q to give up. Progress is saved after every move and when
input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.play(cmd.Context(), level)
		},
	}
	cmd.Flags().IntVar(&level, "level", 0, "unlocked level to play instead of the current one")
	return cmd
}

func (c *cli) play(ctx context.Context, level int) error {
	g := c.gameService(ctx)
	defer g.Close(context.WithoutCancel(ctx))
	c.printGameEvents(g)

	if level > 0 {
		if err := g.SelectLevel(ctx, level); err != nil {
			return err
		}
	}
	st := g.State(ctx)
	fmt.Fprintf(c.out, "Level %d: %s (%dx%d, %d moves, %ds)\n",
		st.Level, st.Config.Name, st.Config.GridSize, st.Config.GridSize, st.Config.MaxMoves, st.Config.TimeLimit)

	board := g.Start(ctx)
	fmt.Fprintln(c.out, board)

	sc := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "q", "quit":
			g.Abandon(ctx)
			fmt.Fprintln(c.out, "level abandoned")
			return nil
		}

		tile, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(c.out, "not a tile number: %q\n", line)
			continue
		}
		index := slices.Index(board.Tiles(), tile)
		if index < 0 || tile == puzzle.Blank {
			fmt.Fprintf(c.out, "no tile %d on this board\n", tile)
			continue
		}

		out, err := g.Move(ctx, index)
		switch {
		case errors.Is(err, puzzle.ErrIllegalMove):
			fmt.Fprintf(c.out, "tile %d is not next to the gap\n", tile)
			continue
		case errors.Is(err, puzzle.ErrNotPlaying):
			return nil
		case err != nil:
			return err
		}
		if out.Status != puzzle.StatusPlaying {
			return nil
		}

		st = g.State(ctx)
		board = st.Board
		fmt.Fprintf(c.out, "%s\nmoves %d/%d, %s left\n", board, out.Moves, st.Config.MaxMoves, st.TimeLeft.Round(time.Second))
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if g.Suspend(ctx) {
		fmt.Fprintln(c.out, "progress saved")
	}
	return nil
}

// printGameEvents reports results as they happen. Handlers run on the
// publishing goroutine and must not call back into the service.
func (c *cli) printGameEvents(g *engine.GameService) {
	g.Subscribe(core.EventLevelCompleted, func(_ context.Context, e core.Event) {
		fmt.Fprintf(c.out, "solved level %d in %d moves: %s\n", e.Level, e.Moves, strings.Repeat("*", e.Stars))
	})
	g.Subscribe(core.EventLevelFailed, func(_ context.Context, e core.Event) {
		reason, _ := e.Metadata["reason"].(string)
		switch reason {
		case puzzle.ReasonMoveCap:
			fmt.Fprintf(c.out, "out of moves on level %d\n", e.Level)
		case puzzle.ReasonTimeout:
			fmt.Fprintf(c.out, "time is up on level %d\n", e.Level)
		default:
			fmt.Fprintf(c.out, "level %d failed\n", e.Level)
		}
	})
	g.Subscribe(core.EventLevelUnlocked, func(_ context.Context, e core.Event) {
		fmt.Fprintf(c.out, "level %d unlocked\n", e.Level)
	})
	g.Subscribe(core.EventRewardAvailable, func(_ context.Context, e core.Event) {
		t := core.RewardTiers[e.Level]
		fmt.Fprintf(c.out, "%s %s is ready to claim: tilequest claim %d <wallet>\n", t.Icon, t.Name, e.Level)
	})
}
