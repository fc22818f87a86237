package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tilequest/core"
	"tilequest/engine"
)

var errWriteFailed = errors.New("progress could not be written to storage")

func newProgressCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and manage saved progress",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print levels, stars, stats and reward status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cache := c.progressCache(cmd.Context())
				c.showProgress(cache.Load(cmd.Context(), c.cfg.Cache.LoadOptions()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "export [file]",
			Short: "Write a JSON backup to a file or standard output",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache := c.progressCache(cmd.Context())
				data, err := cache.Export(cmd.Context())
				if err != nil {
					return err
				}
				if len(args) == 0 {
					fmt.Fprintln(c.out, data)
					return nil
				}
				return os.WriteFile(args[0], []byte(data), 0o600)
			},
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Replace saved progress with a JSON backup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				cache := c.progressCache(cmd.Context())
				if !cache.Import(cmd.Context(), string(data)) {
					return fmt.Errorf("import %s: invalid backup or %w", args[0], errWriteFailed)
				}
				fmt.Fprintln(c.out, "progress imported")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete saved progress",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cache := c.progressCache(cmd.Context())
				if !cache.Clear(cmd.Context()) {
					return errWriteFailed
				}
				fmt.Fprintln(c.out, "progress cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "size",
			Short: "Print the stored blob size in bytes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cache := c.progressCache(cmd.Context())
				fmt.Fprintln(c.out, cache.Size(cmd.Context()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "unlock <level>",
			Short: "Raise the highest unlocked level (never lowers it)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				level, err := strconv.Atoi(args[0])
				if err != nil || !core.ValidLevel(level) {
					return fmt.Errorf("level must be between 1 and %d", core.MaxLevel)
				}
				cache := c.progressCache(cmd.Context())
				// unlocked levels only grow
				level = max(level, cache.Load(cmd.Context(), c.cfg.Cache.LoadOptions()).UnlockedLevels)
				if !cache.UpdateFields(cmd.Context(), core.ProgressPatch{UnlockedLevels: core.Ptr(level)}) {
					return errWriteFailed
				}
				fmt.Fprintf(c.out, "levels 1-%d unlocked\n", level)
				return nil
			},
		},
		&cobra.Command{
			Use:   "recompute",
			Short: "Recompute the average star rating",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cache := c.progressCache(cmd.Context())
				if !cache.UpdateStats(cmd.Context(), core.StatsPatch{}) {
					return errWriteFailed
				}
				rec := cache.Load(cmd.Context(), engine.LoadOptions{})
				fmt.Fprintf(c.out, "average stars %.2f\n", rec.GameStats.AverageStars)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) showProgress(rec core.ProgressRecord) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "current level\t%d\n", rec.CurrentLevel)
	fmt.Fprintf(tw, "unlocked\t%d/%d\n", rec.UnlockedLevels, core.MaxLevel)
	fmt.Fprintf(tw, "completed\t%d\n", len(rec.CompletedLevels()))
	fmt.Fprintf(tw, "moves\t%d\n", rec.GameStats.TotalMoves)
	fmt.Fprintf(tw, "played / won\t%d / %d\n", rec.GameStats.TotalGamesPlayed, rec.GameStats.TotalGamesWon)
	if bt := rec.GameStats.BestTime; bt != nil {
		fmt.Fprintf(tw, "best time\t%ds\n", *bt)
	}
	fmt.Fprintf(tw, "average stars\t%.2f\n", rec.GameStats.AverageStars)
	fmt.Fprintf(tw, "play time\t%ds\n", rec.TotalPlayTime)
	_ = tw.Flush()

	fmt.Fprintln(c.out, "\nrewards")
	tw = tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, t := range core.SortedTiers() {
		fmt.Fprintf(tw, "%d\t%s %s\t%s\n", t.Level, t.Icon, t.Name, core.TierStatus(rec, t.Level))
	}
	_ = tw.Flush()
}

func newLevelsCmd(c *cli) *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the level table",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LEVEL\tNAME\tGRID\tSHUFFLES\tMOVES\tTIME")
			for _, l := range core.Levels() {
				if l.Level < from || (to > 0 && l.Level > to) {
					continue
				}
				reward := ""
				if t, ok := core.RewardTiers[l.Level]; ok {
					reward = " " + t.Icon
				}
				fmt.Fprintf(tw, "%d%s\t%s\t%dx%d\t%d\t%d\t%ds\n",
					l.Level, reward, l.Name, l.GridSize, l.GridSize, l.Shuffles, l.MaxMoves, l.TimeLimit)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&from, "from", 1, "first level to print")
	cmd.Flags().IntVar(&to, "to", 0, "last level to print (0 for all)")
	return cmd
}
