package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tilequest/analytics"
	"tilequest/core"
	sdk "tilequest/sdk/go"
)

func newAddressesCmd(c *cli) *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Administer submitted claim addresses on the server",
	}
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("TILEQUEST_API_KEY"), "admin API key")

	var opts sdk.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List submitted addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(apiKey)
			if err != nil {
				return err
			}
			page, err := client.ListAddresses(cmd.Context(), opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWALLET\tLEVEL\tNFT\tSUBMITTED")
			for _, a := range page.Addresses {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", a.ID, a.WalletAddress, a.NFTLevel, a.NFTName, a.SubmittedAt.Format("2006-01-02 15:04:05"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			p := page.Pagination
			fmt.Fprintf(c.out, "%d-%d of %d\n", min(p.Offset+1, p.Total), p.Offset+len(page.Addresses), p.Total)
			return nil
		},
	}
	list.Flags().IntVar(&opts.Level, "level", 0, "only this reward level")
	list.Flags().StringVar(&opts.Address, "address", "", "only this wallet")
	list.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	list.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print claim statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client(apiKey)
			if err != nil {
				return err
			}
			st, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "total %d, unique wallets %d, last 24h %d\n", st.TotalAddresses, st.UniqueWallets, st.RecentSubmissions)
			for _, lc := range st.LevelBreakdown {
				fmt.Fprintf(c.out, "  %3d %-24s %d\n", lc.Level, lc.Name, lc.Count)
			}
			return nil
		},
	}

	var exportOpts sdk.ListOptions
	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Download all addresses as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client(apiKey)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return client.ExportCSV(cmd.Context(), c.out, exportOpts)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := client.ExportCSV(cmd.Context(), f, exportOpts); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	export.Flags().IntVar(&exportOpts.Level, "level", 0, "only this reward level")

	var period, date string
	summary := &cobra.Command{
		Use:   "analytics",
		Short: "Print the server's event summary for a day, week or month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := analytics.ParsePeriod(period)
			if err != nil {
				return err
			}
			var at time.Time
			if date != "" {
				if at, err = time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("date must look like 2006-01-02: %w", err)
				}
			}
			client, err := c.client(apiKey)
			if err != nil {
				return err
			}
			sum, err := client.Analytics(cmd.Context(), p, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s: %d active sessions, %d claims\n", sum.Period, sum.Key, sum.ActiveSessions, sum.TotalClaims)
			for _, t := range core.SortedTiers() {
				if n := sum.ClaimsByTier[t.Level]; n > 0 {
					fmt.Fprintf(c.out, "  %s %-24s %d\n", t.Icon, t.Name, n)
				}
			}
			return nil
		},
	}
	summary.Flags().StringVar(&period, "period", "daily", "daily, weekly or monthly")
	summary.Flags().StringVar(&date, "date", "", "any day inside the period (default today)")

	cmd.AddCommand(list, stats, export, summary)
	return cmd
}

func newEventsCmd(c *cli) *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream server events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client("")
			if err != nil {
				return err
			}
			filter := make([]core.EventType, 0, len(types))
			for _, t := range types {
				if t = strings.TrimSpace(t); t != "" {
					filter = append(filter, core.EventType(t))
				}
			}
			events, err := client.SubscribeEvents(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			for e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&types, "types", nil, "event types to receive (comma separated)")
	return cmd
}
