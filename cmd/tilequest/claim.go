package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	sqlxAdapter "tilequest/adapters/sqlx"
	"tilequest/claims"
	"tilequest/core"
	"tilequest/engine"
	sdk "tilequest/sdk/go"
)

func newClaimCmd(c *cli) *cobra.Command {
	var local string
	cmd := &cobra.Command{
		Use:   "claim <tier> <wallet>",
		Short: "Claim the NFT reward of a completed milestone level",
		Long: `Submits an EVM wallet address for the reward of a milestone level
(10, 25, 50, 80 or 100). The level must be completed and not claimed yet.

By default the claim is sent to the configured tilequest server. With
--local the claim is written straight into a SQLite claims database.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("tier must be a level number: %q", args[0])
			}
			return c.claim(cmd.Context(), tier, args[1], local)
		},
	}
	cmd.Flags().StringVar(&local, "local", "", "write the claim to this SQLite database instead of the server")
	return cmd
}

func (c *cli) claim(ctx context.Context, tier int, wallet, local string) error {
	submitter, closeSubmitter, err := c.submitter(ctx, local)
	if err != nil {
		return err
	}
	defer closeSubmitter()

	g := c.gameService(ctx, engine.WithSubmitter(submitter), engine.WithAutosaveInterval(0))
	defer g.Close(context.WithoutCancel(ctx))

	id, err := g.ClaimReward(ctx, tier, wallet)
	switch {
	case errors.Is(err, claims.ErrDuplicate):
		return fmt.Errorf("%s was already submitted for level %d", core.ShortAddress(wallet), tier)
	case err != nil:
		return err
	}
	t := core.RewardTiers[tier]
	fmt.Fprintf(c.out, "%s %s claimed for %s (id %d)\n", t.Icon, t.Name, core.ShortAddress(wallet), id)
	return nil
}

func (c *cli) submitter(ctx context.Context, local string) (engine.ClaimSubmitter, func(), error) {
	if local == "" {
		client, err := c.client("")
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}

	cfg := sqlxAdapter.DefaultConfig(sqlxAdapter.DriverSQLite)
	cfg.DSN = local
	store, err := sqlxAdapter.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open claims database: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			c.log.Warn().Err(err).Msg("close claims database")
		}
	}
	return claims.NewService(store, claims.WithLogger(c.log)), closeStore, nil
}

func (c *cli) client(apiKey string) (*sdk.Client, error) {
	opts := []sdk.Option{sdk.WithTimeout(c.cfg.Client.Timeout)}
	if apiKey != "" {
		opts = append(opts, sdk.WithAPIKey(apiKey))
	}
	return sdk.NewClient(c.cfg.Client.ServerURL, opts...)
}
