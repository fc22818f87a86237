package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tilequest/config"
	"tilequest/engine"
	"tilequest/game"
	"tilequest/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries flags and lazily opened resources shared by all subcommands.
type cli struct {
	in  io.Reader
	out io.Writer

	configPath string
	profile    string
	storage    string
	dataPath   string

	cfg       *config.Config
	log       zerolog.Logger
	slot      engine.Slot
	closeSlot func() error
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	root := &cobra.Command{
		Use:   "tilequest",
		Short: "Sliding-tile puzzle with persistent progress and NFT reward claims",
		Long: `tilequest plays a 100-level sliding-tile puzzle in the terminal.

Progress is kept in a single storage slot (JSON file, SQLite, Redis or memory)
and can be exported, imported and cleared. Completing levels 10, 25, 50, 80 and
100 unlocks a reward that is claimed by submitting a wallet address to a
tilequest server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (.json, .yaml)")
	pf.StringVar(&c.profile, "profile", "", "config profile (development, testing, staging, production)")
	pf.StringVar(&c.storage, "storage", "", "progress slot adapter (memory, file, sqlite, redis)")
	pf.StringVar(&c.dataPath, "data", "", "path of the file or sqlite slot")

	root.AddCommand(
		newPlayCmd(c),
		newProgressCmd(c),
		newLevelsCmd(c),
		newClaimCmd(c),
		newAddressesCmd(c),
		newEventsCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logging.NewWithWriter(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     "text",
		Attributes: cfg.Logging.Attributes,
	}, cmd.ErrOrStderr())
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.configPath != "":
		cfg, err = config.LoadFromFile(c.configPath)
	case c.profile != "":
		cfg, err = config.LoadProfile(c.profile)
	default:
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if c.storage != "" {
		cfg.Storage.Adapter = c.storage
	}
	if c.dataPath != "" {
		switch cfg.Storage.Adapter {
		case "sqlite":
			cfg.Storage.SQLite.Path = c.dataPath
		default:
			cfg.Storage.File.Path = c.dataPath
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSlot opens the configured slot once. A slot that cannot be opened is
// reported and left nil.
func (c *cli) openSlot(ctx context.Context) engine.Slot {
	if c.closeSlot != nil {
		return c.slot
	}
	slot, closeSlot, err := newSlot(ctx, c.cfg.Storage)
	if err != nil {
		c.log.Warn().Err(err).Str("adapter", c.cfg.Storage.Adapter).Msg("progress storage unavailable")
		slot, closeSlot = nil, noClose
	}
	c.slot, c.closeSlot = slot, closeSlot
	return slot
}

func (c *cli) cacheOptions() []engine.CacheOption {
	return []engine.CacheOption{engine.WithCacheKey(c.cfg.Cache.Key), engine.WithLogger(c.log)}
}

// progressCache reads and writes the slot directly; without a slot reads
// yield defaults and writes fail.
func (c *cli) progressCache(ctx context.Context) *engine.ProgressCache {
	return engine.NewProgressCache(c.openSlot(ctx), c.cacheOptions()...)
}

func (c *cli) gameService(ctx context.Context, opts ...engine.ServiceOption) *engine.GameService {
	slot := c.openSlot(ctx)
	if slot == nil {
		c.log.Warn().Msg("progress will not be saved")
	}
	base := []engine.ServiceOption{
		engine.WithAutosaveInterval(c.cfg.Cache.AutosaveInterval),
		engine.WithLoadOptions(c.cfg.Cache.LoadOptions()),
		engine.WithServiceLogger(c.log),
	}
	return game.New(
		game.WithSlot(slot),
		game.WithCacheOptions(c.cacheOptions()...),
		game.WithServiceOptions(append(base, opts...)...),
	)
}

func (c *cli) teardown() error {
	if c.closeSlot == nil {
		return nil
	}
	err := c.closeSlot()
	c.slot, c.closeSlot = nil, nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
