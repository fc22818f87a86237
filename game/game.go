package game

import (
	"tilequest/adapters/memory"
	"tilequest/engine"
	"tilequest/realtime"
)

// Option configures the game builder.
type Option func(*config)

type config struct {
	slot      engine.Slot
	cacheOpts []engine.CacheOption
	mode      engine.DispatchMode
	hub       *realtime.Hub
	svcOpts   []engine.ServiceOption
}

// WithSlot sets the progress storage slot.
func WithSlot(s engine.Slot) Option { return func(c *config) { c.slot = s } }

// WithCacheOptions tunes the progress cache (key, clock, logger).
func WithCacheOptions(opts ...engine.CacheOption) Option {
	return func(c *config) { c.cacheOpts = append(c.cacheOpts, opts...) }
}

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime forwards every game event to hub.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithServiceOptions passes options through to the GameService.
func WithServiceOptions(opts ...engine.ServiceOption) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, opts...) }
}

// New builds a ready-to-play GameService. If not provided, defaults are used:
//   - storage: in-memory slot (progress is lost on exit)
//   - dispatch: sync, so handlers observe events in order
func New(opts ...Option) *engine.GameService {
	cfg := &config{mode: engine.DispatchSync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.slot == nil {
		cfg.slot = memory.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	cache := engine.NewProgressCache(cfg.slot, cfg.cacheOpts...)
	return engine.NewGameService(cache, bus, cfg.svcOpts...)
}
