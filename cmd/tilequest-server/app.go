package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	mem "tilequest/adapters/memory"
	sqlxAdapter "tilequest/adapters/sqlx"
	"tilequest/analytics"
	"tilequest/api/httpapi"
	"tilequest/claims"
	"tilequest/config"
	"tilequest/core"
	"tilequest/engine"
	"tilequest/integrations/webhook"
	"tilequest/logging"
	"tilequest/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Hub       *realtime.Hub
	Bus       *engine.EventBus
	Analytics *analytics.Metrics
	Claims    *claims.Service
	Handler   http.Handler
	Server    *http.Server
}

// claimStore couples the repository with its health probe.
type claimStore struct {
	repo   claims.Repository
	health httpapi.Pinger
}

// provideConfig reads .env, then a config file (TILEQUEST_CONFIG) or a
// profile (TILEQUEST_PROFILE), then environment overrides.
func provideConfig(_ context.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if path := os.Getenv("TILEQUEST_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	if profile := os.Getenv("TILEQUEST_PROFILE"); profile != "" && profile != "default" {
		return config.LoadProfile(profile)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Attributes: cfg.Logging.Attributes,
	}).With().Str("service", "tilequest-server").Logger()
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

// provideBus fans domain events out to WebSocket clients and webhooks.
func provideBus(cfg *config.Config, hub *realtime.Hub, logger zerolog.Logger) (*engine.EventBus, func()) {
	bus := engine.NewEventBus(engine.DispatchAsync)
	bus.SubscribeAll(hub.Broadcast)

	if len(cfg.Webhooks.Endpoints) > 0 {
		opts := []webhook.Option{
			webhook.WithSecret(cfg.Webhooks.Secret),
			webhook.WithLogger(logger),
		}
		if len(cfg.Webhooks.Types) > 0 {
			types := make([]core.EventType, len(cfg.Webhooks.Types))
			for i, t := range cfg.Webhooks.Types {
				types[i] = core.EventType(t)
			}
			opts = append(opts, webhook.WithTypes(types...))
		}
		bus.SubscribeAll(webhook.New(cfg.Webhooks.Endpoints, opts...).Handle)
	}
	return bus, bus.Close
}

// provideAnalytics aggregates every bus event for the /analytics route.
func provideAnalytics(bus *engine.EventBus) *analytics.Metrics {
	m := analytics.NewMetrics()
	bus.SubscribeAll(m.Handle)
	return m
}

func provideClaimStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*claimStore, func(), error) {
	switch cfg.Claims.Adapter {
	case "memory":
		logger.Warn().Msg("claims are kept in memory and lost on restart")
		return &claimStore{repo: mem.NewClaimStore()}, func() {}, nil
	case "sql":
		store, err := sqlxAdapter.New(ctx, cfg.Claims.SQL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error().Err(err).Msg("close claim store")
			}
		}
		return &claimStore{repo: store, health: store}, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown claims adapter: %s", cfg.Claims.Adapter)
	}
}

func provideClaimsService(store *claimStore, bus *engine.EventBus, logger zerolog.Logger) *claims.Service {
	return claims.NewService(store.repo,
		claims.WithPublisher(bus),
		claims.WithLogger(logger),
	)
}

func provideHandler(cfg *config.Config, svc *claims.Service, hub *realtime.Hub, store *claimStore, metrics *analytics.Metrics, logger zerolog.Logger) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		CORSOrigins:      cfg.Server.CORSOrigins,
		AdminAPIKeys:     cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Health:           store.health,
		Analytics:        metrics,
		Debug:            cfg.Environment == config.EnvDevelopment,
		Logger:           logger,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
