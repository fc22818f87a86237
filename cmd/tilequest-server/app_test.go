package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlxAdapter "tilequest/adapters/sqlx"
	"tilequest/analytics"
	"tilequest/config"
)

const wallet = "0x1234567890abcdef1234567890abcdef12345678"

func TestProvideConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, writeFile(path, "environment: testing\nclaims:\n  adapter: memory\n"))
	t.Setenv("TILEQUEST_CONFIG", path)

	cfg, err := provideConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.EnvTesting, cfg.Environment)
}

func TestAssembledServer(t *testing.T) {
	var hooked atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "address_submitted") {
			hooked.Add(1)
		}
	}))
	defer hook.Close()

	cfg := config.DefaultConfig()
	cfg.Claims.Adapter = "sql"
	cfg.Claims.SQL = sqlxAdapter.DefaultConfig(sqlxAdapter.DriverSQLite)
	cfg.Claims.SQL.DSN = filepath.Join(t.TempDir(), "claims.db")
	cfg.Webhooks.Endpoints = []string{hook.URL}
	cfg.Webhooks.Types = []string{"address_submitted"}
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	logger := zerolog.Nop()
	hub := provideHub()
	bus, closeBus := provideBus(cfg, hub, logger)
	defer closeBus()
	store, closeStore, err := provideClaimStore(ctx, cfg, logger)
	require.NoError(t, err)
	defer closeStore()
	require.NotNil(t, store.health)

	_, events := hub.Subscribe(4)
	svc := provideClaimsService(store, bus, logger)
	metrics := provideAnalytics(bus)
	srv := httptest.NewServer(provideHandler(cfg, svc, hub, store, metrics, logger))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/addresses", "application/json",
		strings.NewReader(`{"walletAddress":"`+wallet+`","nftLevel":80}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case ev := <-events:
		assert.Equal(t, 80, ev.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("event not broadcast")
	}
	assert.Eventually(t, func() bool { return hooked.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return metrics.Summarize(analytics.PeriodDaily, time.Now()).ClaimsByTier[80] == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, cfg.Server.Address, provideServer(cfg, nil).Addr)
}

func TestProvideClaimStore_Unknown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Claims.Adapter = "mongo"
	_, _, err := provideClaimStore(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
