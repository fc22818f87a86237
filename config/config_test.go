package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilequest/adapters/sqlx"
	"tilequest/engine"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "memory", cfg.Claims.Adapter)
	assert.Equal(t, engine.DefaultCacheKey, cfg.Cache.Key)
	assert.Equal(t, 30*time.Second, cfg.Cache.AutosaveInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TILEQUEST_SERVER_ADDR", ":9999")
	t.Setenv("TILEQUEST_STORAGE_ADAPTER", "redis")
	t.Setenv("TILEQUEST_REDIS_ADDR", "cache:6379")
	t.Setenv("TILEQUEST_CACHE_AUTOSAVE_INTERVAL", "45s")
	t.Setenv("TILEQUEST_SECURITY_API_KEYS", "a, b,,")
	t.Setenv("TILEQUEST_LOG_ATTRIBUTES", "service=tilequest,region=eu")
	t.Setenv("TILEQUEST_CLAIMS_ADAPTER", "sql")
	t.Setenv("TILEQUEST_SQL_DRIVER", "mysql")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 45*time.Second, cfg.Cache.AutosaveInterval)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
	assert.Equal(t, map[string]string{"service": "tilequest", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, sqlx.DriverMySQL, cfg.Claims.SQL.Driver)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("TILEQUEST_CACHE_MAX_AGE", "forever")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILEQUEST_CACHE_MAX_AGE")
}

func TestLoadFromFile(t *testing.T) {
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	// untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_YAML(t *testing.T) {
	content := `
environment: staging
storage:
  adapter: sqlite
  sqlite:
    path: /var/lib/tilequest/progress.db
claims:
  adapter: sql
  sql:
    driver: sqlite
    dsn: /var/lib/tilequest/claims.db
cache:
  max_age: 720h
  autosave_interval: 15s
webhooks:
  endpoints: ["https://hooks.example.com/claims"]
  types: [address_submitted]
`
	path := filepath.Join(t.TempDir(), "tilequest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "sqlite", cfg.Storage.Adapter)
	assert.Equal(t, "/var/lib/tilequest/progress.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, sqlx.DriverSQLite, cfg.Claims.SQL.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Cache.MaxAge)
	assert.Equal(t, 15*time.Second, cfg.Cache.AutosaveInterval)
	assert.Equal(t, engine.LoadOptions{MaxAge: 720 * time.Hour}, cfg.Cache.LoadOptions())
	assert.Equal(t, []string{"address_submitted"}, cfg.Webhooks.Types)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TILEQUEST_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("TILEQUEST_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("TILEQUEST_LOG_LEVEL"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty environment", func(c *Config) { c.Environment = "" }, "environment cannot be empty"},
		{"server timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read_timeout must be positive"},
		{"path prefix", func(c *Config) { c.Server.PathPrefix = "api" }, "path_prefix must start with /"},
		{"slot adapter", func(c *Config) { c.Storage.Adapter = "localstorage" }, "adapter must be one of"},
		{"sqlite path", func(c *Config) { c.Storage.Adapter = "sqlite"; c.Storage.SQLite.Path = "" }, "sqlite config: path cannot be empty"},
		{"claims driver", func(c *Config) { c.Claims.Adapter = "sql"; c.Claims.SQL.Driver = "oracle" }, "sql.driver must be one of"},
		{"negative autosave", func(c *Config) { c.Cache.AutosaveInterval = -time.Second }, "autosave_interval cannot be negative"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "format must be one of"},
		{"rate limit", func(c *Config) { c.Security.EnableRateLimit = true; c.Security.RateLimit.BurstSize = 0 }, "burst_size"},
		{"blank api key", func(c *Config) { c.Security.APIKeys = []string{" "} }, "api_keys[0] is empty"},
		{"webhook url", func(c *Config) { c.Webhooks.Endpoints = []string{"ftp://x"} }, "endpoints[0]"},
		{"webhook type", func(c *Config) { c.Webhooks.Types = []string{"nope"} }, `unknown event type "nope"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}

	cfg, err := LoadProfile("testing")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Zero(t, cfg.Cache.AutosaveInterval)

	cfg, err = LoadProfile("production")
	require.NoError(t, err)
	assert.Equal(t, "sql", cfg.Claims.Adapter)
	assert.True(t, cfg.Security.EnableRateLimit)
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Claims.SQL.DSN = "postgres://user:hunter2@db/tilequest"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Webhooks.Secret = "hunter2"
	cfg.Security.APIKeys = []string{"hunter2"}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")
	// the original is untouched
	assert.Equal(t, "hunter2", cfg.Storage.Redis.Password)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o600))
		return p
	}

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", write("a.json"), false},
		{"valid yaml file", write("a.yaml"), false},
		{"valid yml file", write("a.yml"), false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-config extension", write("a.txt"), true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
