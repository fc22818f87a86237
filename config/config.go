package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tilequest/adapters/redis"
	"tilequest/adapters/sqlx"
	"tilequest/engine"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" env:"TILEQUEST_ENV"`
	Profile     string      `json:"profile" yaml:"profile" env:"TILEQUEST_PROFILE"`

	Server   ServerConfig   `json:"server" yaml:"server"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Claims   ClaimsConfig   `json:"claims" yaml:"claims"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Webhooks WebhookConfig  `json:"webhooks" yaml:"webhooks"`
	Client   ClientConfig   `json:"client" yaml:"client"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" env:"TILEQUEST_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" env:"TILEQUEST_SERVER_PATH_PREFIX"`
	CORSOrigins       []string      `json:"cors_origins" yaml:"cors_origins" env:"TILEQUEST_SERVER_CORS_ORIGINS"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" env:"TILEQUEST_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" env:"TILEQUEST_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"TILEQUEST_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" env:"TILEQUEST_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"TILEQUEST_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects the slot backend holding the progress blob.
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" env:"TILEQUEST_STORAGE_ADAPTER"`
	Quota   int          `json:"quota" yaml:"quota" env:"TILEQUEST_STORAGE_QUOTA"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty"`
	SQLite  FileConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// FileConfig holds the path of a file-backed slot.
type FileConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ClaimsConfig selects the repository behind the address endpoint.
type ClaimsConfig struct {
	Adapter string      `json:"adapter" yaml:"adapter" env:"TILEQUEST_CLAIMS_ADAPTER"`
	SQL     sqlx.Config `json:"sql,omitempty" yaml:"sql,omitempty"`
}

// CacheConfig tunes the progress cache and game session.
type CacheConfig struct {
	Key              string        `json:"key" yaml:"key" env:"TILEQUEST_CACHE_KEY"`
	MaxAge           time.Duration `json:"max_age" yaml:"max_age" env:"TILEQUEST_CACHE_MAX_AGE"`
	SkipValidation   bool          `json:"skip_validation" yaml:"skip_validation" env:"TILEQUEST_CACHE_SKIP_VALIDATION"`
	AutosaveInterval time.Duration `json:"autosave_interval" yaml:"autosave_interval" env:"TILEQUEST_CACHE_AUTOSAVE_INTERVAL"`
}

// LoadOptions converts the cache section for engine.ProgressCache.Load.
func (c CacheConfig) LoadOptions() engine.LoadOptions {
	return engine.LoadOptions{MaxAge: c.MaxAge, SkipValidation: c.SkipValidation}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" env:"TILEQUEST_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" env:"TILEQUEST_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" env:"TILEQUEST_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" env:"TILEQUEST_LOG_ATTRIBUTES"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" env:"TILEQUEST_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	// APIKeys guard the admin routes (list, stats, export). Empty leaves them open.
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty" env:"TILEQUEST_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" env:"TILEQUEST_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" env:"TILEQUEST_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"TILEQUEST_SECURITY_RATE_LIMIT_CLEANUP"`
}

// WebhookConfig lists endpoints notified of domain events.
type WebhookConfig struct {
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty" env:"TILEQUEST_WEBHOOK_ENDPOINTS"`
	Secret    string   `json:"secret,omitempty" yaml:"secret,omitempty" env:"TILEQUEST_WEBHOOK_SECRET"`
	Types     []string `json:"types,omitempty" yaml:"types,omitempty" env:"TILEQUEST_WEBHOOK_TYPES"`
}

// ClientConfig is used by the CLI when submitting claims to a remote server.
type ClientConfig struct {
	ServerURL string        `json:"server_url" yaml:"server_url" env:"TILEQUEST_SERVER_URL"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" env:"TILEQUEST_CLIENT_TIMEOUT"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadProfile starts from the defaults of the named environment and applies
// environment overrides.
func LoadProfile(name string) (*Config, error) {
	cfg, err := ProfileConfig(Environment(name))
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.New("config file must have .json, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigins:       []string{"*"},
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "file",
			Redis:   redis.DefaultConfig(),
			File:    FileConfig{Path: "./data/progress.json"},
			SQLite:  FileConfig{Path: "./data/progress.db"},
		},
		Claims: ClaimsConfig{
			Adapter: "memory",
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
		},
		Cache: CacheConfig{
			Key:              engine.DefaultCacheKey,
			AutosaveInterval: engine.DefaultAutosaveInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080/api",
			Timeout:   10 * time.Second,
		},
	}
}

// ProfileConfig returns the defaults adjusted for an environment.
func ProfileConfig(env Environment) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Environment = env
	cfg.Profile = string(env)
	switch env {
	case EnvDevelopment:
		cfg.Profile = "default"
		cfg.Logging.Format = "text"
		cfg.Logging.Level = "debug"
	case EnvTesting:
		cfg.Storage.Adapter = "memory"
		cfg.Claims.Adapter = "memory"
		cfg.Cache.AutosaveInterval = 0
		cfg.Logging.Level = "error"
	case EnvStaging, EnvProduction:
		cfg.Claims.Adapter = "sql"
		cfg.Security.EnableRateLimit = true
		cfg.Server.CORSOrigins = nil
		if env == EnvProduction {
			cfg.Logging.Level = "warn"
		}
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}
	return cfg, nil
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Claims.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("claims config: %v", err))
	}

	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("cache config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhooks config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Claims.SQL.DSN != "" {
		cfg.Claims.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{"[REDACTED]"}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
