package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"tilequest/adapters/sqlx"
	"tilequest/core"
)

func oneOf(field, value string, valid ...string) string {
	if slices.Contains(valid, value) {
		return ""
	}
	return fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", "))
}

func joinErrs(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.PathPrefix != "" && !strings.HasPrefix(s.PathPrefix, "/") {
		errs = append(errs, "path_prefix must start with /")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	return joinErrs(errs)
}

// Validate validates the slot backend selection.
func (s *StorageConfig) Validate() error {
	var errs []string

	if msg := oneOf("adapter", s.Adapter, "memory", "file", "sqlite", "redis"); msg != "" {
		errs = append(errs, msg)
	}
	if s.Quota < 0 {
		errs = append(errs, "quota cannot be negative")
	}

	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "sqlite":
		if err := s.SQLite.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("sqlite config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	}

	return joinErrs(errs)
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates the claims repository selection.
func (c *ClaimsConfig) Validate() error {
	var errs []string

	if msg := oneOf("adapter", c.Adapter, "memory", "sql"); msg != "" {
		errs = append(errs, msg)
	}
	if c.Adapter == "sql" {
		if msg := oneOf("sql.driver", string(c.SQL.Driver),
			string(sqlx.DriverPostgres), string(sqlx.DriverMySQL), string(sqlx.DriverSQLite)); msg != "" {
			errs = append(errs, msg)
		}
		if c.SQL.DSN == "" {
			errs = append(errs, "sql.dsn cannot be empty")
		}
		if c.SQL.MaxOpenConns < 0 || c.SQL.MaxIdleConns < 0 {
			errs = append(errs, "sql pool sizes cannot be negative")
		}
	}

	return joinErrs(errs)
}

// Validate validates cache settings. A zero autosave interval disables autosave.
func (c *CacheConfig) Validate() error {
	var errs []string
	if c.Key == "" {
		errs = append(errs, "key cannot be empty")
	}
	if c.MaxAge < 0 {
		errs = append(errs, "max_age cannot be negative")
	}
	if c.AutosaveInterval < 0 {
		errs = append(errs, "autosave_interval cannot be negative")
	}
	return joinErrs(errs)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if msg := oneOf("level", l.Level, "debug", "info", "warn", "error"); msg != "" {
		errs = append(errs, msg)
	}
	if msg := oneOf("format", l.Format, "json", "text"); msg != "" {
		errs = append(errs, msg)
	}
	if msg := oneOf("output", l.Output, "stdout", "stderr"); msg != "" {
		errs = append(errs, msg)
	}

	return joinErrs(errs)
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	return joinErrs(errs)
}

// Validate checks endpoint URLs and event type names.
func (w WebhookConfig) Validate() error {
	var errs []string
	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an http(s) URL", i))
		}
	}
	for _, t := range w.Types {
		if !slices.Contains(core.EventTypes(), core.EventType(t)) {
			errs = append(errs, fmt.Sprintf("unknown event type %q", t))
		}
	}
	return joinErrs(errs)
}
