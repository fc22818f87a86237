package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tilequest/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"TILEQUEST_REDIS_ADDR"`
	Password     string        `json:"password" yaml:"password" env:"TILEQUEST_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"TILEQUEST_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"TILEQUEST_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"TILEQUEST_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"TILEQUEST_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"TILEQUEST_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"TILEQUEST_REDIS_WRITE_TIMEOUT"`
	// Prefix namespaces every slot key, e.g. "tilequest:".
	Prefix string `json:"prefix" yaml:"prefix" env:"TILEQUEST_REDIS_PREFIX"`
	// Quota caps the total bytes stored under Prefix; 0 means unlimited.
	Quota int64 `json:"quota" yaml:"quota" env:"TILEQUEST_REDIS_QUOTA"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "tilequest:",
	}
}

// Store implements engine.Slot on Redis.
// Data structure:
// - {prefix}{key} -> string blob
// - {prefix}__bytes -> int64 bytes held under the prefix
type Store struct {
	client *redis.Client
	prefix string
	quota  int64
}

// New creates a new Redis-backed slot with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: config.Prefix, quota: config.Quota}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, prefix string, quota int64) *Store {
	return &Store{client: client, prefix: prefix, quota: quota}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string { return s.prefix + k }
func (s *Store) usageKey() string    { return s.prefix + "__bytes" }

// Lua script for an atomic write that keeps the byte counter in step and
// refuses values that would exceed the quota.
var setScript = redis.NewScript(`
	local key = KEYS[1]
	local usage = KEYS[2]
	local value = ARGV[1]
	local quota = tonumber(ARGV[2])
	local prev = redis.call('STRLEN', key)
	local used = tonumber(redis.call('GET', usage) or '0')
	local next_used = used - prev + string.len(value)

	if quota > 0 and next_used > quota then
		return redis.error_reply('quota exceeded')
	end

	redis.call('SET', key, value)
	redis.call('SET', usage, next_used)
	return next_used
`)

var removeScript = redis.NewScript(`
	local key = KEYS[1]
	local usage = KEYS[2]
	local prev = redis.call('STRLEN', key)
	if prev == 0 then
		return 0
	end
	redis.call('DEL', key)
	redis.call('DECRBY', usage, prev)
	return prev
`)

// Get returns the stored blob
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", engine.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: redis get: %v", engine.ErrUnavailable, err)
	}
	return v, nil
}

// Set writes value under key, enforcing the quota
func (s *Store) Set(ctx context.Context, key, value string) error {
	err := setScript.Run(ctx, s.client, []string{s.key(key), s.usageKey()}, value, s.quota).Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "quota exceeded") {
		return engine.ErrQuotaExceeded
	}
	return fmt.Errorf("%w: redis set: %v", engine.ErrUnavailable, err)
}

// Remove deletes key; a missing key is not an error
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := removeScript.Run(ctx, s.client, []string{s.key(key), s.usageKey()}).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", engine.ErrUnavailable, err)
	}
	return nil
}

// Used reports the bytes held under the prefix.
func (s *Store) Used(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.usageKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

var _ engine.Slot = (*Store)(nil)
