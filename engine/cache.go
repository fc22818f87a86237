package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"tilequest/core"
)

const (
	// DefaultCacheKey names the storage slot holding the progress blob.
	DefaultCacheKey = "puzzle-game-cache"
	// SchemaVersion is attached to every saved blob.
	SchemaVersion = "1.0.0"
)

// DefaultLegacyKeys are the per-field keys of the old multi-key layout.
// They are removed when a save needs to free space.
var DefaultLegacyKeys = []string{
	"puzzle-current-level",
	"puzzle-unlocked-levels",
	"puzzle-level-stars",
	"puzzle-claimed-achievements",
}

var requiredFields = []string{
	"currentLevel",
	"unlockedLevels",
	"levelStars",
	"claimedAchievements",
	"sessionId",
	"lastPlayed",
}

var errInvalidShape = errors.New("invalid progress record structure")

// LoadOptions tunes Load. The zero value validates and never expires.
type LoadOptions struct {
	// MaxAge discards records whose lastPlayed is older than this; 0 disables the check.
	MaxAge time.Duration
	// SkipValidation disables the structural checks.
	SkipValidation bool
}

// CacheOption configures a ProgressCache.
type CacheOption func(*ProgressCache)

// WithCacheKey overrides the slot key.
func WithCacheKey(key string) CacheOption {
	return func(c *ProgressCache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithLegacyKeys overrides the keys removed during save remediation.
func WithLegacyKeys(keys ...string) CacheOption {
	return func(c *ProgressCache) { c.legacyKeys = append([]string(nil), keys...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ProgressCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSessionIDs overrides the session id generator.
func WithSessionIDs(gen func() string) CacheOption {
	return func(c *ProgressCache) {
		if gen != nil {
			c.newSessionID = gen
		}
	}
}

// WithLogger sets the logger used for absorbed failures.
func WithLogger(l zerolog.Logger) CacheOption {
	return func(c *ProgressCache) { c.logger = l }
}

// ProgressCache is the sole read/write authority for the persisted progress
// record. Reads never fail: any storage, parse or shape problem yields a
// default record. Writes report success as a bool.
type ProgressCache struct {
	slot         Slot
	key          string
	legacyKeys   []string
	now          func() time.Time
	newSessionID func() string
	logger       zerolog.Logger
}

// NewProgressCache builds a cache over slot. A nil slot behaves as unavailable storage.
func NewProgressCache(slot Slot, opts ...CacheOption) *ProgressCache {
	c := &ProgressCache{
		slot:         slot,
		key:          DefaultCacheKey,
		legacyKeys:   DefaultLegacyKeys,
		now:          time.Now,
		newSessionID: NewSessionID,
		logger:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewSessionID returns an id of the form session_<epoch-ms>_<9 random chars>.
func NewSessionID() string {
	suffix, err := gonanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 9)
	if err != nil {
		suffix = strconv.FormatInt(time.Now().UnixNano()%1_000_000_000, 36)
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

// Defaults returns a freshly constructed default record.
func (c *ProgressCache) Defaults() core.ProgressRecord {
	return core.DefaultRecord(c.newSessionID(), c.now())
}

// Load returns the stored record stamped with a new session id and
// lastPlayed=now, or a default record when nothing usable is stored.
func (c *ProgressCache) Load(ctx context.Context, opts LoadOptions) core.ProgressRecord {
	if c.slot == nil {
		return c.Defaults()
	}
	raw, err := c.slot.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error().Err(err).Str("key", c.key).Msg("error loading cache")
		}
		return c.Defaults()
	}
	if raw == "" {
		return c.Defaults()
	}

	rec, err := decodeRecord([]byte(raw), !opts.SkipValidation)
	if err != nil {
		c.logger.Warn().Err(err).Msg("invalid cache structure, resetting to defaults")
		return c.Defaults()
	}

	now := c.now().UTC()
	if opts.MaxAge > 0 && now.Sub(rec.LastPlayed) > opts.MaxAge {
		c.logger.Info().Time("last_played", rec.LastPlayed).Dur("max_age", opts.MaxAge).Msg("cache expired, resetting to defaults")
		return c.Defaults()
	}

	rec.SessionID = c.newSessionID()
	rec.LastPlayed = now
	return rec
}

type storedRecord struct {
	core.ProgressRecord
	Version string `json:"version"`
	SavedAt int64  `json:"savedAt"`
}

// Save stamps lastPlayed, tags the blob with the schema version and writes it.
// A failed write triggers one legacy-key cleanup and a single retry.
func (c *ProgressCache) Save(ctx context.Context, rec *core.ProgressRecord) bool {
	if c.slot == nil || rec == nil {
		return false
	}
	now := c.now().UTC()
	rec.LastPlayed = now
	rec.Normalize()

	payload, err := json.Marshal(storedRecord{ProgressRecord: *rec, Version: SchemaVersion, SavedAt: now.UnixMilli()})
	if err != nil {
		c.logger.Error().Err(err).Msg("error encoding cache")
		return false
	}

	err = c.slot.Set(ctx, c.key, string(payload))
	if err == nil {
		return true
	}
	c.logger.Error().Err(err).Int("bytes", len(payload)).Msg("error saving cache")

	c.clearLegacy(ctx)
	if err = c.slot.Set(ctx, c.key, string(payload)); err != nil {
		c.logger.Error().Err(err).Msg("cache save retry failed")
		return false
	}
	return true
}

// UpdateFields loads the current record, shallow-merges patch over it and saves.
func (c *ProgressCache) UpdateFields(ctx context.Context, patch core.ProgressPatch) bool {
	rec := c.Load(ctx, LoadOptions{})
	patch.Apply(&rec)
	return c.Save(ctx, &rec)
}

// UpdateStats merges patch into the stored game stats, recomputes the
// average star rating and saves.
func (c *ProgressCache) UpdateStats(ctx context.Context, patch core.StatsPatch) bool {
	rec := c.Load(ctx, LoadOptions{})
	patch.Apply(&rec.GameStats)
	rec.RecomputeAverage()
	return c.Save(ctx, &rec)
}

// Clear removes the stored blob. It is safe to call repeatedly.
func (c *ProgressCache) Clear(ctx context.Context) bool {
	if c.slot == nil {
		return false
	}
	if err := c.slot.Remove(ctx, c.key); err != nil {
		c.logger.Error().Err(err).Msg("error clearing cache")
		return false
	}
	return true
}

// Size returns the byte length of the stored blob, 0 when absent.
func (c *ProgressCache) Size(ctx context.Context) int {
	if c.slot == nil {
		return 0
	}
	raw, err := c.slot.Get(ctx, c.key)
	if err != nil {
		return 0
	}
	return len(raw)
}

// Export serializes the freshly loaded record as indented JSON without the
// storage metadata. Each call starts a new session id.
func (c *ProgressCache) Export(ctx context.Context) (string, error) {
	rec := c.Load(ctx, LoadOptions{})
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export progress: %w", err)
	}
	return string(b), nil
}

// Import validates a backup and saves it. Invalid input leaves storage untouched.
func (c *ProgressCache) Import(ctx context.Context, data string) bool {
	rec, err := decodeRecord([]byte(data), true)
	if err != nil {
		c.logger.Warn().Err(err).Msg("error importing cache")
		return false
	}
	return c.Save(ctx, &rec)
}

func (c *ProgressCache) clearLegacy(ctx context.Context) {
	for _, k := range c.legacyKeys {
		if err := c.slot.Remove(ctx, k); err != nil {
			c.logger.Warn().Err(err).Str("key", k).Msg("error clearing legacy key")
		}
	}
}

func decodeRecord(data []byte, validate bool) (core.ProgressRecord, error) {
	// unvalidated reads still need an object; null would decode to a zero record
	if v := bytes.TrimSpace(data); len(v) == 0 || v[0] != '{' {
		return core.ProgressRecord{}, fmt.Errorf("%w: not an object", errInvalidShape)
	}
	if validate {
		if err := validateShape(data); err != nil {
			return core.ProgressRecord{}, err
		}
	}
	var rec core.ProgressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.ProgressRecord{}, fmt.Errorf("%w: %v", errInvalidShape, err)
	}
	rec.Normalize()
	return rec, nil
}

// validateShape performs the shallow presence and coarse type checks.
func validateShape(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return errInvalidShape
	}
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			return fmt.Errorf("%w: missing %s", errInvalidShape, f)
		}
	}
	checks := []struct {
		field string
		ok    func(byte) bool
	}{
		{"currentLevel", isNumberStart},
		{"unlockedLevels", isNumberStart},
		{"levelStars", func(b byte) bool { return b == '{' }},
		{"claimedAchievements", func(b byte) bool { return b == '[' }},
	}
	for _, ch := range checks {
		v := bytes.TrimSpace(fields[ch.field])
		if len(v) == 0 || !ch.ok(v[0]) {
			return fmt.Errorf("%w: bad %s", errInvalidShape, ch.field)
		}
	}
	return nil
}

func isNumberStart(b byte) bool { return b == '-' || b >= '0' && b <= '9' }
