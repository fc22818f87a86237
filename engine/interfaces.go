package engine

import (
	"context"
	"errors"

	"tilequest/core"
)

var (
	// ErrNotFound is returned by a Slot when the key holds no value.
	ErrNotFound = errors.New("slot: key not found")
	// ErrQuotaExceeded is returned by a Slot when a write would exceed its capacity.
	ErrQuotaExceeded = errors.New("slot: quota exceeded")
	// ErrUnavailable is returned by a Slot whose backend cannot be reached.
	ErrUnavailable = errors.New("slot: storage unavailable")
)

// Slot abstracts a local key-value store holding serialized blobs.
// Remove of a missing key is not an error.
type Slot interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, record core.ProgressRecord, trigger core.Event) []core.Event
}

// ClaimSubmitter forwards a reward claim to the remote address endpoint.
// It returns the id assigned by the server.
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, wallet string, level int, sessionID string) (int64, error)
}
