package memory

import (
	"context"
	"sync"

	"tilequest/engine"
)

// Store is a concurrent in-memory Slot. A positive quota caps the total bytes
// held across all keys, which mimics a browser storage area.
type Store struct {
	mu    sync.Mutex
	data  map[string]string
	used  int
	quota int
}

type Option func(*Store)

// WithQuota limits the total stored bytes; 0 means unlimited.
func WithQuota(bytes int) Option { return func(s *Store) { s.quota = bytes } }

func New(opts ...Option) *Store {
	s := &Store{data: map[string]string{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", engine.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.used - len(s.data[key]) + len(value)
	if s.quota > 0 && next > s.quota {
		return engine.ErrQuotaExceeded
	}
	s.data[key] = value
	s.used = next
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used -= len(s.data[key])
	delete(s.data, key)
	return nil
}

// Used returns the bytes currently held.
func (s *Store) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

var _ engine.Slot = (*Store)(nil)
