package examcfg

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-process state. It is intended for
// tests and single-instance development runs; production deployments use the
// postgres or sqlite stores so every server instance observes admin updates.
type MemoryStore struct {
	mu        sync.RWMutex
	current   AppConfig
	revisions []Revision
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory config store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty in-memory config store that stamps
// revisions with the supplied clock.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

// Load returns the active configuration.
func (s *MemoryStore) Load(_ context.Context) (AppConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// Save replaces the active configuration and records a revision.
func (s *MemoryStore) Save(_ context.Context, cfg AppConfig, meta SaveMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = cfg
	s.revisions = append(s.revisions, Revision{
		Version:         len(s.revisions) + 1,
		OpenAtUTC:       cfg.OpenAtUTC,
		DurationSeconds: cfg.DurationSeconds,
		Author:          meta.Author,
		CreatedAt:       s.now().UTC(),
	})
	return nil
}

// History returns recent revisions, newest first.
func (s *MemoryStore) History(_ context.Context, limit int) ([]Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.revisions) {
		limit = len(s.revisions)
	}
	out := make([]Revision, 0, limit)
	for i := len(s.revisions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.revisions[i])
	}
	return out, nil
}

// Mode returns "memory".
func (*MemoryStore) Mode() string {
	return "memory"
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
