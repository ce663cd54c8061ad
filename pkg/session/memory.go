package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map keyed by token. The
// mutex makes start and submit conditional updates atomic within a single
// process; deployments with multiple server instances need the postgres or
// sqlite store, where the condition is enforced by the database itself.
type MemoryStore struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	sequence []string // tokens in creation order
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]*Session)}
}

// Create persists a new session.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.byToken[sess.Token] = &cp
	s.sequence = append(s.sequence, sess.Token)
	return nil
}

// GetByToken resolves a token to a copy of its session.
func (s *MemoryStore) GetByToken(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	cp := *sess
	return &cp, nil
}

// Start transitions created -> started, or returns the session unchanged.
func (s *MemoryStore) Start(_ context.Context, token string, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if sess.Status == StatusCreated {
		started := now.UTC()
		sess.Status = StatusStarted
		sess.StartedAt = &started
	}
	cp := *sess
	return &cp, nil
}

// Submit transitions created/started -> submitted, or returns the session
// unchanged when it was already submitted.
func (s *MemoryStore) Submit(_ context.Context, token string, answers, clientMeta json.RawMessage, now time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if sess.Status != StatusSubmitted {
		submitted := now.UTC()
		sess.Status = StatusSubmitted
		sess.SubmittedAt = &submitted
		sess.Answers = answers
		sess.ClientMeta = clientMeta
	}
	cp := *sess
	return &cp, nil
}

// RecordPresence stores the latest presence ping for the session.
func (s *MemoryStore) RecordPresence(_ context.Context, token, status string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok {
		return false, nil
	}
	at := now.UTC()
	sess.LastPresenceStatus = status
	sess.LastPresenceAt = &at
	return true, nil
}

// List returns sessions matching the filter in creation order.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sequence))
	for _, token := range s.sequence {
		sess := s.byToken[token]
		if f.Status != "" && sess.Status != f.Status {
			continue
		}
		cp := *sess
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Close releases no resources for the in-memory store.
func (*MemoryStore) Close() error {
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
