// Package session provides the exam session registry and lifecycle controller.
// It defines the Store interface for session persistence and the Session type
// that represents one candidate's single-use exam attempt.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown tokens. Malformed and well-formed but
// unknown tokens produce the same error so responses never leak which tokens
// exist.
var ErrNotFound = errors.New("invalid or expired token")

// Status is the lifecycle state of a session. Transitions are monotonic:
// created -> started -> submitted, with no backward moves.
type Status string

const (
	// StatusCreated is the initial state after admin issuance.
	StatusCreated Status = "created"
	// StatusStarted is set by the candidate's first start call.
	StatusStarted Status = "started"
	// StatusSubmitted is the terminal state set by the first submit call.
	StatusSubmitted Status = "submitted"
)

// Session represents one candidate's exam attempt.
type Session struct {
	// ID is the session identifier, safe to show in admin views.
	ID string

	// Token is the bearer capability handed to exactly one candidate.
	Token string

	// CandidateName is the display name recorded at creation.
	CandidateName string

	// Status is the current lifecycle state.
	Status Status

	// CreatedAt is when the admin issued the session.
	CreatedAt time.Time

	// StartedAt is set once, by the first start call.
	StartedAt *time.Time

	// SubmittedAt is set once, by the first submit call.
	SubmittedAt *time.Time

	// Answers is the candidate's submitted response sequence. It is absent
	// until submit and immutable afterwards.
	Answers json.RawMessage

	// ClientMeta is a free-form diagnostic payload captured at submit.
	ClientMeta json.RawMessage

	// LastPresenceStatus and LastPresenceAt record the most recent presence
	// ping. Presence is best-effort telemetry, not correctness-bearing.
	LastPresenceStatus string
	LastPresenceAt     *time.Time
}

// Filter narrows List results.
type Filter struct {
	// Status limits results to one lifecycle state when non-empty.
	Status Status
}

// Store defines the interface for session persistence. Start and Submit are
// atomic conditional updates: the expected-status check and the write happen
// in one step at the persistence layer, so concurrent duplicate requests
// serialize correctly even with multiple server instances sharing a backend.
// Lookups by token return nil, nil when the token is unknown.
type Store interface {
	// Create persists a new session in created status.
	Create(ctx context.Context, s *Session) error

	// GetByToken resolves a token to its session.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// Start transitions created -> started, recording now as StartedAt. If
	// the session already left created, it is returned unchanged so callers
	// observe the original StartedAt.
	Start(ctx context.Context, token string, now time.Time) (*Session, error)

	// Submit transitions created/started -> submitted, recording the answers,
	// client metadata and now as SubmittedAt. An already-submitted session is
	// returned unchanged: submission is first-write-wins.
	Submit(ctx context.Context, token string, answers, clientMeta json.RawMessage, now time.Time) (*Session, error)

	// RecordPresence stores the latest presence status regardless of the
	// session's lifecycle state, including after submission. Returns false
	// when the token is unknown.
	RecordPresence(ctx context.Context, token, status string, now time.Time) (bool, error)

	// List returns sessions matching the filter, ordered by creation time.
	List(ctx context.Context, f Filter) ([]*Session, error)

	// Close releases resources held by the store.
	Close() error
}
