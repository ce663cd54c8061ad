package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// defaultCandidateName is used when the admin creates a session without one.
const defaultCandidateName = "Candidate"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Store Store

	// Now supplies the registry clock; defaults to time.Now.
	Now func() time.Time
}

// Service is the session lifecycle controller. It orchestrates token
// issuance and the start, presence and submit transitions against the Store,
// and builds the candidate and admin projections.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a lifecycle controller over the given store.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, now: now}
}

// Created is the result of issuing a new session.
type Created struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	URL       string `json:"url"`
}

// CreateSession issues a new session with a fresh token. The exam URL embeds
// both the token and the session ID for the candidate's browser.
func (s *Service) CreateSession(ctx context.Context, candidateName string) (*Created, error) {
	if candidateName == "" {
		candidateName = defaultCandidateName
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	sess := &Session{
		ID:            uuid.NewString(),
		Token:         token,
		CandidateName: candidateName,
		Status:        StatusCreated,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	slog.Info("session created", "session_id", sess.ID, "candidate", candidateName)

	return &Created{
		SessionID: sess.ID,
		Token:     token,
		URL:       fmt.Sprintf("/exam.html?token=%s&sid=%s", token, sess.ID),
	}, nil
}

// ExamView is the redacted projection shown to the candidate. Admin-only
// fields (answers, client metadata, presence telemetry) are excluded.
type ExamView struct {
	SessionID     string `json:"sessionId"`
	CandidateName string `json:"candidateName"`
	Status        Status `json:"status"`
	StartedAt     *int64 `json:"startedAt,omitempty"`
	SubmittedAt   *int64 `json:"submittedAt,omitempty"`
}

// GetForExam resolves a token to the candidate view. Unknown tokens return
// ErrNotFound regardless of whether they are malformed or merely absent.
func (s *Service) GetForExam(ctx context.Context, token string) (*ExamView, error) {
	sess, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return &ExamView{
		SessionID:     sess.ID,
		CandidateName: sess.CandidateName,
		Status:        sess.Status,
		StartedAt:     millis(sess.StartedAt),
		SubmittedAt:   millis(sess.SubmittedAt),
	}, nil
}

// StartResult carries the effective start timestamp in epoch milliseconds.
// StartedAt is omitted when the session was submitted without ever starting,
// so there is no timer to report.
type StartResult struct {
	StartedAt *int64 `json:"startedAt,omitempty"`
}

// Start marks the session started. The transition is effective at most once:
// a reload or duplicate request observes the original StartedAt and does not
// reset the timer.
func (s *Service) Start(ctx context.Context, token string) (*StartResult, error) {
	sess, err := s.store.Start(ctx, token, s.now())
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	return &StartResult{StartedAt: millis(sess.StartedAt)}, nil
}

// SubmitResult carries the effective submission timestamp in epoch milliseconds.
type SubmitResult struct {
	SubmittedAt int64 `json:"submittedAt"`
}

// Submit finalizes the session with the candidate's answers. Submission is
// first-write-wins: a second call leaves the stored answers untouched and
// returns the original SubmittedAt.
func (s *Service) Submit(ctx context.Context, token string, answers, clientMeta json.RawMessage) (*SubmitResult, error) {
	if answers == nil {
		answers = json.RawMessage("[]")
	}
	if clientMeta == nil {
		clientMeta = json.RawMessage("null")
	}

	sess, err := s.store.Submit(ctx, token, answers, clientMeta, s.now())
	if err != nil {
		return nil, fmt.Errorf("submitting session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}

	slog.Info("session submitted", "session_id", sess.ID, "status", sess.Status)

	if sess.SubmittedAt == nil {
		return nil, fmt.Errorf("submitting session: no submission timestamp recorded")
	}
	return &SubmitResult{SubmittedAt: sess.SubmittedAt.UnixMilli()}, nil
}

// Presence records a presence ping. The status string is opaque telemetry:
// unrecognized values are stored as-is, and pings after submission are kept
// for audit.
func (s *Service) Presence(ctx context.Context, token, status string) error {
	if status == "" {
		status = "unknown"
	}
	found, err := s.store.RecordPresence(ctx, token, status, s.now())
	if err != nil {
		return fmt.Errorf("recording presence: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// ResultView is the admin reporting projection including answers.
type ResultView struct {
	SessionID     string          `json:"sessionId"`
	CandidateName string          `json:"candidateName"`
	Status        Status          `json:"status"`
	CreatedAt     int64           `json:"createdAt"`
	StartedAt     *int64          `json:"startedAt,omitempty"`
	SubmittedAt   *int64          `json:"submittedAt,omitempty"`
	Answers       json.RawMessage `json:"answers,omitempty"`
	ClientMeta    json.RawMessage `json:"clientMeta,omitempty"`
}

// ListResults returns every session with its answers and timestamps, ordered
// by creation time for deterministic rendering.
func (s *Service) ListResults(ctx context.Context) ([]ResultView, error) {
	sessions, err := s.store.List(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}

	views := make([]ResultView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, ResultView{
			SessionID:     sess.ID,
			CandidateName: sess.CandidateName,
			Status:        sess.Status,
			CreatedAt:     sess.CreatedAt.UnixMilli(),
			StartedAt:     millis(sess.StartedAt),
			SubmittedAt:   millis(sess.SubmittedAt),
			Answers:       sess.Answers,
			ClientMeta:    sess.ClientMeta,
		})
	}
	return views, nil
}

// CandidateView is the admin projection covering status and presence.
type CandidateView struct {
	SessionID          string `json:"sessionId"`
	CandidateName      string `json:"candidateName"`
	Status             Status `json:"status"`
	CreatedAt          int64  `json:"createdAt"`
	StartedAt          *int64 `json:"startedAt,omitempty"`
	SubmittedAt        *int64 `json:"submittedAt,omitempty"`
	LastPresenceStatus string `json:"lastPresenceStatus,omitempty"`
	LastPresenceAt     *int64 `json:"lastPresenceAt,omitempty"`
}

// ListCandidates returns session metadata with presence telemetry, optionally
// filtered by status, ordered by creation time.
func (s *Service) ListCandidates(ctx context.Context, f Filter) ([]CandidateView, error) {
	sessions, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	views := make([]CandidateView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, CandidateView{
			SessionID:          sess.ID,
			CandidateName:      sess.CandidateName,
			Status:             sess.Status,
			CreatedAt:          sess.CreatedAt.UnixMilli(),
			StartedAt:          millis(sess.StartedAt),
			SubmittedAt:        millis(sess.SubmittedAt),
			LastPresenceStatus: sess.LastPresenceStatus,
			LastPresenceAt:     millis(sess.LastPresenceAt),
		})
	}
	return views, nil
}

// millis converts an optional timestamp to optional epoch milliseconds.
func millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
