// Package postgres provides PostgreSQL storage for exam sessions.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/proctorhq/examgate/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"id", "token", "candidate_name", "status", "created_at",
	"started_at", "submitted_at", "answers", "client_meta",
	"last_presence_status", "last_presence_at",
}

// Store implements session.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions (id, token, candidate_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Token, sess.CandidateName, string(sess.Status), sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetByToken resolves a token to its session. Returns nil, nil when unknown.
func (s *Store) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

// Start transitions created -> started with a conditional update. The WHERE
// clause on the current status makes the transition atomic: of two concurrent
// calls only one update matches, and both read back the same row afterwards.
func (s *Store) Start(ctx context.Context, token string, now time.Time) (*session.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'started', started_at = $2
		WHERE token = $1 AND status = 'created'
	`
	if _, err := s.db.ExecContext(ctx, query, token, now.UTC()); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return s.GetByToken(ctx, token)
}

// Submit transitions created/started -> submitted with a conditional update.
// An already-submitted row does not match, so answers are first-write-wins.
func (s *Store) Submit(ctx context.Context, token string, answers, clientMeta json.RawMessage, now time.Time) (*session.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'submitted', submitted_at = $2, answers = $3, client_meta = $4
		WHERE token = $1 AND status IN ('created', 'started')
	`
	if _, err := s.db.ExecContext(ctx, query, token, now.UTC(), []byte(answers), []byte(clientMeta)); err != nil {
		return nil, fmt.Errorf("submitting session: %w", err)
	}
	return s.GetByToken(ctx, token)
}

// RecordPresence stores the latest presence ping regardless of status.
func (s *Store) RecordPresence(ctx context.Context, token, status string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET last_presence_status = $2, last_presence_at = $3
		WHERE token = $1
	`
	res, err := s.db.ExecContext(ctx, query, token, status, now.UTC())
	if err != nil {
		return false, fmt.Errorf("recording presence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking presence update: %w", err)
	}
	return affected > 0, nil
}

// List returns sessions matching the filter, ordered by creation time.
func (s *Store) List(ctx context.Context, f session.Filter) ([]*session.Session, error) {
	qb := psq.Select(sessionColumns...).
		From("sessions").
		OrderBy("created_at ASC")
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(f.Status)})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// Close releases nothing: the *sql.DB is owned by the caller.
func (*Store) Close() error {
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFields(scanner rowScanner) (*session.Session, error) {
	var (
		sess           session.Session
		status         string
		startedAt      sql.NullTime
		submittedAt    sql.NullTime
		answers        []byte
		clientMeta     []byte
		presenceStatus sql.NullString
		presenceAt     sql.NullTime
	)

	err := scanner.Scan(
		&sess.ID, &sess.Token, &sess.CandidateName, &status, &sess.CreatedAt,
		&startedAt, &submittedAt, &answers, &clientMeta,
		&presenceStatus, &presenceAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = session.Status(status)
	if startedAt.Valid {
		t := startedAt.Time
		sess.StartedAt = &t
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		sess.SubmittedAt = &t
	}
	if len(answers) > 0 {
		sess.Answers = json.RawMessage(answers)
	}
	if len(clientMeta) > 0 {
		sess.ClientMeta = json.RawMessage(clientMeta)
	}
	if presenceStatus.Valid {
		sess.LastPresenceStatus = presenceStatus.String
	}
	if presenceAt.Valid {
		t := presenceAt.Time
		sess.LastPresenceAt = &t
	}
	return &sess, nil
}

// scanSession scans a single row into a Session.
func scanSession(row *sql.Row) (*session.Session, error) {
	sess, err := scanFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return sess, nil
}

// scanSessionRow scans a row from sql.Rows into a Session.
func scanSessionRow(rows *sql.Rows) (*session.Session, error) {
	sess, err := scanFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning session row: %w", err)
	}
	return sess, nil
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
