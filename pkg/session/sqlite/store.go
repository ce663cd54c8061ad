// Package sqlite provides embedded storage for exam sessions using SQLite.
// Timestamps are stored as integer epoch milliseconds so values round-trip
// exactly between the database and the millisecond-based API surface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/proctorhq/examgate/pkg/session"
)

const sessionColumns = `id, token, candidate_name, status, created_at,
	started_at, submitted_at, answers, client_meta,
	last_presence_status, last_presence_at`

// Store implements session.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite session store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions (id, token, candidate_name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Token, sess.CandidateName, string(sess.Status), toMillis(sess.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetByToken resolves a token to its session. Returns nil, nil when unknown.
func (s *Store) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token = ?`
	return scanSession(s.db.QueryRowContext(ctx, query, token))
}

// Start transitions created -> started with a conditional update. SQLite
// serializes writers, so of two concurrent calls only one update matches and
// both read back the same row.
func (s *Store) Start(ctx context.Context, token string, now time.Time) (*session.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'started', started_at = ?
		WHERE token = ? AND status = 'created'
	`
	if _, err := s.db.ExecContext(ctx, query, toMillis(now), token); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return s.GetByToken(ctx, token)
}

// Submit transitions created/started -> submitted with a conditional update.
func (s *Store) Submit(ctx context.Context, token string, answers, clientMeta json.RawMessage, now time.Time) (*session.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'submitted', submitted_at = ?, answers = ?, client_meta = ?
		WHERE token = ? AND status IN ('created', 'started')
	`
	if _, err := s.db.ExecContext(ctx, query, toMillis(now), string(answers), string(clientMeta), token); err != nil {
		return nil, fmt.Errorf("submitting session: %w", err)
	}
	return s.GetByToken(ctx, token)
}

// RecordPresence stores the latest presence ping regardless of status.
func (s *Store) RecordPresence(ctx context.Context, token, status string, now time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET last_presence_status = ?, last_presence_at = ?
		WHERE token = ?
	`
	res, err := s.db.ExecContext(ctx, query, status, toMillis(now), token)
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
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

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
		createdAt      int64
		startedAt      sql.NullInt64
		submittedAt    sql.NullInt64
		answers        sql.NullString
		clientMeta     sql.NullString
		presenceStatus sql.NullString
		presenceAt     sql.NullInt64
	)

	err := scanner.Scan(
		&sess.ID, &sess.Token, &sess.CandidateName, &status, &createdAt,
		&startedAt, &submittedAt, &answers, &clientMeta,
		&presenceStatus, &presenceAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = session.Status(status)
	sess.CreatedAt = fromMillis(createdAt)
	if startedAt.Valid {
		t := fromMillis(startedAt.Int64)
		sess.StartedAt = &t
	}
	if submittedAt.Valid {
		t := fromMillis(submittedAt.Int64)
		sess.SubmittedAt = &t
	}
	if answers.Valid && answers.String != "" {
		sess.Answers = json.RawMessage(answers.String)
	}
	if clientMeta.Valid && clientMeta.String != "" {
		sess.ClientMeta = json.RawMessage(clientMeta.String)
	}
	if presenceStatus.Valid {
		sess.LastPresenceStatus = presenceStatus.String
	}
	if presenceAt.Valid {
		t := fromMillis(presenceAt.Int64)
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
