// Package sqlite provides an embedded exam config store backed by SQLite.
// It mirrors the postgres store's versioned-singleton layout so the rest of
// the system never branches on which backend is active.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/proctorhq/examgate/pkg/examcfg"
)

// Store persists exam window versions in SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new sqlite config store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the active configuration, or the zero AppConfig if none has
// been saved yet.
func (s *Store) Load(ctx context.Context) (examcfg.AppConfig, error) {
	var cfg examcfg.AppConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT open_at_utc, duration_seconds FROM exam_config_versions WHERE is_active = 1`,
	).Scan(&cfg.OpenAtUTC, &cfg.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return examcfg.AppConfig{}, nil
	}
	if err != nil {
		return examcfg.AppConfig{}, fmt.Errorf("loading active exam config: %w", err)
	}
	return cfg, nil
}

// Save persists a new configuration version, deactivating the previous one.
func (s *Store) Save(ctx context.Context, cfg examcfg.AppConfig, meta examcfg.SaveMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM exam_config_versions`,
	).Scan(&nextVersion)
	if err != nil {
		return fmt.Errorf("getting next version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE exam_config_versions SET is_active = 0 WHERE is_active = 1`,
	)
	if err != nil {
		return fmt.Errorf("deactivating current config: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exam_config_versions (version, open_at_utc, duration_seconds, author, is_active, created_at)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		nextVersion, cfg.OpenAtUTC, cfg.DurationSeconds, meta.Author, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting config version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing config version: %w", err)
	}
	return nil
}

// History returns recent configuration revisions, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]examcfg.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, open_at_utc, duration_seconds, author, created_at
		 FROM exam_config_versions
		 ORDER BY version DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying config history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []examcfg.Revision
	for rows.Next() {
		var r examcfg.Revision
		var createdAt int64
		if err := rows.Scan(&r.Version, &r.OpenAtUTC, &r.DurationSeconds, &r.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revisions, nil
}

// Mode returns "sqlite".
func (*Store) Mode() string {
	return "sqlite"
}

// Verify interface compliance.
var _ examcfg.Store = (*Store)(nil)
