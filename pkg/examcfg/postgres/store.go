// Package postgres provides a PostgreSQL-backed exam config store with versioning.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/proctorhq/examgate/pkg/examcfg"
)

// Store persists exam window versions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new postgres config store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the active configuration, or the zero AppConfig if none has
// been saved yet (first boot).
func (s *Store) Load(ctx context.Context) (examcfg.AppConfig, error) {
	var cfg examcfg.AppConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT open_at_utc, duration_seconds FROM exam_config_versions WHERE is_active = TRUE`,
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
// The whole operation runs in a transaction so a gate check never observes a
// window with no active version.
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
		`UPDATE exam_config_versions SET is_active = FALSE WHERE is_active = TRUE`,
	)
	if err != nil {
		return fmt.Errorf("deactivating current config: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exam_config_versions (version, open_at_utc, duration_seconds, author, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)`,
		nextVersion, cfg.OpenAtUTC, cfg.DurationSeconds, meta.Author,
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
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying config history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []examcfg.Revision
	for rows.Next() {
		var r examcfg.Revision
		if err := rows.Scan(&r.Version, &r.OpenAtUTC, &r.DurationSeconds, &r.Author, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revisions, nil
}

// Mode returns "postgres".
func (*Store) Mode() string {
	return "postgres"
}

// Verify interface compliance.
var _ examcfg.Store = (*Store)(nil)
