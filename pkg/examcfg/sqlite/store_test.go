package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/proctorhq/examgate/pkg/examcfg"
)

const testSchema = `
CREATE TABLE exam_config_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    version INTEGER NOT NULL UNIQUE,
    open_at_utc INTEGER NOT NULL DEFAULT 0,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    author TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT 0
);
`

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return New(db)
}

func TestLoad_FirstBoot(t *testing.T) {
	store := newTestStore(t)

	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, examcfg.AppConfig{}, cfg)
}

func TestSaveThenLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := examcfg.AppConfig{OpenAtUTC: 1_700_000_000_000, DurationSeconds: 3600}
	require.NoError(t, store.Save(ctx, want, examcfg.SaveMeta{Author: "admin"}))

	cfg, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, cfg)
}

func TestSave_ReplacesActiveVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, examcfg.AppConfig{OpenAtUTC: 1000, DurationSeconds: 60}, examcfg.SaveMeta{}))
	require.NoError(t, store.Save(ctx, examcfg.AppConfig{OpenAtUTC: 0, DurationSeconds: 0}, examcfg.SaveMeta{}))

	cfg, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, examcfg.AppConfig{}, cfg)

	history, err := store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.Equal(t, int64(0), history[0].OpenAtUTC)
	assert.Equal(t, 1, history[1].Version)
	assert.Equal(t, int64(1000), history[1].OpenAtUTC)
}

func TestMode(t *testing.T) {
	assert.Equal(t, "sqlite", newTestStore(t).Mode())
}
