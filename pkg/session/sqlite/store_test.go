package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/proctorhq/examgate/pkg/session"
)

const testSchema = `
CREATE TABLE sessions (
    id TEXT PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    candidate_name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'created'
        CHECK (status IN ('created', 'started', 'submitted')),
    created_at INTEGER NOT NULL,
    started_at INTEGER,
    submitted_at INTEGER,
    answers TEXT,
    client_meta TEXT,
    last_presence_status TEXT,
    last_presence_at INTEGER
);
`

// newTestStore opens a throwaway in-memory database. The pool is pinned to a
// single connection because each new :memory: connection would otherwise see
// its own empty database.
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

func createSession(t *testing.T, store *Store, id, token string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &session.Session{
		ID:            id,
		Token:         token,
		CandidateName: "Ada",
		Status:        session.StatusCreated,
		CreatedAt:     createdAt,
	}))
}

func TestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	created := time.UnixMilli(1_700_000_000_000).UTC()
	createSession(t, store, "s1", "tok1", created)

	sess, err := store.GetByToken(context.Background(), "tok1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, "Ada", sess.CandidateName)
	assert.Equal(t, session.StatusCreated, sess.Status)
	assert.Equal(t, created, sess.CreatedAt)
	assert.Nil(t, sess.StartedAt)
	assert.Nil(t, sess.Answers)
}

func TestGetByToken_Unknown(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.GetByToken(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStart_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createSession(t, store, "s1", "tok1", time.Now().UTC())

	first := time.UnixMilli(1_000_000).UTC()
	sess, err := store.Start(ctx, "tok1", first)
	require.NoError(t, err)
	assert.Equal(t, session.StatusStarted, sess.Status)
	require.NotNil(t, sess.StartedAt)
	assert.Equal(t, first, *sess.StartedAt)

	sess, err = store.Start(ctx, "tok1", first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, *sess.StartedAt)
}

func TestStart_UnknownToken(t *testing.T) {
	store := newTestStore(t)
	sess, err := store.Start(context.Background(), "ghost", time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSubmit_FirstWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createSession(t, store, "s1", "tok1", time.Now().UTC())

	first := time.UnixMilli(2_000_000).UTC()
	sess, err := store.Submit(ctx, "tok1", json.RawMessage(`["Paris"]`), json.RawMessage(`{"tab":1}`), first)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSubmitted, sess.Status)
	assert.JSONEq(t, `["Paris"]`, string(sess.Answers))
	require.NotNil(t, sess.SubmittedAt)
	assert.Equal(t, first, *sess.SubmittedAt)

	sess, err = store.Submit(ctx, "tok1", json.RawMessage(`["London"]`), json.RawMessage(`{"tab":2}`), first.Add(time.Hour))
	require.NoError(t, err)
	assert.JSONEq(t, `["Paris"]`, string(sess.Answers))
	assert.JSONEq(t, `{"tab":1}`, string(sess.ClientMeta))
	assert.Equal(t, first, *sess.SubmittedAt)
}

func TestPresence_AfterSubmission(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createSession(t, store, "s1", "tok1", time.Now().UTC())

	_, err := store.Submit(ctx, "tok1", json.RawMessage(`[]`), json.RawMessage(`null`), time.Now().UTC())
	require.NoError(t, err)

	at := time.UnixMilli(3_000_000).UTC()
	found, err := store.RecordPresence(ctx, "tok1", "hidden", at)
	require.NoError(t, err)
	assert.True(t, found)

	sess, err := store.GetByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "hidden", sess.LastPresenceStatus)
	assert.Equal(t, at, *sess.LastPresenceAt)
	assert.Equal(t, session.StatusSubmitted, sess.Status)
}

func TestPresence_UnknownToken(t *testing.T) {
	store := newTestStore(t)
	found, err := store.RecordPresence(context.Background(), "ghost", "active", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestList_OrderAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.UnixMilli(1_000).UTC()
	createSession(t, store, "s1", "tok1", base)
	createSession(t, store, "s2", "tok2", base.Add(time.Second))
	createSession(t, store, "s3", "tok3", base.Add(2*time.Second))

	_, err := store.Start(ctx, "tok2", base.Add(time.Minute))
	require.NoError(t, err)

	all, err := store.List(ctx, session.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].ID)
	assert.Equal(t, "s3", all[2].ID)

	started, err := store.List(ctx, session.Filter{Status: session.StatusStarted})
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, "s2", started[0].ID)
}

func TestTokenUniqueness_Enforced(t *testing.T) {
	store := newTestStore(t)
	createSession(t, store, "s1", "tok1", time.Now().UTC())

	err := store.Create(context.Background(), &session.Session{
		ID: "s2", Token: "tok1", CandidateName: "Grace",
		Status: session.StatusCreated, CreatedAt: time.Now().UTC(),
	})
	assert.Error(t, err)
}
