package examcfg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr bool
	}{
		{"zero values are valid", AppConfig{}, false},
		{"typical window", AppConfig{OpenAtUTC: 1_700_000_000_000, DurationSeconds: 3600}, false},
		{"negative open time", AppConfig{OpenAtUTC: -1, DurationSeconds: 3600}, true},
		{"negative duration", AppConfig{OpenAtUTC: 1000, DurationSeconds: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppConfig_EndAtUTC(t *testing.T) {
	cfg := AppConfig{OpenAtUTC: 10_000, DurationSeconds: 60}
	assert.Equal(t, int64(70_000), cfg.EndAtUTC())
}

func TestAppConfig_SnapshotAt(t *testing.T) {
	now := time.UnixMilli(123_456).UTC()
	snap := AppConfig{OpenAtUTC: 10_000, DurationSeconds: 60}.SnapshotAt(now)
	assert.Equal(t, int64(123_456), snap.ServerNow)
	assert.Equal(t, int64(10_000), snap.OpenAtUTC)
}

func TestMemoryStore_FirstBootIsZero(t *testing.T) {
	store := NewMemoryStore()
	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AppConfig{}, cfg)
}

func TestMemoryStore_SaveReplacesFully(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, AppConfig{OpenAtUTC: 1000, DurationSeconds: 60}, SaveMeta{Author: "admin"}))
	require.NoError(t, store.Save(ctx, AppConfig{OpenAtUTC: 2000, DurationSeconds: 0}, SaveMeta{Author: "admin"}))

	cfg, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, AppConfig{OpenAtUTC: 2000, DurationSeconds: 0}, cfg)
}

func TestMemoryStore_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, store.Save(ctx, AppConfig{OpenAtUTC: i * 1000}, SaveMeta{Author: "admin"}))
	}

	revisions, err := store.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, 3, revisions[0].Version)
	assert.Equal(t, int64(3000), revisions[0].OpenAtUTC)
	assert.Equal(t, 2, revisions[1].Version)
}

func TestMemoryStore_HistoryStampsInjectedClock(t *testing.T) {
	ctx := context.Background()
	tick := int64(0)
	store := NewMemoryStoreWithClock(func() time.Time {
		tick += 1_000
		return time.UnixMilli(tick)
	})

	require.NoError(t, store.Save(ctx, AppConfig{OpenAtUTC: 1000}, SaveMeta{Author: "admin"}))
	require.NoError(t, store.Save(ctx, AppConfig{OpenAtUTC: 2000}, SaveMeta{Author: "admin"}))

	revisions, err := store.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, time.UnixMilli(2_000).UTC(), revisions[0].CreatedAt)
	assert.Equal(t, time.UnixMilli(1_000).UTC(), revisions[1].CreatedAt)
}

func TestMemoryStore_Mode(t *testing.T) {
	assert.Equal(t, "memory", NewMemoryStore().Mode())
}
