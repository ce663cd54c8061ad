// Package examcfg provides storage for the global exam window configuration.
// The configuration is a singleton record (open time plus duration) that every
// gated request reads fresh; admin updates replace it as a new version so the
// history of window changes stays auditable.
package examcfg

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidConfig is returned when an update carries negative values.
var ErrInvalidConfig = errors.New("openAtUtc and durationSeconds must be non-negative")

// ErrReadOnly is returned when a write is attempted on a read-only store.
var ErrReadOnly = errors.New("exam config store is read-only")

// AppConfig is the global exam window. OpenAtUTC is epoch milliseconds;
// zero means the exam is always open (no gating).
type AppConfig struct {
	OpenAtUTC       int64 `json:"openAtUtc"`
	DurationSeconds int64 `json:"durationSeconds"`
}

// EndAtUTC returns the close time in epoch milliseconds.
func (c AppConfig) EndAtUTC() int64 {
	return c.OpenAtUTC + c.DurationSeconds*1000
}

// Validate checks that both window values are non-negative.
func (c AppConfig) Validate() error {
	if c.OpenAtUTC < 0 || c.DurationSeconds < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Snapshot couples a config read with the server's notion of "now".
// A single Snapshot carries one consistent timestamp so callers in the
// same request window do not observe diverging clocks.
type Snapshot struct {
	AppConfig
	ServerNow int64 `json:"serverNow"`
}

// SnapshotAt builds a Snapshot for the given wall-clock time.
func (c AppConfig) SnapshotAt(now time.Time) Snapshot {
	return Snapshot{AppConfig: c, ServerNow: now.UnixMilli()}
}

// SaveMeta holds metadata for a config save operation.
type SaveMeta struct {
	Author string
}

// Revision describes a historical configuration version.
type Revision struct {
	Version         int       `json:"version"`
	OpenAtUTC       int64     `json:"openAtUtc"`
	DurationSeconds int64     `json:"durationSeconds"`
	Author          string    `json:"author"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store provides exam window storage and retrieval.
type Store interface {
	// Load returns the active configuration. The zero AppConfig is returned
	// when no config has been saved yet (first boot).
	Load(ctx context.Context) (AppConfig, error)

	// Save persists a new configuration version, fully replacing the prior
	// values, and deactivates the previous version.
	Save(ctx context.Context, cfg AppConfig, meta SaveMeta) error

	// History returns recent configuration revisions, newest first.
	History(ctx context.Context, limit int) ([]Revision, error)

	// Mode returns the store mode, e.g. "memory", "postgres" or "sqlite".
	Mode() string
}
