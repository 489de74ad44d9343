// Package store persists user settings and scan snapshots for the UI to read.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

var ErrNotFound = errors.New("not found")

type SettingsStore interface {
	// GetSettings returns the stored settings, or the defaults when nothing
	// was saved yet.
	GetSettings(ctx context.Context) (types.Settings, error)
	PutSettings(ctx context.Context, s types.Settings) error
}

type SnapshotStore interface {
	// PutSnapshot inserts or replaces the snapshot with the same ID.
	PutSnapshot(ctx context.Context, snap types.Snapshot) error
	LatestSnapshot(ctx context.Context) (types.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (types.Snapshot, error)
}

type Store interface {
	SettingsStore
	SnapshotStore
	Close() error
}

// Pruner is implemented by stores that can drop old snapshots.
type Pruner interface {
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}
