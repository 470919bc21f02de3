package store

import (
	"cmp"
	"context"
	"fmt"

	"mercator-hq/backstop/pkg/backup"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is one of "memory", "sqlite" or "s3".
	Backend string

	// SQLite configures the SQLite backend.
	SQLite *SQLiteConfig

	// S3 configures the S3 backend.
	S3 *S3Config
}

// New creates the store selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (backup.Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		st, err := NewSQLiteStore(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendS3:
		if cfg.S3 == nil {
			return nil, fmt.Errorf("s3 store requires configuration")
		}
		st, err := NewS3Store(ctx, *cfg.S3)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func compareStatuses(a, b backup.Status) int {
	return cmp.Or(
		cmp.Compare(a.ID.PartitionID, b.ID.PartitionID),
		cmp.Compare(a.ID.CheckpointID, b.ID.CheckpointID),
		cmp.Compare(a.ID.NodeID, b.ID.NodeID),
	)
}
