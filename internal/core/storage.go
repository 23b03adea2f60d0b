package core

import (
	"context"
	"fmt"
	"io"
	"staffcore/internal/blob"
	"staffcore/internal/infra/persistence/blobstore"
	"staffcore/internal/infra/persistence/memory"
	"staffcore/internal/infra/persistence/postgres"
	"staffcore/internal/infra/persistence/sqlite"
	"staffcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (local mode / tests)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // versioned snapshots in a blob store
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Blob        blob.Options
	Snapshots   blobstore.Config
}

// OpenPersistentStore opens the backend named by cfg.Driver, defaulting to
// sqlite. Stores holding external resources implement io.Closer; see
// CloseStore.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		store, err := blobstore.NewStore(ctx, blobs, engine, cfg.Snapshots, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStore releases resources held by store, if any.
func CloseStore(store PersistentStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ReloadStore refreshes store from its backing medium when the backend
// supports it. In-memory stores have nothing to reload.
func ReloadStore(ctx context.Context, store PersistentStore) error {
	if r, ok := store.(interface{ Reload(context.Context) error }); ok {
		return r.Reload(ctx)
	}
	return nil
}
