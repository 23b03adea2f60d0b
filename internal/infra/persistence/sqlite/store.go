// Package sqlite provides a SQLite-backed persistent store. Transactions run
// against the in-memory store; each commit writes one JSON payload per bucket
// before the new state becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"staffcore/internal/infra/persistence/memory"
	"staffcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "staffcore.db"

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// A single-row state_version table counts commits; flushes only succeed when
// the stored version still matches the one this process last saw.
type Store struct {
	*memory.Store
	db      *sql.DB
	path    string
	version int64
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// busy_timeout is per connection
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS state_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`,
		`INSERT INTO state_version(id, version) VALUES (1, 0) ON CONFLICT(id) DO NOTHING`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("prepare schema: %w", err)
		}
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(engine, append(opts, memory.WithFlush(s.persist), memory.WithSync(s.changedSince))...)
	snapshot, found, err := s.read(context.Background(), true)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if found {
		s.ImportState(snapshot)
	}
	return s, nil
}

func (s *Store) changedSince(ctx context.Context) (memory.Snapshot, bool, error) {
	return s.read(ctx, false)
}

// read loads the buckets and version in one transaction. Unless force is set
// the buckets are only read when the version moved.
func (s *Store) read(ctx context.Context, force bool) (snapshot memory.Snapshot, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return snapshot, false, fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM state_version WHERE id = 1`).Scan(&version); err != nil {
		return snapshot, false, fmt.Errorf("select version: %w", err)
	}
	if !force && version == s.version {
		return snapshot, false, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return snapshot, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	targets := snapshot.BucketTargets()
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snapshot, false, fmt.Errorf("scan: %w", err)
		}
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return snapshot, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return snapshot, false, fmt.Errorf("iterate state: %w", err)
	}
	changed := version != s.version
	s.version = version
	return snapshot, found || changed, nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `UPDATE state_version SET version = version + 1 WHERE id = 1 AND version = ?`, s.version)
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if n == 0 {
		return domain.ErrStaleState
	}
	values := snapshot.BucketValues()
	for _, bucket := range memory.Buckets {
		data, err := json.Marshal(values[bucket])
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.version++
	return nil
}

// Reload picks up commits made by other processes sharing the file. It is a
// no-op when the stored version has not moved.
func (s *Store) Reload(ctx context.Context) error { return s.Sync(ctx) }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
