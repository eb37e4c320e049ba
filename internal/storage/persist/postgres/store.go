// Package postgres persists environment snapshots to a shared Postgres
// database. All environments of one process may share a DSN; rows are
// keyed by environment directory so stores stay isolated.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"datagraph/internal/storage"
	"datagraph/pkg/codec"
)

var _ storage.Persister = (*Store)(nil)

const (
	bucketMeta     = "meta"
	bucketEntities = "entities"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

type meta struct {
	Version int           `cbor:"v"`
	Types   []string      `cbor:"types"`
	Seq     map[int]int64 `cbor:"seq"`
	BlobSeq int64         `cbor:"blob_seq"`
}

// Store writes full snapshots to a bucket-keyed state table after every
// successful transaction.
type Store struct {
	db  *sql.DB
	env string
}

// Open connects to the DSN, ensures the state table exists and scopes
// all rows to the environment key.
func Open(ctx context.Context, dsn, env string) (*Store, error) {
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS datagraph_state (
		env TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload BYTEA NOT NULL,
		PRIMARY KEY (env, bucket)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	return &Store{db: db, env: env}, nil
}

// Load reads the last persisted snapshot for the environment. The
// second return is false when no snapshot exists yet.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM datagraph_state WHERE env = $1`, s.env)
	if err != nil {
		return nil, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		snap  storage.Snapshot
		found bool
	)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, false, fmt.Errorf("scan state: %w", err)
		}
		switch bucket {
		case bucketMeta:
			var m meta
			if err := codec.Unmarshal(payload, &m); err != nil {
				return nil, false, fmt.Errorf("decode meta: %w", err)
			}
			snap.Version = m.Version
			snap.Types = m.Types
			snap.Seq = m.Seq
			snap.BlobSeq = m.BlobSeq
			found = true
		case bucketEntities:
			if err := codec.Unmarshal(payload, &snap.Entities); err != nil {
				return nil, false, fmt.Errorf("decode entities: %w", err)
			}
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate state: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &snap, true, nil
}

// Save writes the snapshot, replacing the previous one atomically.
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	metaData, err := codec.Marshal(meta{
		Version: snap.Version,
		Types:   snap.Types,
		Seq:     snap.Seq,
		BlobSeq: snap.BlobSeq,
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	entityData, err := codec.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	upsert := `INSERT INTO datagraph_state(env,bucket,payload) VALUES($1,$2,$3)
		ON CONFLICT(env,bucket) DO UPDATE SET payload=EXCLUDED.payload`
	if _, err := tx.ExecContext(ctx, upsert, s.env, bucketMeta, metaData); err != nil {
		return fmt.Errorf("upsert meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, s.env, bucketEntities, entityData); err != nil {
		return fmt.Errorf("upsert entities: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
