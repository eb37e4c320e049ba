// Package sqlite persists environment snapshots to a single SQLite
// database file inside the environment directory.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"datagraph/internal/storage"
	"datagraph/pkg/codec"
)

var _ storage.Persister = (*Store)(nil)

// DefaultFileName is the database file created inside each environment
// directory.
const DefaultFileName = "datagraph.db"

const (
	bucketMeta     = "meta"
	bucketEntities = "entities"
)

// meta carries the non-entity parts of a snapshot in its own bucket.
type meta struct {
	Version int           `cbor:"v"`
	Types   []string      `cbor:"types"`
	Seq     map[int]int64 `cbor:"seq"`
	BlobSeq int64         `cbor:"blob_seq"`
}

// Store writes full snapshots to a bucket-keyed state table after every
// successful transaction.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the snapshot database for the environment
// directory.
func Open(ctx context.Context, dir string) (*Store, error) {
	path := filepath.Join(dir, DefaultFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Load reads the last persisted snapshot. The second return is false
// when the database holds no snapshot yet.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
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
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) (retErr error) {
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
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	upsert := `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`
	if _, err := tx.ExecContext(ctx, upsert, bucketMeta, metaData); err != nil {
		retErr = fmt.Errorf("upsert meta: %w", err)
		return retErr
	}
	if _, err := tx.ExecContext(ctx, upsert, bucketEntities, entityData); err != nil {
		retErr = fmt.Errorf("upsert entities: %w", err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
		return retErr
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
