package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"datagraph/internal/blob"
)

// Environment is one isolated entity store rooted at a directory.
// Transactions against different environments are independent; there is
// no cross-environment atomicity.
type Environment struct {
	dir       string
	blobs     blob.Store
	persister Persister
	logger    *slog.Logger
	lock      *lockFile

	mu    sync.Mutex
	state *state
}

// Dir returns the directory path identifying the environment.
func (e *Environment) Dir() string { return e.dir }

// BlobDriver reports which blob backend the environment writes to.
func (e *Environment) BlobDriver() blob.Driver { return e.blobs.Driver() }

// Update runs fn in a writable transaction. fn operates on a deep clone
// of the committed state; on success the clone is persisted and swapped
// in, then payloads superseded during the transaction are deleted. On
// error the state clone is discarded and payloads staged during the
// transaction are deleted, leaving the store untouched.
func (e *Environment) Update(ctx context.Context, fn func(tx *Transaction) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &Transaction{env: e, ctx: ctx, state: e.state.clone()}
	if err := fn(tx); err != nil {
		e.deleteKeys(ctx, tx.staged)
		return err
	}
	if e.persister != nil {
		snap, err := snapshotFromState(tx.state)
		if err != nil {
			e.deleteKeys(ctx, tx.staged)
			return fmt.Errorf("snapshot %s: %w", e.dir, err)
		}
		if err := e.persister.Save(ctx, snap); err != nil {
			e.deleteKeys(ctx, tx.staged)
			return fmt.Errorf("persist %s: %w", e.dir, err)
		}
	}
	e.state = tx.state
	e.deleteKeys(ctx, tx.obsolete)
	return nil
}

// View runs fn in a read-only transaction against the committed state.
func (e *Environment) View(ctx context.Context, fn func(tx *Transaction) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &Transaction{env: e, ctx: ctx, state: e.state, readOnly: true}
	return fn(tx)
}

// deleteKeys removes payloads best-effort. A failed delete leaks a
// payload but never corrupts entity state, so it is logged and ignored.
func (e *Environment) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := e.blobs.Delete(ctx, key); err != nil {
			e.logger.Warn("blob cleanup failed",
				slog.String("environment", e.dir),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

func (e *Environment) close() error {
	var firstErr error
	if e.persister != nil {
		if err := e.persister.Close(); err != nil {
			firstErr = err
		}
	}
	if e.lock != nil {
		if err := e.lock.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
