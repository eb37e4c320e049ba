package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"datagraph/internal/blob"
	"datagraph/pkg/codec"
	"datagraph/pkg/domain"
)

// PersisterOpener constructs the snapshot persister for one environment
// directory. A nil opener leaves the environment purely in-memory.
type PersisterOpener func(ctx context.Context, dir string) (Persister, error)

// Options configure how environments are opened.
type Options struct {
	BlobDriver    blob.Driver
	S3            blob.S3Config
	OpenPersister PersisterOpener
	Logger        *slog.Logger
}

// Manager owns the set of open environments, keyed by directory path.
// Opening the same directory twice returns the same environment.
type Manager struct {
	opts Options

	mu   sync.Mutex
	envs map[string]*Environment
}

// NewManager builds a manager from the options. A nil logger discards
// log output.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{opts: opts, envs: make(map[string]*Environment)}
}

// Open returns the environment rooted at dir, creating it on first use.
// The directory is locked against other processes, the blob store is
// attached and the last persisted snapshot, if any, is recovered.
func (m *Manager) Open(ctx context.Context, dir string) (*Environment, error) {
	if dir == "" {
		return nil, &domain.InvalidRequestError{Reason: "environment required"}
	}
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := m.envs[dir]; ok {
		return env, nil
	}

	codec.Register()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &domain.StoreUnavailableError{Environment: dir, Err: err}
	}
	lock, err := acquireLock(dir, m.opts.Logger)
	if err != nil {
		return nil, &domain.StoreUnavailableError{Environment: dir, Err: err}
	}

	env, err := m.build(ctx, dir, lock)
	if err != nil {
		_ = lock.release()
		return nil, &domain.StoreUnavailableError{Environment: dir, Err: err}
	}
	m.envs[dir] = env
	m.opts.Logger.Info("environment opened",
		slog.String("environment", dir),
		slog.String("blob_driver", string(env.BlobDriver())),
		slog.Bool("persistent", env.persister != nil))
	return env, nil
}

func (m *Manager) build(ctx context.Context, dir string, lock *lockFile) (*Environment, error) {
	blobs, err := blob.Open(ctx, m.opts.BlobDriver, dir, m.opts.S3)
	if err != nil {
		return nil, err
	}
	env := &Environment{
		dir:    dir,
		blobs:  blobs,
		logger: m.opts.Logger,
		lock:   lock,
		state:  newState(),
	}
	if m.opts.OpenPersister == nil {
		return env, nil
	}
	persister, err := m.opts.OpenPersister(ctx, dir)
	if err != nil {
		return nil, err
	}
	snap, found, err := persister.Load(ctx)
	if err != nil {
		_ = persister.Close()
		return nil, fmt.Errorf("recover snapshot: %w", err)
	}
	if found {
		st, err := stateFromSnapshot(snap)
		if err != nil {
			_ = persister.Close()
			return nil, fmt.Errorf("recover snapshot: %w", err)
		}
		env.state = st
	}
	env.persister = persister
	return env, nil
}

// Close shuts down the environment at dir, releasing its lock.
func (m *Manager) Close(dir string) error {
	dir = filepath.Clean(dir)
	m.mu.Lock()
	env, ok := m.envs[dir]
	delete(m.envs, dir)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return env.close()
}

// CloseAll shuts down every open environment, returning the first
// error encountered.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	envs := m.envs
	m.envs = make(map[string]*Environment)
	m.mu.Unlock()

	var firstErr error
	for _, env := range envs {
		if err := env.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
