package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFileName = "datagraph.lck"

// lockFile guards an environment directory against concurrent
// processes. It records the owning pid so a crashed or wedged owner can
// be identified and displaced.
type lockFile struct {
	path string
}

// acquireLock takes the directory lock, retrying once after displacing
// a stale owner. The displacement path kills the recorded pid, removes
// the lock file and tries again; if the second attempt also fails the
// environment is reported unavailable.
func acquireLock(dir string, logger *slog.Logger) (*lockFile, error) {
	path := filepath.Join(dir, lockFileName)
	if err := tryLock(path); err == nil {
		return &lockFile{path: path}, nil
	} else if !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}

	pid, err := lockOwner(path)
	if err != nil {
		return nil, fmt.Errorf("lock %s held and owner unreadable: %w", dir, err)
	}
	logger.Error("environment lock held, displacing owner",
		slog.String("environment", dir),
		slog.Int("pid", pid))
	if pid > 0 && pid != os.Getpid() {
		if proc, err := os.FindProcess(pid); err == nil {
			// Kill fails when the owner already exited; either way the
			// lock file is stale afterwards.
			_ = proc.Kill()
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale lock %s: %w", path, err)
	}
	if err := tryLock(path); err != nil {
		return nil, fmt.Errorf("lock %s after displacing pid %d: %w", dir, pid, err)
	}
	return &lockFile{path: path}, nil
}

func tryLock(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(path)
		return werr
	}
	if cerr != nil {
		_ = os.Remove(path)
		return cerr
	}
	return nil
}

func lockOwner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed lock file %s: %w", path, err)
	}
	return pid, nil
}

func (l *lockFile) release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
