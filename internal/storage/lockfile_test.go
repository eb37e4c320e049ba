package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	dir := t.TempDir()
	lock, err := acquireLock(dir, discardLogger())
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	pid, err := lockOwner(filepath.Join(dir, lockFileName))
	if err != nil {
		t.Fatalf("lockOwner: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("lock owner = %d, want %d", pid, os.Getpid())
	}
	if err := lock.release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Releasing twice is harmless.
	if err := lock.release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestAcquireDisplacesStaleOwner(t *testing.T) {
	dir := t.TempDir()
	// A lock held by a long-dead pid is displaced and acquisition
	// retried once.
	stale := filepath.Join(dir, lockFileName)
	if err := os.WriteFile(stale, []byte("999999999\n"), 0o600); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}
	lock, err := acquireLock(dir, discardLogger())
	if err != nil {
		t.Fatalf("acquireLock after stale owner: %v", err)
	}
	defer func() { _ = lock.release() }()

	pid, err := lockOwner(stale)
	if err != nil {
		t.Fatalf("lockOwner: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("lock owner after displacement = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireFailsOnUnreadableOwner(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, lockFileName), []byte("not-a-pid"), 0o600); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	if _, err := acquireLock(dir, discardLogger()); err == nil {
		t.Fatal("acquireLock succeeded with malformed lock file")
	}
}
