package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datagraph/internal/blob"
	"datagraph/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestEnv(t *testing.T) *Environment {
	t.Helper()
	m := NewManager(Options{BlobDriver: blob.DriverMemory, Logger: discardLogger()})
	t.Cleanup(func() { _ = m.CloseAll() })
	env, err := m.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return env
}

func TestManagerOpenIsIdempotent(t *testing.T) {
	m := NewManager(Options{BlobDriver: blob.DriverMemory, Logger: discardLogger()})
	defer func() { _ = m.CloseAll() }()

	dir := t.TempDir()
	ctx := context.Background()
	first, err := m.Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := m.Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if first != second {
		t.Fatal("opening the same directory twice returned different environments")
	}
	if _, err := os.Stat(filepath.Join(dir, lockFileName)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if err := m.Close(dir); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, lockFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file still present after close: %v", err)
	}
}

func TestManagerRequiresEnvironment(t *testing.T) {
	m := NewManager(Options{Logger: discardLogger()})
	if _, err := m.Open(context.Background(), ""); err == nil {
		t.Fatal("Open with empty dir succeeded")
	}
}

func TestUpdateCommitsAndViewObserves(t *testing.T) {
	env := openTestEnv(t)
	ctx := context.Background()

	var id EntityID
	err := env.Update(ctx, func(tx *Transaction) error {
		e, err := tx.NewEntity("room")
		if err != nil {
			return err
		}
		id = e.EntityID()
		return e.SetProperty("name", "kitchen")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = env.View(ctx, func(tx *Transaction) error {
		e, err := tx.GetEntity(id)
		if err != nil {
			return err
		}
		if got := e.Property("name"); got != "kitchen" {
			t.Fatalf("name = %v", got)
		}
		if _, err := tx.NewEntity("room"); !errors.Is(err, ErrReadOnly) {
			t.Fatalf("NewEntity in view: %v, want ErrReadOnly", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	env := openTestEnv(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := env.Update(ctx, func(tx *Transaction) error {
		if _, err := tx.NewEntity("room"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v", err)
	}

	_ = env.View(ctx, func(tx *Transaction) error {
		if n := tx.GetAll("room").Size(); n != 0 {
			t.Fatalf("rolled-back entity visible, %d entities", n)
		}
		if len(tx.EntityTypes()) != 0 {
			t.Fatalf("rolled-back type visible: %v", tx.EntityTypes())
		}
		return nil
	})
}

func TestBlobStagingCommitAndRollback(t *testing.T) {
	env := openTestEnv(t)
	ctx := context.Background()

	var id EntityID
	if err := env.Update(ctx, func(tx *Transaction) error {
		e, err := tx.NewEntity("doc")
		if err != nil {
			return err
		}
		id = e.EntityID()
		return e.SetBlob("message", strings.NewReader("Hello World"))
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A failed transaction must leave no staged payload behind.
	boom := errors.New("boom")
	_ = env.Update(ctx, func(tx *Transaction) error {
		e, err := tx.GetEntity(id)
		if err != nil {
			return err
		}
		if err := e.SetBlob("message", strings.NewReader("rolled back")); err != nil {
			return err
		}
		return boom
	})

	keys, err := env.blobs.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("blob keys after rollback = %v, want exactly the committed payload", keys)
	}

	if err := env.View(ctx, func(tx *Transaction) error {
		e, err := tx.GetEntity(id)
		if err != nil {
			return err
		}
		rc, err := e.Blob("message")
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		payload, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if string(payload) != "Hello World" {
			t.Fatalf("payload = %q", payload)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}

	// Replacing a blob deletes the superseded payload at commit.
	if err := env.Update(ctx, func(tx *Transaction) error {
		e, err := tx.GetEntity(id)
		if err != nil {
			return err
		}
		return e.SetBlob("message", strings.NewReader("second"))
	}); err != nil {
		t.Fatalf("Update replace: %v", err)
	}
	keys, _ = env.blobs.List(ctx, "")
	if len(keys) != 1 {
		t.Fatalf("blob keys after replace = %v, want one", keys)
	}
}

func TestTransactionQuerySurface(t *testing.T) {
	env := openTestEnv(t)
	ctx := context.Background()

	var alice, bob, carol EntityID
	if err := env.Update(ctx, func(tx *Transaction) error {
		mk := func(name string, age int64) (EntityID, error) {
			e, err := tx.NewEntity("person")
			if err != nil {
				return EntityID{}, err
			}
			if err := e.SetProperty("name", name); err != nil {
				return EntityID{}, err
			}
			if err := e.SetProperty("age", age); err != nil {
				return EntityID{}, err
			}
			return e.EntityID(), nil
		}
		var err error
		if alice, err = mk("alice", 30); err != nil {
			return err
		}
		if bob, err = mk("bob", 30); err != nil {
			return err
		}
		if carol, err = mk("carol", 40); err != nil {
			return err
		}
		a, _ := tx.GetEntity(alice)
		return a.SetLink("knows", bob)
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_ = env.View(ctx, func(tx *Transaction) error {
		if n := tx.GetAll("person").Size(); n != 3 {
			t.Fatalf("GetAll = %d", n)
		}
		if n := tx.Find("person", "age", int64(30)).Size(); n != 2 {
			t.Fatalf("Find age=30 = %d", n)
		}
		// Type-sensitive: a string "30" matches nothing.
		if n := tx.Find("person", "age", "30").Size(); n != 0 {
			t.Fatalf(`Find age="30" = %d`, n)
		}
		if n := tx.FindWithProp("person", "name").Size(); n != 3 {
			t.Fatalf("FindWithProp = %d", n)
		}
		got := tx.FindStartingWith("person", "name", "b").IDs()
		if len(got) != 1 || got[0] != bob {
			t.Fatalf("FindStartingWith = %v", got)
		}
		holders := tx.FindLinks("person", bob, "knows").IDs()
		if len(holders) != 1 || holders[0] != alice {
			t.Fatalf("FindLinks = %v", holders)
		}
		if names := tx.AllLinkNames(); len(names) != 1 || names[0] != "knows" {
			t.Fatalf("AllLinkNames = %v", names)
		}
		if types := tx.EntityTypes(); len(types) != 1 || types[0] != "person" {
			t.Fatalf("EntityTypes = %v", types)
		}
		_ = carol
		return nil
	})
}

func TestEntityLinkOperations(t *testing.T) {
	env := openTestEnv(t)
	ctx := context.Background()

	if err := env.Update(ctx, func(tx *Transaction) error {
		a, err := tx.NewEntity("node")
		if err != nil {
			return err
		}
		b, err := tx.NewEntity("node")
		if err != nil {
			return err
		}
		c, err := tx.NewEntity("node")
		if err != nil {
			return err
		}

		if err := a.AddLink("next", b.EntityID()); err != nil {
			return err
		}
		if err := a.AddLink("next", c.EntityID()); err != nil {
			return err
		}
		if got := a.Links("next").Size(); got != 2 {
			t.Fatalf("links after add = %d", got)
		}

		// SetLink replaces every target under the name.
		if err := a.SetLink("next", b.EntityID()); err != nil {
			return err
		}
		if targets := a.LinkTargets("next"); len(targets) != 1 || targets[0] != b.ID() {
			t.Fatalf("links after set = %v", targets)
		}

		// DeleteLink drops the name entirely once empty.
		if err := a.DeleteLink("next", b.EntityID()); err != nil {
			return err
		}
		if names := a.LinkNames(); len(names) != 0 {
			t.Fatalf("link names after delete = %v", names)
		}
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestSetPropertyRejectsRawNestedValues(t *testing.T) {
	env := openTestEnv(t)
	err := env.Update(context.Background(), func(tx *Transaction) error {
		e, err := tx.NewEntity("doc")
		if err != nil {
			return err
		}
		return e.SetProperty("meta", domain.EmbeddedMap{"k": "v"})
	})
	if err == nil {
		t.Fatal("SetProperty accepted an unencoded nested value")
	}
}
