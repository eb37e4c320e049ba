package sqlite

import (
	"context"
	"reflect"
	"testing"

	"datagraph/internal/storage"
)

func TestLoadOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("empty database reported a snapshot")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	snap := &storage.Snapshot{
		Version: 1,
		Types:   []string{"person", "place"},
		Seq:     map[int]int64{0: 2, 1: 1},
		BlobSeq: 5,
		Entities: []storage.SnapshotEntity{
			{
				ID:    "0-1",
				Type:  "person",
				Props: map[string]storage.SnapshotValue{"name": {Kind: "string", Str: "alice"}},
				Links: map[string][]string{"knows": {"0-2"}},
				Blobs: map[string]string{"avatar": "0-1/avatar.3"},
			},
			{
				ID:    "0-2",
				Type:  "person",
				Props: map[string]storage.SnapshotValue{"age": {Kind: "int", Int: 30}},
			},
		},
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A second save replaces the first.
	snap.BlobSeq = 6
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen to prove the snapshot survives the process.
	store, err = Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()
	loaded, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("snapshot not found after reopen")
	}
	if loaded.BlobSeq != 6 {
		t.Fatalf("BlobSeq = %d, want 6", loaded.BlobSeq)
	}
	if !reflect.DeepEqual(loaded.Types, snap.Types) {
		t.Fatalf("Types = %v", loaded.Types)
	}
	if !reflect.DeepEqual(loaded.Entities, snap.Entities) {
		t.Fatalf("Entities mismatch:\n got  %#v\n want %#v", loaded.Entities, snap.Entities)
	}
}
