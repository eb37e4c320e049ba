package storage

import (
	"reflect"
	"testing"
	"time"

	"datagraph/pkg/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := newState()
	typeID := s.typeID("place")
	id := EntityID{TypeID: typeID, LocalID: s.nextLocalID(typeID)}
	rec := newStoredEntity(id, "place")
	rec.Props["name"] = "manila"
	rec.Props["population"] = int64(1780000)
	rec.Props["area"] = 42.88
	rec.Props["capital"] = true
	rec.Props["founded"] = time.Date(1571, 6, 24, 0, 0, 0, 0, time.UTC)
	rec.Props["location"] = domain.GeoPoint{Longitude: 120.9842, Latitude: 14.5995}
	rec.Props["opens"] = domain.MustLocalTime(8, 0, 0)
	rec.Props["hours"] = domain.LocalTimeRange{Lower: domain.MustLocalTime(8, 0, 0), Upper: domain.MustLocalTime(17, 0, 0)}
	rec.Props["meta"] = domain.EncodedValue{Data: []byte{0x01, 0x02}}
	rec.Links["partof"] = []EntityID{{TypeID: typeID, LocalID: 99}}
	rec.Blobs["seal"] = "0-1/seal.1"
	s.entities[id] = rec
	s.blobSeq = 7

	snap, err := snapshotFromState(s)
	if err != nil {
		t.Fatalf("snapshotFromState: %v", err)
	}
	restored, err := stateFromSnapshot(snap)
	if err != nil {
		t.Fatalf("stateFromSnapshot: %v", err)
	}

	if restored.blobSeq != 7 {
		t.Fatalf("blobSeq = %d", restored.blobSeq)
	}
	if !reflect.DeepEqual(restored.typeNames, s.typeNames) {
		t.Fatalf("typeNames = %v", restored.typeNames)
	}
	got, ok := restored.entities[id]
	if !ok {
		t.Fatal("entity missing after round trip")
	}
	if !reflect.DeepEqual(got.Props, rec.Props) {
		t.Fatalf("props mismatch:\n got  %#v\n want %#v", got.Props, rec.Props)
	}
	if !reflect.DeepEqual(got.Links, rec.Links) {
		t.Fatalf("links mismatch: %#v", got.Links)
	}
	if !reflect.DeepEqual(got.Blobs, rec.Blobs) {
		t.Fatalf("blobs mismatch: %#v", got.Blobs)
	}
	if restored.seq[typeID] != s.seq[typeID] {
		t.Fatalf("seq = %d, want %d", restored.seq[typeID], s.seq[typeID])
	}
}

func TestSnapshotRejectsUnsupportedValue(t *testing.T) {
	s := newState()
	typeID := s.typeID("x")
	id := EntityID{TypeID: typeID, LocalID: s.nextLocalID(typeID)}
	rec := newStoredEntity(id, "x")
	rec.Props["bad"] = struct{}{}
	s.entities[id] = rec
	if _, err := snapshotFromState(s); err == nil {
		t.Fatal("snapshot accepted an unsupported value type")
	}
}

func TestStateFromSnapshotRejectsUnknownVersion(t *testing.T) {
	if _, err := stateFromSnapshot(&Snapshot{Version: 99}); err == nil {
		t.Fatal("expected version error")
	}
}
