package storage

import (
	"context"
	"fmt"
	"time"

	"datagraph/pkg/domain"
)

// snapshotVersion tags the snapshot layout for forward-compatible
// evolution of the persisted form.
const snapshotVersion = 1

// Snapshot is the serializable form of an environment's committed state.
// Persisters store it whole after every successful transaction.
type Snapshot struct {
	Version  int              `cbor:"v"`
	Types    []string         `cbor:"types"`
	Seq      map[int]int64    `cbor:"seq"`
	BlobSeq  int64            `cbor:"blob_seq"`
	Entities []SnapshotEntity `cbor:"entities"`
}

// SnapshotEntity is one entity record in serializable form.
type SnapshotEntity struct {
	ID    string                   `cbor:"id"`
	Type  string                   `cbor:"type"`
	Props map[string]SnapshotValue `cbor:"props,omitempty"`
	Links map[string][]string      `cbor:"links,omitempty"`
	Blobs map[string]string        `cbor:"blobs,omitempty"`
}

// SnapshotValue is the explicit tagged encoding of one property value.
type SnapshotValue struct {
	Kind      string                 `cbor:"kind"`
	Str       string                 `cbor:"str,omitempty"`
	Int       int64                  `cbor:"int,omitempty"`
	Float     float64                `cbor:"float,omitempty"`
	Bool      bool                   `cbor:"bool,omitempty"`
	Time      *time.Time             `cbor:"time,omitempty"`
	Geo       *domain.GeoPoint       `cbor:"geo,omitempty"`
	LocalTime *domain.LocalTime      `cbor:"local_time,omitempty"`
	TimeRange *domain.LocalTimeRange `cbor:"time_range,omitempty"`
	Raw       []byte                 `cbor:"raw,omitempty"`
}

// Persister stores and recovers environment snapshots.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, bool, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}

func snapshotValue(v any) (SnapshotValue, error) {
	switch vv := v.(type) {
	case string:
		return SnapshotValue{Kind: "string", Str: vv}, nil
	case int64:
		return SnapshotValue{Kind: "int", Int: vv}, nil
	case float64:
		return SnapshotValue{Kind: "float", Float: vv}, nil
	case bool:
		return SnapshotValue{Kind: "bool", Bool: vv}, nil
	case time.Time:
		return SnapshotValue{Kind: "time", Time: &vv}, nil
	case domain.GeoPoint:
		return SnapshotValue{Kind: "geo", Geo: &vv}, nil
	case domain.LocalTime:
		return SnapshotValue{Kind: "local_time", LocalTime: &vv}, nil
	case domain.LocalTimeRange:
		return SnapshotValue{Kind: "time_range", TimeRange: &vv}, nil
	case domain.EncodedValue:
		return SnapshotValue{Kind: "encoded", Raw: vv.Data}, nil
	default:
		return SnapshotValue{}, fmt.Errorf("snapshot: unsupported value type %T", v)
	}
}

func (sv SnapshotValue) value() (any, error) {
	switch sv.Kind {
	case "string":
		return sv.Str, nil
	case "int":
		return sv.Int, nil
	case "float":
		return sv.Float, nil
	case "bool":
		return sv.Bool, nil
	case "time":
		if sv.Time == nil {
			return nil, fmt.Errorf("snapshot: time value missing payload")
		}
		return *sv.Time, nil
	case "geo":
		if sv.Geo == nil {
			return nil, fmt.Errorf("snapshot: geo value missing payload")
		}
		return *sv.Geo, nil
	case "local_time":
		if sv.LocalTime == nil {
			return nil, fmt.Errorf("snapshot: local_time value missing payload")
		}
		return *sv.LocalTime, nil
	case "time_range":
		if sv.TimeRange == nil {
			return nil, fmt.Errorf("snapshot: time_range value missing payload")
		}
		return *sv.TimeRange, nil
	case "encoded":
		return domain.EncodedValue{Data: sv.Raw}, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown value kind %q", sv.Kind)
	}
}

func snapshotFromState(s *state) (*Snapshot, error) {
	snap := &Snapshot{
		Version: snapshotVersion,
		Types:   append([]string(nil), s.typeNames...),
		Seq:     make(map[int]int64, len(s.seq)),
		BlobSeq: s.blobSeq,
	}
	for typeID, n := range s.seq {
		snap.Seq[typeID] = n
	}
	for _, id := range allIDsSorted(s) {
		rec := s.entities[id]
		se := SnapshotEntity{
			ID:    rec.ID.String(),
			Type:  rec.Type,
			Props: make(map[string]SnapshotValue, len(rec.Props)),
			Links: make(map[string][]string, len(rec.Links)),
			Blobs: make(map[string]string, len(rec.Blobs)),
		}
		for name, v := range rec.Props {
			sv, err := snapshotValue(v)
			if err != nil {
				return nil, fmt.Errorf("entity %s property %q: %w", rec.ID, name, err)
			}
			se.Props[name] = sv
		}
		for name, targets := range rec.Links {
			out := make([]string, 0, len(targets))
			for _, t := range targets {
				out = append(out, t.String())
			}
			se.Links[name] = out
		}
		for name, key := range rec.Blobs {
			se.Blobs[name] = key
		}
		snap.Entities = append(snap.Entities, se)
	}
	return snap, nil
}

func stateFromSnapshot(snap *Snapshot) (*state, error) {
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d", snap.Version)
	}
	s := newState()
	s.typeNames = append([]string(nil), snap.Types...)
	for i, name := range s.typeNames {
		s.typeIDs[name] = i
	}
	for typeID, n := range snap.Seq {
		s.seq[typeID] = n
	}
	s.blobSeq = snap.BlobSeq
	for _, se := range snap.Entities {
		id, err := ParseEntityID(se.ID)
		if err != nil {
			return nil, err
		}
		rec := newStoredEntity(id, se.Type)
		for name, sv := range se.Props {
			v, err := sv.value()
			if err != nil {
				return nil, fmt.Errorf("entity %s property %q: %w", se.ID, name, err)
			}
			rec.Props[name] = v
		}
		for name, targets := range se.Links {
			for _, t := range targets {
				tid, err := ParseEntityID(t)
				if err != nil {
					return nil, err
				}
				rec.Links[name] = append(rec.Links[name], tid)
			}
		}
		for name, key := range se.Blobs {
			rec.Blobs[name] = key
		}
		s.entities[id] = rec
	}
	return s, nil
}

func allIDsSorted(s *state) []EntityID {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}
