package storage

import (
	"maps"
	"slices"
)

// storedEntity is the persistent record of one entity. Props hold flat
// scalar values (nested values arrive pre-encoded); Links hold ordered
// target lists per link name; Blobs map blob names to payload-store keys.
type storedEntity struct {
	ID    EntityID
	Type  string
	Props map[string]any
	Links map[string][]EntityID
	Blobs map[string]string
}

func newStoredEntity(id EntityID, entityType string) *storedEntity {
	return &storedEntity{
		ID:    id,
		Type:  entityType,
		Props: make(map[string]any),
		Links: make(map[string][]EntityID),
		Blobs: make(map[string]string),
	}
}

func (e *storedEntity) clone() *storedEntity {
	cp := &storedEntity{
		ID:    e.ID,
		Type:  e.Type,
		Props: maps.Clone(e.Props),
		Links: make(map[string][]EntityID, len(e.Links)),
		Blobs: maps.Clone(e.Blobs),
	}
	for name, targets := range e.Links {
		cp.Links[name] = slices.Clone(targets)
	}
	return cp
}

// state is the committed contents of one environment. Transactions work
// on a deep clone and swap it in on commit.
type state struct {
	entities  map[EntityID]*storedEntity
	typeIDs   map[string]int
	typeNames []string
	seq       map[int]int64
	blobSeq   int64
}

func newState() *state {
	return &state{
		entities: make(map[EntityID]*storedEntity),
		typeIDs:  make(map[string]int),
		seq:      make(map[int]int64),
	}
}

func (s *state) clone() *state {
	cp := &state{
		entities:  make(map[EntityID]*storedEntity, len(s.entities)),
		typeIDs:   maps.Clone(s.typeIDs),
		typeNames: slices.Clone(s.typeNames),
		seq:       maps.Clone(s.seq),
		blobSeq:   s.blobSeq,
	}
	for id, e := range s.entities {
		cp.entities[id] = e.clone()
	}
	return cp
}

// typeID interns an entity type name, assigning the next id on first use.
func (s *state) typeID(entityType string) int {
	if id, ok := s.typeIDs[entityType]; ok {
		return id
	}
	id := len(s.typeNames)
	s.typeIDs[entityType] = id
	s.typeNames = append(s.typeNames, entityType)
	return id
}

func (s *state) typeName(typeID int) (string, bool) {
	if typeID < 0 || typeID >= len(s.typeNames) {
		return "", false
	}
	return s.typeNames[typeID], true
}

func (s *state) nextLocalID(typeID int) int64 {
	s.seq[typeID]++
	return s.seq[typeID]
}

// idsOfType returns the sorted ids of every entity of the type.
func (s *state) idsOfType(entityType string) []EntityID {
	typeID, ok := s.typeIDs[entityType]
	if !ok {
		return nil
	}
	var ids []EntityID
	for id := range s.entities {
		if id.TypeID == typeID {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids
}
