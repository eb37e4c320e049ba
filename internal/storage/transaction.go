package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"datagraph/pkg/domain"
)

// ErrReadOnly is returned for mutations attempted in a read-only
// transaction.
var ErrReadOnly = errors.New("storage: transaction is read-only")

// Transaction is a unit of atomic work against one environment. Writable
// transactions operate on a deep clone of the committed state; blob
// payloads written during the transaction are staged immediately (to keep
// streaming single-pass) and reconciled on commit or rollback.
type Transaction struct {
	env      *Environment
	ctx      context.Context
	state    *state
	readOnly bool
	// staged holds keys written during this transaction, deleted again on
	// rollback. obsolete holds keys superseded or removed, deleted on
	// commit.
	staged   []string
	obsolete []string
}

func (tx *Transaction) writable() error {
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

// Environment returns the directory path of the owning environment.
func (tx *Transaction) Environment() string { return tx.env.dir }

// GetAll returns every entity of the type, ordered by id.
func (tx *Transaction) GetAll(entityType string) Iterable {
	return newIterable(tx.state.idsOfType(entityType))
}

// Find returns entities of the type whose property equals value under
// type-sensitive equality.
func (tx *Transaction) Find(entityType, property string, value any) Iterable {
	var ids []EntityID
	for _, id := range tx.state.idsOfType(entityType) {
		if stored, ok := tx.state.entities[id].Props[property]; ok && domain.Equal(stored, value) {
			ids = append(ids, id)
		}
	}
	return newIterable(ids)
}

// FindWithProp returns entities of the type carrying the property at all.
func (tx *Transaction) FindWithProp(entityType, property string) Iterable {
	var ids []EntityID
	for _, id := range tx.state.idsOfType(entityType) {
		if _, ok := tx.state.entities[id].Props[property]; ok {
			ids = append(ids, id)
		}
	}
	return newIterable(ids)
}

// FindStartingWith returns entities of the type whose string property
// begins with prefix. Non-string values never match.
func (tx *Transaction) FindStartingWith(entityType, property, prefix string) Iterable {
	var ids []EntityID
	for _, id := range tx.state.idsOfType(entityType) {
		if s, ok := tx.state.entities[id].Props[property].(string); ok && strings.HasPrefix(s, prefix) {
			ids = append(ids, id)
		}
	}
	return newIterable(ids)
}

// FindLinks returns entities of the type that hold a link under linkName
// pointing at target. This is the reverse-index scan used for cascading
// link cleanup.
func (tx *Transaction) FindLinks(entityType string, target EntityID, linkName string) Iterable {
	var ids []EntityID
	for _, id := range tx.state.idsOfType(entityType) {
		for _, linked := range tx.state.entities[id].Links[linkName] {
			if linked == target {
				ids = append(ids, id)
				break
			}
		}
	}
	return newIterable(ids)
}

// NewEntity creates an uncommitted entity of the type with a fresh id.
func (tx *Transaction) NewEntity(entityType string) (*Entity, error) {
	if err := tx.writable(); err != nil {
		return nil, err
	}
	if entityType == "" {
		return nil, fmt.Errorf("entity type required")
	}
	typeID := tx.state.typeID(entityType)
	id := EntityID{TypeID: typeID, LocalID: tx.state.nextLocalID(typeID)}
	rec := newStoredEntity(id, entityType)
	tx.state.entities[id] = rec
	return &Entity{tx: tx, rec: rec}, nil
}

// GetEntity resolves an id to a live entity reference.
func (tx *Transaction) GetEntity(id EntityID) (*Entity, error) {
	rec, ok := tx.state.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return &Entity{tx: tx, rec: rec}, nil
}

// ToEntityID parses an opaque string id.
func (tx *Transaction) ToEntityID(s string) (EntityID, error) {
	return ParseEntityID(s)
}

// EntityTypes returns the type names known to the environment, in
// registration order.
func (tx *Transaction) EntityTypes() []string {
	out := make([]string, len(tx.state.typeNames))
	copy(out, tx.state.typeNames)
	return out
}

// AllLinkNames returns every link name in use across all entities.
func (tx *Transaction) AllLinkNames() []string {
	seen := make(map[string]struct{})
	for _, rec := range tx.state.entities {
		for name, targets := range rec.Links {
			if len(targets) > 0 {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stageBlob streams a payload into the blob store under a fresh key.
func (tx *Transaction) stageBlob(id EntityID, name string, r io.Reader) (string, error) {
	tx.state.blobSeq++
	key := fmt.Sprintf("%s/%s.%d", id, name, tx.state.blobSeq)
	if _, err := tx.env.blobs.Put(tx.ctx, key, r); err != nil {
		return "", fmt.Errorf("stage blob %q: %w", name, err)
	}
	tx.staged = append(tx.staged, key)
	return key, nil
}

func (tx *Transaction) obsoleteBlob(key string) {
	tx.obsolete = append(tx.obsolete, key)
}

func (tx *Transaction) openBlob(key string) (io.ReadCloser, error) {
	return tx.env.blobs.Get(tx.ctx, key)
}
