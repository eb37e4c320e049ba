package storage

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"datagraph/pkg/domain"
)

// Entity is a live reference to a stored entity inside an open
// transaction. Mutations write to the transaction's working state and
// become visible to other callers only on commit. Entity implements
// domain.EntityHandle for custom conditions and actions.
type Entity struct {
	tx  *Transaction
	rec *storedEntity
}

var _ domain.EntityHandle = (*Entity)(nil)

// ID returns the opaque string id.
func (e *Entity) ID() string { return e.rec.ID.String() }

// EntityID returns the structured id.
func (e *Entity) EntityID() EntityID { return e.rec.ID }

// Type returns the entity type name.
func (e *Entity) Type() string { return e.rec.Type }

// PropertyNames returns the sorted property names.
func (e *Entity) PropertyNames() []string {
	names := make([]string, 0, len(e.rec.Props))
	for name := range e.rec.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property returns the stored value, or nil when absent.
func (e *Entity) Property(name string) any {
	return e.rec.Props[name]
}

// SetProperty writes a flat scalar value. A nil value deletes the
// property — the documented behavior of writing null.
func (e *Entity) SetProperty(name string, value any) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	if value == nil {
		delete(e.rec.Props, name)
		return nil
	}
	if !domain.ValidValue(value) {
		return fmt.Errorf("unsupported property value type %T for %q", value, name)
	}
	switch value.(type) {
	case domain.EmbeddedMap, domain.EmbeddedList:
		return fmt.Errorf("nested value for %q must be encoded before storage", name)
	}
	e.rec.Props[name] = value
	return nil
}

// DeleteProperty removes the property key entirely.
func (e *Entity) DeleteProperty(name string) {
	delete(e.rec.Props, name)
}

// LinkNames returns the sorted names that have at least one target.
func (e *Entity) LinkNames() []string {
	names := make([]string, 0, len(e.rec.Links))
	for name, targets := range e.rec.Links {
		if len(targets) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LinkTargets returns the target ids under the link name, in order.
func (e *Entity) LinkTargets(name string) []string {
	targets := e.rec.Links[name]
	out := make([]string, 0, len(targets))
	for _, id := range targets {
		out = append(out, id.String())
	}
	return out
}

// Links returns the targets under the link name as an Iterable.
func (e *Entity) Links(name string) Iterable {
	targets := slices.Clone(e.rec.Links[name])
	slices.SortFunc(targets, compareIDs)
	return newIterable(targets)
}

// Link returns the single target of the link name, if exactly one is
// set.
func (e *Entity) Link(name string) (EntityID, bool) {
	targets := e.rec.Links[name]
	if len(targets) != 1 {
		return EntityID{}, false
	}
	return targets[0], true
}

// SetLink replaces every target under the name with the single target.
func (e *Entity) SetLink(name string, target EntityID) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	e.rec.Links[name] = []EntityID{target}
	return nil
}

// AddLink appends a target under the name without removing others.
func (e *Entity) AddLink(name string, target EntityID) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	e.rec.Links[name] = append(e.rec.Links[name], target)
	return nil
}

// DeleteLink removes every occurrence of the target under the name.
func (e *Entity) DeleteLink(name string, target EntityID) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	targets := slices.DeleteFunc(e.rec.Links[name], func(id EntityID) bool { return id == target })
	if len(targets) == 0 {
		delete(e.rec.Links, name)
	} else {
		e.rec.Links[name] = targets
	}
	return nil
}

// BlobNames returns the sorted blob names present on the entity.
func (e *Entity) BlobNames() []string {
	names := make([]string, 0, len(e.rec.Blobs))
	for name := range e.rec.Blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Blob opens the named payload for streaming. The caller owns closing
// the reader.
func (e *Entity) Blob(name string) (io.ReadCloser, error) {
	key, ok := e.rec.Blobs[name]
	if !ok {
		return nil, fmt.Errorf("entity %s has no blob %q", e.ID(), name)
	}
	return e.tx.openBlob(key)
}

// SetBlob streams the payload into the blob store under a fresh key and
// points the name at it. A previous payload under the same name is
// scheduled for deletion at commit.
func (e *Entity) SetBlob(name string, r io.Reader) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	key, err := e.tx.stageBlob(e.rec.ID, name, r)
	if err != nil {
		return err
	}
	if old, ok := e.rec.Blobs[name]; ok {
		e.tx.obsoleteBlob(old)
	}
	e.rec.Blobs[name] = key
	return nil
}

// DeleteBlob removes the named payload reference; the payload itself is
// deleted at commit.
func (e *Entity) DeleteBlob(name string) error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	if key, ok := e.rec.Blobs[name]; ok {
		e.tx.obsoleteBlob(key)
		delete(e.rec.Blobs, name)
	}
	return nil
}

// Delete removes the entity record. Link references held by other
// entities are the caller's responsibility; the facade cascades them.
func (e *Entity) Delete() error {
	if err := e.tx.writable(); err != nil {
		return err
	}
	for _, key := range e.rec.Blobs {
		e.tx.obsoleteBlob(key)
	}
	delete(e.tx.state.entities, e.rec.ID)
	return nil
}
