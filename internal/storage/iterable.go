package storage

import "slices"

// Iterable is an immutable, ordered working set of entity ids. Pipeline
// stages thread narrowed Iterables through explicit returns; there is no
// shared mutable scope.
type Iterable struct {
	ids []EntityID
}

func newIterable(ids []EntityID) Iterable {
	return Iterable{ids: ids}
}

// NewIterable builds a working set from arbitrary ids, sorting them
// into the canonical order.
func NewIterable(ids []EntityID) Iterable {
	sorted := slices.Clone(ids)
	sortIDs(sorted)
	return Iterable{ids: sorted}
}

// IDs returns the ids in order.
func (it Iterable) IDs() []EntityID { return it.ids }

// Size returns the number of entities in the set.
func (it Iterable) Size() int64 { return int64(len(it.ids)) }

// Contains reports membership.
func (it Iterable) Contains(id EntityID) bool {
	_, ok := slices.BinarySearchFunc(it.ids, id, compareIDs)
	return ok
}

// Intersect returns the ordered intersection of both sets.
func (it Iterable) Intersect(other Iterable) Iterable {
	var out []EntityID
	for _, id := range it.ids {
		if other.Contains(id) {
			out = append(out, id)
		}
	}
	return newIterable(out)
}

// Minus returns the ordered difference it \ other.
func (it Iterable) Minus(other Iterable) Iterable {
	var out []EntityID
	for _, id := range it.ids {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return newIterable(out)
}

// Skip drops the first n entities.
func (it Iterable) Skip(n int) Iterable {
	if n <= 0 {
		return it
	}
	if n >= len(it.ids) {
		return Iterable{}
	}
	return newIterable(it.ids[n:])
}

// Take keeps at most n entities.
func (it Iterable) Take(n int) Iterable {
	if n < 0 || n >= len(it.ids) {
		return it
	}
	return newIterable(it.ids[:n])
}

// First returns the first id, if any.
func (it Iterable) First() (EntityID, bool) {
	if len(it.ids) == 0 {
		return EntityID{}, false
	}
	return it.ids[0], true
}

// Last returns the last id, if any.
func (it Iterable) Last() (EntityID, bool) {
	if len(it.ids) == 0 {
		return EntityID{}, false
	}
	return it.ids[len(it.ids)-1], true
}

func compareIDs(a, b EntityID) int {
	if a.less(b) {
		return -1
	}
	if b.less(a) {
		return 1
	}
	return 0
}
