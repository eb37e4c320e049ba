package storage

import (
	"reflect"
	"testing"
)

func ids(pairs ...int64) []EntityID {
	out := make([]EntityID, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, EntityID{TypeID: 0, LocalID: p})
	}
	return out
}

func TestIterableSetAlgebra(t *testing.T) {
	a := NewIterable(ids(1, 2, 3, 4))
	b := NewIterable(ids(3, 4, 5))

	if got := a.Intersect(b).IDs(); !reflect.DeepEqual(got, ids(3, 4)) {
		t.Fatalf("Intersect = %v", got)
	}
	if got := a.Minus(b).IDs(); !reflect.DeepEqual(got, ids(1, 2)) {
		t.Fatalf("Minus = %v", got)
	}
	if got := a.Skip(2).IDs(); !reflect.DeepEqual(got, ids(3, 4)) {
		t.Fatalf("Skip = %v", got)
	}
	if got := a.Take(2).IDs(); !reflect.DeepEqual(got, ids(1, 2)) {
		t.Fatalf("Take = %v", got)
	}
	if got := a.Skip(10).Size(); got != 0 {
		t.Fatalf("Skip past end = %d", got)
	}
	if got := a.Take(10).Size(); got != 4 {
		t.Fatalf("Take past end = %d", got)
	}
}

func TestIterableFirstLast(t *testing.T) {
	empty := Iterable{}
	if _, ok := empty.First(); ok {
		t.Fatal("First on empty returned ok")
	}
	if _, ok := empty.Last(); ok {
		t.Fatal("Last on empty returned ok")
	}

	it := NewIterable(ids(9, 1, 5))
	first, _ := it.First()
	last, _ := it.Last()
	if first.LocalID != 1 || last.LocalID != 9 {
		t.Fatalf("First/Last = %v/%v, want sorted order", first, last)
	}
}

func TestIterableContains(t *testing.T) {
	it := NewIterable(ids(2, 4, 6))
	if !it.Contains(EntityID{LocalID: 4}) {
		t.Fatal("Contains missed a member")
	}
	if it.Contains(EntityID{LocalID: 5}) {
		t.Fatal("Contains matched a non-member")
	}
}

func TestParseEntityID(t *testing.T) {
	id := EntityID{TypeID: 3, LocalID: 42}
	parsed, err := ParseEntityID(id.String())
	if err != nil {
		t.Fatalf("ParseEntityID: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip = %v, want %v", parsed, id)
	}
	for _, bad := range []string{"", "3", "x-1", "1-x", "--"} {
		if _, err := ParseEntityID(bad); err == nil {
			t.Errorf("ParseEntityID(%q) succeeded", bad)
		}
	}
}
