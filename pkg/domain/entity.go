// Package domain defines the transport value model for the entity store:
// entity descriptions, queries, filters, the closed condition and action
// variant sets, scalar property values, and the error taxonomy. Values in
// this package carry no behavior beyond validation; they describe what to
// change or retrieve, never how.
package domain

import "io"

// Property is a single named property value. Request property lists keep
// the client's ordering.
type Property struct {
	Name  string
	Value any
}

// Blob is an opaque binary payload addressed by name, one stream per name
// per entity. The stream is a handle, never a fully buffered payload.
type Blob struct {
	Name   string
	Stream io.ReadCloser
}

// Entity describes an entity to save or a saved entity returned to the
// client. At least one of EntityType or EntityID must be present; an
// absent EntityID means "create a new entity of EntityType".
type Entity struct {
	Environment string
	Namespace   string
	EntityType  string
	EntityID    string
	Properties  []Property
	Blobs       []Blob
	Links       []Entity
	BlobNames   []string
	LinkNames   []string
	Conditions  []Condition
	Actions     []Action
	Filters     []Filter
}

// Property returns the named property value and whether it is present.
func (e Entity) Property(name string) (any, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// SetProperty replaces the named property in place or appends it,
// preserving the existing order.
func (e *Entity) SetProperty(name string, value any) {
	for i, p := range e.Properties {
		if p.Name == name {
			e.Properties[i].Value = value
			return
		}
	}
	e.Properties = append(e.Properties, Property{Name: name, Value: value})
}

// LinkQuery selects a named link for inclusion when marshalling a result.
// When TargetID is set only links pointing at that entity are included.
// Projection recursion is bounded by the query list itself: linked
// entities are marshalled without further link projections.
type LinkQuery struct {
	LinkName string
	TargetID string
}

// BlobQuery selects a named blob for inclusion when marshalling a result.
type BlobQuery struct {
	BlobName string
	Include  bool
}

// Query selects entities to retrieve or remove. Max defaults to 100
// when zero. Sorting is ascending unless SortDescending is set, so the
// zero value keeps the default order.
type Query struct {
	Environment    string
	Namespace      string
	EntityType     string
	EntityID       string
	Conditions     []Condition
	Filters        []Filter
	LinkQueries    []LinkQuery
	BlobQueries    []BlobQuery
	Offset         int
	Max            int
	Sort           string
	SortDescending bool
}

// EntityTypeInfo names one entity type present in an environment.
type EntityTypeInfo struct {
	Name string
}

// EntityTypes is the result of a type listing, with an optional count of
// entities for the queried type.
type EntityTypes struct {
	Types       []EntityTypeInfo
	EntityCount int64
	Counted     bool
}

// Entities is a batched query result with pagination echoes.
type Entities struct {
	Entities []Entity
	Offset   int
	Max      int
	Count    int64
}

// EntityTypeQuery selects an environment for a type listing.
type EntityTypeQuery struct {
	Environment string
	EntityType  string
	Count       bool
}

// PropertyOp is a bulk property operation applied across a scoped set of
// entities in one transaction.
type PropertyOp struct {
	Environment string
	Namespace   string
	EntityType  string
	Actions     []PropertyAction
}
