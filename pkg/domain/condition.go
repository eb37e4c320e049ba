package domain

// EntityHandle is the mutable storage-entity surface exposed to custom
// conditions and actions. It is implemented by the storage engine's live
// entity reference and is only valid inside the transaction that produced
// it.
type EntityHandle interface {
	ID() string
	Type() string
	PropertyNames() []string
	Property(name string) any
	SetProperty(name string, value any) error
	DeleteProperty(name string)
	LinkNames() []string
	LinkTargets(name string) []string
	BlobNames() []string
}

// Condition is a non-mutating predicate evaluated against one entity in
// context, or used to narrow a query scope. The variant set is closed:
// implementations live in this package only.
type Condition interface {
	condition()
}

// PropertyEqualCondition holds when the stored value equals the expected
// value under type-sensitive equality.
type PropertyEqualCondition struct {
	PropertyName  string
	PropertyValue any
}

// PropertyStartsWithCondition holds when the stored value is a string
// beginning with the prefix. A non-string stored value fails the
// condition; no coercion is attempted.
type PropertyStartsWithCondition struct {
	PropertyName string
	StartsWith   string
}

// PropertyMinMaxCondition holds when the stored value lies in the closed
// interval [Min, Max] under the value's natural ordering.
type PropertyMinMaxCondition struct {
	PropertyName string
	Min          any
	Max          any
}

// PropertyLocalTimeRangeCondition holds when the stored time range
// overlaps [Lower, Upper] (closed-closed, non-empty intersection).
type PropertyLocalTimeRangeCondition struct {
	PropertyName string
	Lower        LocalTime
	Upper        LocalTime
}

// PropertyNearbyCondition holds when the great-circle distance between
// the stored geo-point and the query point is within Distance meters.
// With UseGeoHash set, candidates are prefiltered by shared geohash
// prefix at the precision implied by the radius before exact distance is
// computed.
type PropertyNearbyCondition struct {
	PropertyName string
	Longitude    float64
	Latitude     float64
	Distance     float64
	UseGeoHash   bool
}

// LinkCondition checks a named link. With IsSet, exactly one link under
// LinkName must point at OtherEntityID; otherwise at least one link under
// LinkName must exist.
type LinkCondition struct {
	LinkName      string
	OtherEntityID string
	IsSet         bool
}

// OppositeLinkCondition verifies the bidirectional link invariant: both
// the context entity's link and the opposite entity's reverse link must
// exist and, with IsSet, be unique.
type OppositeLinkCondition struct {
	LinkName         string
	OppositeLinkName string
	OppositeEntityID string
	IsSet            bool
}

// CustomCondition delegates to caller-supplied logic over the entity in
// context. Check returns an UnsatisfiedConditionError (or any error) to
// fail the condition.
type CustomCondition struct {
	Name  string
	Check func(entity EntityHandle) error
}

func (PropertyEqualCondition) condition()          {}
func (PropertyStartsWithCondition) condition()     {}
func (PropertyMinMaxCondition) condition()         {}
func (PropertyLocalTimeRangeCondition) condition() {}
func (PropertyNearbyCondition) condition()         {}
func (LinkCondition) condition()                   {}
func (OppositeLinkCondition) condition()           {}
func (CustomCondition) condition()                 {}
