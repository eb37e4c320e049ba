package domain

// FilterOperator selects how a filter narrows a working set.
type FilterOperator string

const (
	FilterEqual         FilterOperator = "EQUAL"
	FilterNotEqual      FilterOperator = "NOT_EQUAL"
	FilterStartsWith    FilterOperator = "STARTS_WITH"
	FilterNotStartsWith FilterOperator = "NOT_STARTS_WITH"
	// FilterInRange and FilterContains are declared but unbuilt; invoking
	// them raises a NotImplementedError rather than silently matching
	// nothing.
	FilterInRange  FilterOperator = "IN_RANGE"
	FilterContains FilterOperator = "CONTAINS"
)

// Filter narrows a working set of entities by a single boolean predicate
// on one property. Filters in a list compose conjunctively, left to
// right.
type Filter struct {
	PropertyName  string
	PropertyValue any
	Operator      FilterOperator
}
