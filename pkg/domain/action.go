package domain

// Action is a mutation applied to the entity in context. Actions execute
// strictly in list order, before the request's property writes, so a
// PropertyIndexAction always observes the store without the value it
// guards. The variant set is closed: implementations live in this package
// only.
type Action interface {
	action()
}

// LinkAction sets or adds a named link to another entity. With IsSet,
// every existing link under LinkName is removed first (replace
// semantics); otherwise the target is appended.
type LinkAction struct {
	LinkName      string
	OtherEntityID string
	IsSet         bool
}

// OppositeLinkAction establishes a bidirectional link pair between the
// entity in context and the entity named by OppositeEntityID. With IsSet
// the prior opposite-direction link is removed from the source entity
// first.
type OppositeLinkAction struct {
	LinkName         string
	OppositeLinkName string
	OppositeEntityID string
	IsSet            bool
}

// LinkRemoveAction removes the named link to a specific target.
type LinkRemoveAction struct {
	LinkName      string
	OtherEntityID string
}

// OppositeLinkRemoveAction removes the link in both directions for every
// entity reachable via (LinkName, OppositeEntityType, OppositeLinkName).
type OppositeLinkRemoveAction struct {
	LinkName           string
	OppositeEntityType string
	OppositeLinkName   string
}

// LinkNewEntityAction recursively creates the nested entity description
// and links it under LinkName, with LinkAction set/add semantics.
type LinkNewEntityAction struct {
	LinkName  string
	IsSet     bool
	NewEntity Entity
}

// BlobRenameAction moves a blob to a new name by streaming: read, delete,
// write under the new name, never buffering the payload twice.
type BlobRenameAction struct {
	BlobName    string
	NewBlobName string
}

// BlobRenameRegexAction renames every blob whose name matches Pattern to
// the literal Replacement. Multiple matches converge on the same target
// name, last write wins; the processor logs a warning for the multi-match
// case.
type BlobRenameRegexAction struct {
	Pattern     string
	Replacement string
}

// BlobRemoveAction deletes the named blobs.
type BlobRemoveAction struct {
	BlobNames []string
}

// PropertyCopyAction copies one named property value from the first or
// last entity of the current scope onto the entity in context. No-op when
// the scope is empty.
type PropertyCopyAction struct {
	PropertyName string
	First        bool
}

// PropertyIndexAction guards uniqueness: it fails the whole batch with a
// UniquenessViolationError when any entity of the type scope already
// carries the value about to be written for PropertyName.
type PropertyIndexAction struct {
	PropertyName string
}

// PropertyRemoveAction deletes the property key entirely. It doubles as a
// bulk PropertyAction when used in a PropertyOp.
type PropertyRemoveAction struct {
	PropertyName string
}

// CustomAction executes caller logic directly against the live entity
// handle.
type CustomAction struct {
	Name  string
	Apply func(entity EntityHandle) error
}

func (LinkAction) action()               {}
func (OppositeLinkAction) action()       {}
func (LinkRemoveAction) action()         {}
func (OppositeLinkRemoveAction) action() {}
func (LinkNewEntityAction) action()      {}
func (BlobRenameAction) action()         {}
func (BlobRenameRegexAction) action()    {}
func (BlobRemoveAction) action()         {}
func (PropertyCopyAction) action()       {}
func (PropertyIndexAction) action()      {}
func (PropertyRemoveAction) action()     {}
func (CustomAction) action()             {}

// PropertyAction is a bulk mutation applied to every entity of a
// PropertyOp scope.
type PropertyAction interface {
	propertyAction()
}

// PropertyRenameAction renames a property across the scoped set. Without
// Overwrite the rename fails when the new name already exists on an
// entity.
type PropertyRenameAction struct {
	PropertyName    string
	NewPropertyName string
	Overwrite       bool
}

func (PropertyRenameAction) propertyAction() {}
func (PropertyRemoveAction) propertyAction() {}
