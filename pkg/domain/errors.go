package domain

import "fmt"

// InvalidRequestError reports a structurally malformed request: missing
// required discriminator or an unrecognized condition/action/filter
// variant. It is fatal to the whole batch.
type InvalidRequestError struct {
	Reason string
}

func (e InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// NamespaceMismatchError reports that an explicitly addressed entity
// exists but outside the declared namespace scope.
type NamespaceMismatchError struct {
	EntityID  string
	Namespace string
}

func (e NamespaceMismatchError) Error() string {
	return fmt.Sprintf("entity %s not found in namespace %s", e.EntityID, e.Namespace)
}

// UnsatisfiedConditionError reports the first condition in a request that
// failed; it carries the specific condition instance for diagnostics and
// aborts the enclosing transaction.
type UnsatisfiedConditionError struct {
	Condition Condition
	EntityID  string
}

func (e UnsatisfiedConditionError) Error() string {
	return fmt.Sprintf("unsatisfied condition %T on entity %s", e.Condition, e.EntityID)
}

// UniquenessViolationError reports a PropertyIndexAction that found a
// pre-existing duplicate value in scope.
type UniquenessViolationError struct {
	PropertyName string
	Value        any
}

func (e UniquenessViolationError) Error() string {
	return fmt.Sprintf("unique property violation: %s=%v already exists", e.PropertyName, e.Value)
}

// NotImplementedError reports that a declared-but-unbuilt filter or
// condition path was invoked. Unbuilt paths fail explicitly rather than
// guessing at behavior.
type NotImplementedError struct {
	Feature string
}

func (e NotImplementedError) Error() string {
	return "not implemented: " + e.Feature
}

// StoreUnavailableError reports that an environment could not be opened,
// even after stale-lock recovery.
type StoreUnavailableError struct {
	Environment string
	Err         error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Environment, e.Err)
}

func (e StoreUnavailableError) Unwrap() error { return e.Err }
