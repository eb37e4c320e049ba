package engine

import (
	"datagraph/internal/storage"
	"datagraph/pkg/domain"
)

// resolution is the accumulator threaded through the pipeline stages:
// the single entity in context plus the working set it was resolved
// against.
type resolution struct {
	entity  *storage.Entity
	scope   storage.Iterable
	created bool
}

// typeScope computes the namespace-intersected working set for a type.
func typeScope(tx *storage.Transaction, entityType, namespace string) storage.Iterable {
	scope := tx.GetAll(entityType)
	if namespace != "" {
		scope = scope.Intersect(tx.Find(entityType, domain.NamespaceProperty, namespace))
	}
	return scope
}

// resolveScope computes the entity in context and its scope for a save
// request. An explicit id must name an existing entity inside the
// declared namespace; without an id a fresh entity of the type is
// created and stamped with the namespace.
func resolveScope(tx *storage.Transaction, spec domain.Entity) (resolution, error) {
	if spec.EntityType == "" && spec.EntityID == "" {
		return resolution{}, &domain.InvalidRequestError{Reason: "entity type or entity id required"}
	}

	if spec.EntityID != "" {
		id, err := tx.ToEntityID(spec.EntityID)
		if err != nil {
			return resolution{}, &domain.InvalidRequestError{Reason: err.Error()}
		}
		entity, err := tx.GetEntity(id)
		if err != nil {
			return resolution{}, &domain.InvalidRequestError{Reason: err.Error()}
		}
		scope := typeScope(tx, entity.Type(), spec.Namespace)
		if spec.Namespace != "" && !scope.Contains(id) {
			return resolution{}, &domain.NamespaceMismatchError{EntityID: spec.EntityID, Namespace: spec.Namespace}
		}
		return resolution{entity: entity, scope: scope}, nil
	}

	scope := typeScope(tx, spec.EntityType, spec.Namespace)
	entity, err := tx.NewEntity(spec.EntityType)
	if err != nil {
		return resolution{}, err
	}
	if spec.Namespace != "" {
		if err := entity.SetProperty(domain.NamespaceProperty, spec.Namespace); err != nil {
			return resolution{}, err
		}
	}
	return resolution{entity: entity, scope: scope, created: true}, nil
}
