package engine

import (
	"fmt"

	"datagraph/internal/storage"
	"datagraph/pkg/domain"
)

// applyFilters narrows the scope with each filter in turn, left to
// right. Positive operators intersect the matching set; negated
// operators intersect with the type scope minus the matching set.
func applyFilters(tx *storage.Transaction, scope storage.Iterable, entityType string, filters []domain.Filter) (storage.Iterable, error) {
	for _, f := range filters {
		switch f.Operator {
		case domain.FilterEqual:
			scope = scope.Intersect(tx.Find(entityType, f.PropertyName, f.PropertyValue))
		case domain.FilterNotEqual:
			scope = scope.Intersect(tx.GetAll(entityType).Minus(tx.Find(entityType, f.PropertyName, f.PropertyValue)))
		case domain.FilterStartsWith:
			prefix, err := filterPrefix(f)
			if err != nil {
				return storage.Iterable{}, err
			}
			scope = scope.Intersect(tx.FindStartingWith(entityType, f.PropertyName, prefix))
		case domain.FilterNotStartsWith:
			prefix, err := filterPrefix(f)
			if err != nil {
				return storage.Iterable{}, err
			}
			scope = scope.Intersect(tx.GetAll(entityType).Minus(tx.FindStartingWith(entityType, f.PropertyName, prefix)))
		case domain.FilterInRange, domain.FilterContains:
			return storage.Iterable{}, &domain.NotImplementedError{Feature: fmt.Sprintf("%s filter", f.Operator)}
		default:
			return storage.Iterable{}, &domain.InvalidRequestError{Reason: fmt.Sprintf("unknown filter operator %q", f.Operator)}
		}
	}
	return scope, nil
}

func filterPrefix(f domain.Filter) (string, error) {
	prefix, ok := f.PropertyValue.(string)
	if !ok {
		return "", &domain.InvalidRequestError{
			Reason: fmt.Sprintf("%s filter on %q requires a string value, got %T", f.Operator, f.PropertyName, f.PropertyValue),
		}
	}
	return prefix, nil
}
