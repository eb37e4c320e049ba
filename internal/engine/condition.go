package engine

import (
	"errors"
	"fmt"
	"strings"

	"datagraph/internal/geo"
	"datagraph/internal/search"
	"datagraph/internal/storage"
	"datagraph/pkg/domain"
)

// checkConditions evaluates the list against the entity in context,
// short-circuiting in list order. The first unmet condition aborts the
// enclosing transaction via UnsatisfiedConditionError.
func checkConditions(tx *storage.Transaction, entity *storage.Entity, conds []domain.Condition) error {
	for _, c := range conds {
		ok, err := checkCondition(tx, entity, c)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.UnsatisfiedConditionError{Condition: c, EntityID: entity.ID()}
		}
	}
	return nil
}

func checkCondition(tx *storage.Transaction, entity *storage.Entity, c domain.Condition) (bool, error) {
	switch cond := c.(type) {
	case domain.PropertyEqualCondition:
		return domain.Equal(entity.Property(cond.PropertyName), cond.PropertyValue), nil

	case domain.PropertyStartsWithCondition:
		// A non-string stored value fails the condition outright; no
		// coercion.
		s, ok := entity.Property(cond.PropertyName).(string)
		return ok && strings.HasPrefix(s, cond.StartsWith), nil

	case domain.PropertyMinMaxCondition:
		return minMaxHolds(entity.Property(cond.PropertyName), cond.Min, cond.Max), nil

	case domain.PropertyLocalTimeRangeCondition:
		stored, ok := entity.Property(cond.PropertyName).(domain.LocalTimeRange)
		if !ok {
			return false, nil
		}
		return stored.Overlaps(domain.LocalTimeRange{Lower: cond.Lower, Upper: cond.Upper}), nil

	case domain.PropertyNearbyCondition:
		point, ok := entity.Property(cond.PropertyName).(domain.GeoPoint)
		return ok && nearbyHolds(point, cond), nil

	case domain.LinkCondition:
		targets := entity.LinkTargets(cond.LinkName)
		if !cond.IsSet {
			return len(targets) > 0, nil
		}
		return len(targets) == 1 && targets[0] == cond.OtherEntityID, nil

	case domain.OppositeLinkCondition:
		return oppositeLinkHolds(tx, entity, cond)

	case domain.CustomCondition:
		if cond.Check == nil {
			return false, &domain.InvalidRequestError{Reason: fmt.Sprintf("custom condition %q has no check", cond.Name)}
		}
		if err := cond.Check(entity); err != nil {
			// Checks may return the error by pointer or by value; both
			// mean the condition failed, anything else is a hard error.
			var unsatPtr *domain.UnsatisfiedConditionError
			var unsatVal domain.UnsatisfiedConditionError
			if errors.As(err, &unsatPtr) || errors.As(err, &unsatVal) {
				return false, nil
			}
			return false, err
		}
		return true, nil

	default:
		return false, &domain.InvalidRequestError{Reason: fmt.Sprintf("unknown condition variant %T", c)}
	}
}

// oppositeLinkHolds verifies the bidirectional invariant: the context
// entity links to the opposite entity and the opposite entity links
// back. With IsSet both directions must be unique.
func oppositeLinkHolds(tx *storage.Transaction, entity *storage.Entity, cond domain.OppositeLinkCondition) (bool, error) {
	otherID, err := tx.ToEntityID(cond.OppositeEntityID)
	if err != nil {
		return false, &domain.InvalidRequestError{Reason: err.Error()}
	}
	other, err := tx.GetEntity(otherID)
	if err != nil {
		return false, nil
	}
	forward := entity.LinkTargets(cond.LinkName)
	reverse := other.LinkTargets(cond.OppositeLinkName)
	if cond.IsSet {
		return len(forward) == 1 && forward[0] == cond.OppositeEntityID &&
			len(reverse) == 1 && reverse[0] == entity.ID(), nil
	}
	return containsString(forward, cond.OppositeEntityID) && containsString(reverse, entity.ID()), nil
}

func minMaxHolds(stored, min, max any) bool {
	lo, ok := domain.Compare(stored, min)
	if !ok {
		return false
	}
	hi, ok := domain.Compare(stored, max)
	if !ok {
		return false
	}
	return lo >= 0 && hi <= 0
}

func nearbyHolds(point domain.GeoPoint, cond domain.PropertyNearbyCondition) bool {
	if cond.UseGeoHash {
		precision := geo.PrecisionForRadius(cond.Distance)
		stored := geo.Encode(point.Longitude, point.Latitude)[:precision]
		query := geo.Encode(cond.Longitude, cond.Latitude)[:precision]
		if stored != query {
			return false
		}
	}
	return geo.Distance(point.Longitude, point.Latitude, cond.Longitude, cond.Latitude) <= cond.Distance
}

// narrowScope applies the conditions of a read query as scope filters.
// Property conditions narrow by lookup or iterate-and-test; link,
// opposite-link and custom conditions have no query-mode semantics and
// raise NotImplementedError.
func narrowScope(tx *storage.Transaction, scope storage.Iterable, entityType, environment string, indexer search.Indexer, conds []domain.Condition) (storage.Iterable, error) {
	for _, c := range conds {
		switch cond := c.(type) {
		case domain.PropertyEqualCondition:
			scope = scope.Intersect(tx.Find(entityType, cond.PropertyName, cond.PropertyValue))

		case domain.PropertyStartsWithCondition:
			scope = scope.Intersect(tx.FindStartingWith(entityType, cond.PropertyName, cond.StartsWith))

		case domain.PropertyMinMaxCondition:
			scope = keepMatching(tx, scope, func(e *storage.Entity) bool {
				return minMaxHolds(e.Property(cond.PropertyName), cond.Min, cond.Max)
			})

		case domain.PropertyLocalTimeRangeCondition:
			query := domain.LocalTimeRange{Lower: cond.Lower, Upper: cond.Upper}
			scope = keepMatching(tx, scope, func(e *storage.Entity) bool {
				stored, ok := e.Property(cond.PropertyName).(domain.LocalTimeRange)
				return ok && stored.Overlaps(query)
			})

		case domain.PropertyNearbyCondition:
			if cond.UseGeoHash && indexer != nil {
				candidates, err := indexer.Nearby(environment, entityType, cond.PropertyName, cond.Longitude, cond.Latitude, cond.Distance)
				if err != nil {
					return storage.Iterable{}, err
				}
				ids := make([]storage.EntityID, 0, len(candidates))
				for _, s := range candidates {
					id, err := storage.ParseEntityID(s)
					if err != nil {
						return storage.Iterable{}, err
					}
					ids = append(ids, id)
				}
				scope = scope.Intersect(storage.NewIterable(ids))
			}
			exact := cond
			exact.UseGeoHash = false
			scope = keepMatching(tx, scope, func(e *storage.Entity) bool {
				point, ok := e.Property(cond.PropertyName).(domain.GeoPoint)
				return ok && nearbyHolds(point, exact)
			})

		default:
			return storage.Iterable{}, &domain.NotImplementedError{Feature: fmt.Sprintf("%T as query condition", c)}
		}
	}
	return scope, nil
}

func keepMatching(tx *storage.Transaction, scope storage.Iterable, match func(*storage.Entity) bool) storage.Iterable {
	var kept []storage.EntityID
	for _, id := range scope.IDs() {
		e, err := tx.GetEntity(id)
		if err != nil {
			continue
		}
		if match(e) {
			kept = append(kept, id)
		}
	}
	return storage.NewIterable(kept)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
