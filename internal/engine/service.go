// Package engine implements the entity resolution, condition
// evaluation, and action application pipeline behind the store facade.
// A request flows through resolve scope, filter, check conditions,
// apply actions, write blobs and properties, then marshals the result;
// each stage threads an explicit working set forward.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"context"

	"datagraph/internal/search"
	"datagraph/internal/storage"
	"datagraph/pkg/domain"
)

// Service is the public store facade. Batched requests are grouped by
// environment; each environment's sub-batch runs in one transaction
// and commits or rolls back as a whole. There is no atomicity across
// environments.
type Service struct {
	manager *storage.Manager
	indexer search.Indexer
	metrics MetricsRecorder
	logger  *slog.Logger
}

// New constructs the facade with explicit dependencies. A nil indexer
// disables geohash acceleration, a nil metrics recorder discards
// observations and a nil logger falls back to slog.Default().
func New(manager *storage.Manager, indexer search.Indexer, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = NoopMetricsRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{manager: manager, indexer: indexer, metrics: metrics, logger: logger}
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err, time.Since(start))
}

func (s *Service) newPipeline(tx *storage.Transaction, environment string) *pipeline {
	return &pipeline{tx: tx, indexer: s.indexer, environment: environment, logger: s.logger}
}

// SaveEntity creates or updates a single entity.
func (s *Service) SaveEntity(ctx context.Context, spec domain.Entity) (domain.Entity, error) {
	results, err := s.SaveEntities(ctx, []domain.Entity{spec})
	if err != nil {
		return domain.Entity{}, err
	}
	return results[0], nil
}

// SaveEntities creates or updates a batch. Specs are grouped by
// environment in first-appearance order; each environment's group is
// applied in one transaction, in list order. A failing group rolls
// back only its own environment; groups already committed stay
// committed.
func (s *Service) SaveEntities(ctx context.Context, specs []domain.Entity) (results []domain.Entity, err error) {
	defer func(start time.Time) { s.observe(ctx, "save_entities", start, err) }(time.Now())

	order, groups, gerr := groupByEnvironment(specs, func(e domain.Entity) string { return e.Environment })
	if gerr != nil {
		err = gerr
		return nil, err
	}

	results = make([]domain.Entity, len(specs))
	for _, environment := range order {
		env, oerr := s.manager.Open(ctx, environment)
		if oerr != nil {
			err = oerr
			return nil, err
		}
		var p *pipeline
		uerr := env.Update(ctx, func(tx *storage.Transaction) error {
			p = s.newPipeline(tx, environment)
			for _, idx := range groups[environment] {
				entity, serr := p.saveOne(specs[idx])
				if serr != nil {
					return serr
				}
				out, merr := marshalEntity(tx, entity, environment, nil, nil)
				if merr != nil {
					return merr
				}
				results[idx] = out
			}
			return nil
		})
		if uerr != nil {
			err = uerr
			return nil, err
		}
		p.flushIndex()
	}
	return results, nil
}

// GetEntity retrieves one entity. With an explicit id the namespace
// membership is verified; a missing entity yields (nil, nil). Without
// an id the query runs as a one-element GetEntities.
func (s *Service) GetEntity(ctx context.Context, q domain.Query) (result *domain.Entity, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_entity", start, err) }(time.Now())

	if q.EntityID == "" {
		q.Max = 1
		page, gerr := s.getEntities(ctx, q)
		if gerr != nil {
			err = gerr
			return nil, err
		}
		if len(page.Entities) == 0 {
			return nil, nil
		}
		return &page.Entities[0], nil
	}

	env, oerr := s.manager.Open(ctx, q.Environment)
	if oerr != nil {
		err = oerr
		return nil, err
	}
	verr := env.View(ctx, func(tx *storage.Transaction) error {
		id, perr := tx.ToEntityID(q.EntityID)
		if perr != nil {
			return &domain.InvalidRequestError{Reason: perr.Error()}
		}
		entity, gerr := tx.GetEntity(id)
		if gerr != nil {
			return nil
		}
		if q.Namespace != "" && !typeScope(tx, entity.Type(), q.Namespace).Contains(id) {
			return &domain.NamespaceMismatchError{EntityID: q.EntityID, Namespace: q.Namespace}
		}
		out, merr := marshalEntity(tx, entity, q.Environment, q.LinkQueries, q.BlobQueries)
		if merr != nil {
			return merr
		}
		result = &out
		return nil
	})
	if verr != nil {
		err = verr
		return nil, err
	}
	return result, nil
}

// GetEntities retrieves a page of entities matching the query.
func (s *Service) GetEntities(ctx context.Context, q domain.Query) (page domain.Entities, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_entities", start, err) }(time.Now())
	return s.getEntities(ctx, q)
}

func (s *Service) getEntities(ctx context.Context, q domain.Query) (domain.Entities, error) {
	if q.EntityType == "" {
		return domain.Entities{}, &domain.InvalidRequestError{Reason: "entity type required"}
	}
	max := q.Max
	if max <= 0 {
		max = 100
	}

	env, err := s.manager.Open(ctx, q.Environment)
	if err != nil {
		return domain.Entities{}, err
	}
	var page domain.Entities
	verr := env.View(ctx, func(tx *storage.Transaction) error {
		scope := typeScope(tx, q.EntityType, q.Namespace)
		scope, err := narrowScope(tx, scope, q.EntityType, q.Environment, s.indexer, q.Conditions)
		if err != nil {
			return err
		}
		scope, err = applyFilters(tx, scope, q.EntityType, q.Filters)
		if err != nil {
			return err
		}

		count := scope.Size()
		var ids []storage.EntityID
		if q.Sort != "" {
			// Property ordering replaces id ordering, so slice the page
			// manually instead of going back through the iterable.
			ids = sortByProperty(tx, scope.IDs(), q.Sort, !q.SortDescending)
			lo := q.Offset
			if lo < 0 {
				lo = 0
			}
			if lo > len(ids) {
				lo = len(ids)
			}
			hi := lo + max
			if hi > len(ids) {
				hi = len(ids)
			}
			ids = ids[lo:hi]
		} else {
			ids = scope.Skip(q.Offset).Take(max).IDs()
		}

		for _, id := range ids {
			entity, gerr := tx.GetEntity(id)
			if gerr != nil {
				continue
			}
			out, merr := marshalEntity(tx, entity, q.Environment, q.LinkQueries, q.BlobQueries)
			if merr != nil {
				return merr
			}
			page.Entities = append(page.Entities, out)
		}
		page.Offset = q.Offset
		page.Max = max
		page.Count = count
		return nil
	})
	if verr != nil {
		return domain.Entities{}, verr
	}
	return page, nil
}

// sortByProperty orders ids by the named property under the values'
// natural ordering. Entities whose values cannot be compared keep
// their id order relative to each other.
func sortByProperty(tx *storage.Transaction, ids []storage.EntityID, property string, ascending bool) []storage.EntityID {
	values := make(map[storage.EntityID]any, len(ids))
	for _, id := range ids {
		if e, err := tx.GetEntity(id); err == nil {
			values[id] = e.Property(property)
		}
	}
	sorted := append([]storage.EntityID(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c, ok := domain.Compare(values[sorted[i]], values[sorted[j]])
		if !ok {
			return false
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return sorted
}

// RemoveEntity deletes the entities matched by one query.
func (s *Service) RemoveEntity(ctx context.Context, q domain.Query) (bool, error) {
	return s.RemoveEntities(ctx, []domain.Query{q})
}

// RemoveEntities deletes matching entities with cascading link
// cleanup: outgoing links go with the entity record, incoming
// references are found by a reverse scan across every type and link
// name. Queries without a namespace target only entities that carry no
// namespace property at all.
func (s *Service) RemoveEntities(ctx context.Context, queries []domain.Query) (ok bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "remove_entities", start, err) }(time.Now())

	order, groups, gerr := groupByEnvironment(queries, func(q domain.Query) string { return q.Environment })
	if gerr != nil {
		err = gerr
		return false, err
	}
	for _, environment := range order {
		env, oerr := s.manager.Open(ctx, environment)
		if oerr != nil {
			err = oerr
			return false, err
		}
		var removed []string
		uerr := env.Update(ctx, func(tx *storage.Transaction) error {
			for _, idx := range groups[environment] {
				if rerr := s.removeMatches(tx, queries[idx], &removed); rerr != nil {
					return rerr
				}
			}
			return nil
		})
		if uerr != nil {
			err = uerr
			return false, err
		}
		s.dropFromIndex(environment, removed)
	}
	return true, nil
}

// dropFromIndex removes committed deletions from the geo index. Like
// flushIndex this runs only after the transaction commits; a rollback
// must not unindex entities that still exist.
func (s *Service) dropFromIndex(environment string, ids []string) {
	if s.indexer == nil {
		return
	}
	for _, id := range ids {
		if err := s.indexer.Remove(environment, id); err != nil {
			s.logger.Warn("geo index removal failed",
				slog.String("environment", environment),
				slog.String("entity", id),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) removeMatches(tx *storage.Transaction, q domain.Query, removed *[]string) error {
	scope, err := removalScope(tx, q)
	if err != nil {
		return err
	}
	scope, err = narrowScope(tx, scope, q.EntityType, q.Environment, s.indexer, q.Conditions)
	if err != nil {
		return err
	}
	if q.EntityType != "" {
		scope, err = applyFilters(tx, scope, q.EntityType, q.Filters)
		if err != nil {
			return err
		}
	}
	for _, id := range scope.IDs() {
		entity, gerr := tx.GetEntity(id)
		if gerr != nil {
			continue
		}
		if derr := deleteWithCascade(tx, entity); derr != nil {
			return derr
		}
		*removed = append(*removed, id.String())
	}
	return nil
}

// removalScope computes the target set of a remove query. An explicit
// id selects just that entity after a namespace membership check; a
// bare type with no namespace selects only entities that never carried
// a namespace.
func removalScope(tx *storage.Transaction, q domain.Query) (storage.Iterable, error) {
	if q.EntityID != "" {
		id, err := tx.ToEntityID(q.EntityID)
		if err != nil {
			return storage.Iterable{}, &domain.InvalidRequestError{Reason: err.Error()}
		}
		entity, err := tx.GetEntity(id)
		if err != nil {
			return storage.Iterable{}, nil
		}
		if q.Namespace != "" && !typeScope(tx, entity.Type(), q.Namespace).Contains(id) {
			return storage.Iterable{}, &domain.NamespaceMismatchError{EntityID: q.EntityID, Namespace: q.Namespace}
		}
		return storage.NewIterable([]storage.EntityID{id}), nil
	}
	if q.EntityType == "" {
		return storage.Iterable{}, &domain.InvalidRequestError{Reason: "entity type or entity id required"}
	}
	if q.Namespace != "" {
		return typeScope(tx, q.EntityType, q.Namespace), nil
	}
	return tx.GetAll(q.EntityType).Minus(tx.FindWithProp(q.EntityType, domain.NamespaceProperty)), nil
}

func deleteWithCascade(tx *storage.Transaction, entity *storage.Entity) error {
	if err := stripIncomingLinks(tx, entity.EntityID()); err != nil {
		return err
	}
	return entity.Delete()
}

// stripIncomingLinks removes every reference to the target across all
// entity types and link names. This is the expensive reverse scan the
// storage layer is expected to keep cheap.
func stripIncomingLinks(tx *storage.Transaction, target storage.EntityID) error {
	linkNames := tx.AllLinkNames()
	for _, entityType := range tx.EntityTypes() {
		for _, linkName := range linkNames {
			for _, holderID := range tx.FindLinks(entityType, target, linkName).IDs() {
				holder, err := tx.GetEntity(holderID)
				if err != nil {
					continue
				}
				if err := holder.DeleteLink(linkName, target); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SaveProperty applies the bulk property actions of the op, typically
// renames, across the scoped set in one transaction.
func (s *Service) SaveProperty(ctx context.Context, op domain.PropertyOp) (ok bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "save_property", start, err) }(time.Now())
	return s.applyPropertyOp(ctx, op)
}

// RemoveProperty applies the bulk property actions of the op,
// typically removals, across the scoped set in one transaction.
func (s *Service) RemoveProperty(ctx context.Context, op domain.PropertyOp) (ok bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "remove_property", start, err) }(time.Now())
	return s.applyPropertyOp(ctx, op)
}

func (s *Service) applyPropertyOp(ctx context.Context, op domain.PropertyOp) (bool, error) {
	if op.EntityType == "" {
		return false, &domain.InvalidRequestError{Reason: "entity type required"}
	}
	env, err := s.manager.Open(ctx, op.Environment)
	if err != nil {
		return false, err
	}
	uerr := env.Update(ctx, func(tx *storage.Transaction) error {
		scope := typeScope(tx, op.EntityType, op.Namespace)
		for _, action := range op.Actions {
			if err := applyPropertyAction(tx, scope, action); err != nil {
				return err
			}
		}
		return nil
	})
	if uerr != nil {
		return false, uerr
	}
	return true, nil
}

func applyPropertyAction(tx *storage.Transaction, scope storage.Iterable, action domain.PropertyAction) error {
	switch act := action.(type) {
	case domain.PropertyRenameAction:
		for _, id := range scope.IDs() {
			entity, err := tx.GetEntity(id)
			if err != nil {
				continue
			}
			value := entity.Property(act.PropertyName)
			if value == nil {
				continue
			}
			if !act.Overwrite && entity.Property(act.NewPropertyName) != nil {
				return &domain.InvalidRequestError{
					Reason: fmt.Sprintf("property %q already exists on entity %s", act.NewPropertyName, entity.ID()),
				}
			}
			if err := entity.SetProperty(act.NewPropertyName, value); err != nil {
				return err
			}
			entity.DeleteProperty(act.PropertyName)
		}
		return nil

	case domain.PropertyRemoveAction:
		for _, id := range scope.IDs() {
			entity, err := tx.GetEntity(id)
			if err != nil {
				continue
			}
			entity.DeleteProperty(act.PropertyName)
		}
		return nil

	default:
		return &domain.InvalidRequestError{Reason: fmt.Sprintf("unknown property action variant %T", action)}
	}
}

// RemoveEntityType strips every link reference held by or pointing at
// entities of the type in scope. The entities themselves are kept;
// callers that want them gone use RemoveEntities.
func (s *Service) RemoveEntityType(ctx context.Context, q domain.EntityTypeQuery) (ok bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "remove_entity_type", start, err) }(time.Now())

	if q.EntityType == "" {
		err = &domain.InvalidRequestError{Reason: "entity type required"}
		return false, err
	}
	env, oerr := s.manager.Open(ctx, q.Environment)
	if oerr != nil {
		err = oerr
		return false, err
	}
	uerr := env.Update(ctx, func(tx *storage.Transaction) error {
		scope := tx.GetAll(q.EntityType)
		for _, id := range scope.IDs() {
			entity, gerr := tx.GetEntity(id)
			if gerr != nil {
				continue
			}
			for _, name := range entity.LinkNames() {
				for _, targetStr := range entity.LinkTargets(name) {
					target, perr := tx.ToEntityID(targetStr)
					if perr != nil {
						continue
					}
					if derr := entity.DeleteLink(name, target); derr != nil {
						return derr
					}
				}
			}
			if serr := stripIncomingLinks(tx, id); serr != nil {
				return serr
			}
		}
		return nil
	})
	if uerr != nil {
		err = uerr
		return false, err
	}
	return true, nil
}

// GetEntityTypes lists the type names of an environment, optionally
// counting the entities of one named type.
func (s *Service) GetEntityTypes(ctx context.Context, q domain.EntityTypeQuery) (result domain.EntityTypes, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_entity_types", start, err) }(time.Now())

	env, oerr := s.manager.Open(ctx, q.Environment)
	if oerr != nil {
		err = oerr
		return domain.EntityTypes{}, err
	}
	verr := env.View(ctx, func(tx *storage.Transaction) error {
		for _, name := range tx.EntityTypes() {
			result.Types = append(result.Types, domain.EntityTypeInfo{Name: name})
		}
		if q.EntityType != "" && q.Count {
			result.EntityCount = tx.GetAll(q.EntityType).Size()
			result.Counted = true
		}
		return nil
	})
	if verr != nil {
		err = verr
		return domain.EntityTypes{}, err
	}
	return result, nil
}

// groupByEnvironment splits batch items into per-environment index
// groups, preserving first-appearance order.
func groupByEnvironment[T any](items []T, envOf func(T) string) ([]string, map[string][]int, error) {
	var order []string
	groups := make(map[string][]int)
	for i, item := range items {
		environment := envOf(item)
		if environment == "" {
			return nil, nil, &domain.InvalidRequestError{Reason: "environment required"}
		}
		if _, ok := groups[environment]; !ok {
			order = append(order, environment)
		}
		groups[environment] = append(groups[environment], i)
	}
	return order, groups, nil
}
