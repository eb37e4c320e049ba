package engine

import (
	"log/slog"

	"datagraph/internal/search"
	"datagraph/internal/storage"
	"datagraph/pkg/codec"
	"datagraph/pkg/domain"
)

// pipeline carries one open transaction through the save stages:
// resolve scope, filter, check conditions, apply actions, write blobs,
// write properties.
type pipeline struct {
	tx          *storage.Transaction
	indexer     search.Indexer
	environment string
	logger      *slog.Logger
	// index holds geo index writes recorded during the transaction.
	// They are applied by flushIndex only after the transaction commits,
	// so a rollback never leaves the index ahead of the store.
	index []indexOp
}

type indexOp struct {
	entityType string
	entityID   string
	property   string
	point      domain.GeoPoint
}

// flushIndex applies the geo index writes of a committed transaction.
// Index failures degrade nearby acceleration but never entity state, so
// they are logged and ignored.
func (p *pipeline) flushIndex() {
	if p.indexer == nil {
		return
	}
	for _, op := range p.index {
		if err := p.indexer.Index(p.environment, op.entityType, op.entityID, op.property, op.point); err != nil {
			p.logger.Warn("geo index update failed",
				slog.String("environment", p.environment),
				slog.String("entity", op.entityID),
				slog.String("property", op.property),
				slog.String("error", err.Error()))
		}
	}
}

// saveOne drives the full pipeline for a single entity description and
// returns the mutated storage entity. Any error aborts the enclosing
// transaction; no partial mutation survives.
func (p *pipeline) saveOne(spec domain.Entity) (*storage.Entity, error) {
	res, err := resolveScope(p.tx, spec)
	if err != nil {
		return nil, err
	}
	entity := res.entity

	scope, err := applyFilters(p.tx, res.scope, entity.Type(), spec.Filters)
	if err != nil {
		return nil, err
	}
	if err := checkConditions(p.tx, entity, spec.Conditions); err != nil {
		return nil, err
	}
	if err := p.applyActions(spec, entity, scope, spec.Actions); err != nil {
		return nil, err
	}
	for _, b := range spec.Blobs {
		if err := p.writeBlob(entity, b); err != nil {
			return nil, err
		}
	}
	for _, prop := range spec.Properties {
		if err := p.writeProperty(entity, prop.Name, prop.Value); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

func (p *pipeline) writeBlob(entity *storage.Entity, b domain.Blob) error {
	if b.Stream == nil {
		return entity.DeleteBlob(b.Name)
	}
	err := entity.SetBlob(b.Name, b.Stream)
	_ = b.Stream.Close()
	return err
}

// writeProperty stores one property value. Nil deletes the property,
// nested values are encoded first, geo points additionally keep the
// search index in step.
func (p *pipeline) writeProperty(entity *storage.Entity, name string, value any) error {
	if name == domain.NamespaceProperty {
		// The namespace property is managed by scope resolution only.
		return nil
	}
	if value == nil {
		return entity.SetProperty(name, nil)
	}
	switch v := value.(type) {
	case domain.EmbeddedMap, domain.EmbeddedList:
		encoded, err := codec.EncodeNested(v)
		if err != nil {
			return err
		}
		return entity.SetProperty(name, encoded)
	case domain.GeoPoint:
		if err := entity.SetProperty(name, v); err != nil {
			return err
		}
		if p.indexer != nil {
			p.index = append(p.index, indexOp{entityType: entity.Type(), entityID: entity.ID(), property: name, point: v})
		}
		return nil
	default:
		return entity.SetProperty(name, value)
	}
}
