package engine

import (
	"fmt"
	"log/slog"
	"regexp"

	"datagraph/internal/storage"
	"datagraph/pkg/codec"
	"datagraph/pkg/domain"
)

// applyActions executes the list strictly in order against the entity
// in context. Actions run before the request's property writes, so a
// PropertyIndexAction always observes the store without the value it
// guards.
func (p *pipeline) applyActions(spec domain.Entity, entity *storage.Entity, scope storage.Iterable, actions []domain.Action) error {
	for _, a := range actions {
		if err := p.applyAction(spec, entity, scope, a); err != nil {
			return err
		}
	}
	return nil
}

func (p *pipeline) applyAction(spec domain.Entity, entity *storage.Entity, scope storage.Iterable, a domain.Action) error {
	tx := p.tx
	switch act := a.(type) {
	case domain.LinkAction:
		target, err := tx.ToEntityID(act.OtherEntityID)
		if err != nil {
			return &domain.InvalidRequestError{Reason: err.Error()}
		}
		if act.IsSet {
			return entity.SetLink(act.LinkName, target)
		}
		return entity.AddLink(act.LinkName, target)

	case domain.OppositeLinkAction:
		targetID, err := tx.ToEntityID(act.OppositeEntityID)
		if err != nil {
			return &domain.InvalidRequestError{Reason: err.Error()}
		}
		other, err := tx.GetEntity(targetID)
		if err != nil {
			return &domain.InvalidRequestError{Reason: err.Error()}
		}
		if act.IsSet {
			// Re-pointing a set pair must clear the displaced partner's
			// forward link too, or the old partner keeps a dangling
			// reference to the opposite entity.
			for _, partnerStr := range other.LinkTargets(act.OppositeLinkName) {
				partnerID, perr := tx.ToEntityID(partnerStr)
				if perr != nil || partnerID == entity.EntityID() {
					continue
				}
				partner, gerr := tx.GetEntity(partnerID)
				if gerr != nil {
					continue
				}
				if err := partner.DeleteLink(act.LinkName, targetID); err != nil {
					return err
				}
			}
			if err := entity.SetLink(act.LinkName, targetID); err != nil {
				return err
			}
			return other.SetLink(act.OppositeLinkName, entity.EntityID())
		}
		if err := entity.AddLink(act.LinkName, targetID); err != nil {
			return err
		}
		return other.AddLink(act.OppositeLinkName, entity.EntityID())

	case domain.LinkRemoveAction:
		target, err := tx.ToEntityID(act.OtherEntityID)
		if err != nil {
			return &domain.InvalidRequestError{Reason: err.Error()}
		}
		return entity.DeleteLink(act.LinkName, target)

	case domain.OppositeLinkRemoveAction:
		return p.removeOppositeLinks(entity, act)

	case domain.LinkNewEntityAction:
		nested := act.NewEntity
		nested.Environment = spec.Environment
		if nested.Namespace == "" {
			nested.Namespace = spec.Namespace
		}
		created, err := p.saveOne(nested)
		if err != nil {
			return err
		}
		if act.IsSet {
			return entity.SetLink(act.LinkName, created.EntityID())
		}
		return entity.AddLink(act.LinkName, created.EntityID())

	case domain.BlobRenameAction:
		return renameBlob(entity, act.BlobName, act.NewBlobName)

	case domain.BlobRenameRegexAction:
		return p.renameBlobsByRegex(entity, act)

	case domain.BlobRemoveAction:
		for _, name := range act.BlobNames {
			if err := entity.DeleteBlob(name); err != nil {
				return err
			}
		}
		return nil

	case domain.PropertyCopyAction:
		id, ok := scope.First()
		if !act.First {
			id, ok = scope.Last()
		}
		if !ok {
			return nil
		}
		src, err := tx.GetEntity(id)
		if err != nil {
			return nil
		}
		if v := src.Property(act.PropertyName); v != nil {
			return entity.SetProperty(act.PropertyName, v)
		}
		return nil

	case domain.PropertyIndexAction:
		return p.guardUniqueness(spec, entity, act)

	case domain.PropertyRemoveAction:
		entity.DeleteProperty(act.PropertyName)
		return nil

	case domain.CustomAction:
		if act.Apply == nil {
			return &domain.InvalidRequestError{Reason: fmt.Sprintf("custom action %q has no body", act.Name)}
		}
		return act.Apply(entity)

	default:
		return &domain.InvalidRequestError{Reason: fmt.Sprintf("unknown action variant %T", a)}
	}
}

// removeOppositeLinks drops both directions of the bidirectional link
// for every reachable entity of the opposite type, not just one.
func (p *pipeline) removeOppositeLinks(entity *storage.Entity, act domain.OppositeLinkRemoveAction) error {
	for _, targetStr := range entity.LinkTargets(act.LinkName) {
		targetID, err := p.tx.ToEntityID(targetStr)
		if err != nil {
			return &domain.InvalidRequestError{Reason: err.Error()}
		}
		other, err := p.tx.GetEntity(targetID)
		if err != nil {
			continue
		}
		if act.OppositeEntityType != "" && other.Type() != act.OppositeEntityType {
			continue
		}
		if err := other.DeleteLink(act.OppositeLinkName, entity.EntityID()); err != nil {
			return err
		}
		if err := entity.DeleteLink(act.LinkName, targetID); err != nil {
			return err
		}
	}
	return nil
}

// renameBlob streams the payload to the new name and deletes the old
// one; the payload is never buffered twice.
func renameBlob(entity *storage.Entity, oldName, newName string) error {
	rc, err := entity.Blob(oldName)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if err := entity.SetBlob(newName, rc); err != nil {
		return err
	}
	return entity.DeleteBlob(oldName)
}

// renameBlobsByRegex renames every matching blob to the literal
// replacement. Multiple matches converge on one target name, last
// write wins; that collision is logged because it is almost always a
// caller mistake.
func (p *pipeline) renameBlobsByRegex(entity *storage.Entity, act domain.BlobRenameRegexAction) error {
	re, err := regexp.Compile(act.Pattern)
	if err != nil {
		return &domain.InvalidRequestError{Reason: fmt.Sprintf("blob rename pattern %q: %v", act.Pattern, err)}
	}
	var matches []string
	for _, name := range entity.BlobNames() {
		if re.MatchString(name) {
			matches = append(matches, name)
		}
	}
	if len(matches) > 1 {
		p.logger.Warn("blob rename pattern matched multiple names, converging on one target",
			slog.String("entity", entity.ID()),
			slog.String("pattern", act.Pattern),
			slog.String("target", act.Replacement),
			slog.Int("matches", len(matches)))
	}
	for _, name := range matches {
		if err := renameBlob(entity, name, act.Replacement); err != nil {
			return err
		}
	}
	return nil
}

// guardUniqueness scans the type scope for a pre-existing entity
// already carrying the value about to be written. A hit fails the
// whole batch.
func (p *pipeline) guardUniqueness(spec domain.Entity, entity *storage.Entity, act domain.PropertyIndexAction) error {
	value, ok := spec.Property(act.PropertyName)
	if !ok || value == nil {
		return nil
	}
	switch value.(type) {
	case domain.EmbeddedMap, domain.EmbeddedList:
		encoded, err := codec.EncodeNested(value)
		if err != nil {
			return err
		}
		value = encoded
	}
	for _, id := range p.tx.Find(entity.Type(), act.PropertyName, value).IDs() {
		if id != entity.EntityID() {
			return &domain.UniquenessViolationError{PropertyName: act.PropertyName, Value: value}
		}
	}
	return nil
}
