package engine

import (
	"datagraph/internal/storage"
	"datagraph/pkg/codec"
	"datagraph/pkg/domain"
)

// marshalEntity projects a storage entity into its transport form.
// Scalars copy as-is, encoded nested values decode back into embedded
// maps and lists, links appear only when named by a LinkQuery and blobs
// only when named by a BlobQuery with Include. Linked entities are
// marshalled without further projections, so recursion depth is bounded
// by the caller's query, never by the graph.
func marshalEntity(tx *storage.Transaction, e *storage.Entity, environment string, linkQueries []domain.LinkQuery, blobQueries []domain.BlobQuery) (domain.Entity, error) {
	out := domain.Entity{
		Environment: environment,
		EntityType:  e.Type(),
		EntityID:    e.ID(),
		BlobNames:   e.BlobNames(),
		LinkNames:   e.LinkNames(),
	}

	for _, name := range e.PropertyNames() {
		value := e.Property(name)
		if name == domain.NamespaceProperty {
			if ns, ok := value.(string); ok {
				out.Namespace = ns
			}
			continue
		}
		if encoded, ok := value.(domain.EncodedValue); ok {
			decoded, err := codec.DecodeNested(encoded)
			if err != nil {
				return domain.Entity{}, err
			}
			value = decoded
		}
		out.Properties = append(out.Properties, domain.Property{Name: name, Value: value})
	}

	for _, lq := range linkQueries {
		for _, target := range e.LinkTargets(lq.LinkName) {
			if lq.TargetID != "" && target != lq.TargetID {
				continue
			}
			id, err := tx.ToEntityID(target)
			if err != nil {
				return domain.Entity{}, err
			}
			linked, err := tx.GetEntity(id)
			if err != nil {
				continue
			}
			nested, err := marshalEntity(tx, linked, environment, nil, nil)
			if err != nil {
				return domain.Entity{}, err
			}
			out.Links = append(out.Links, nested)
		}
	}

	for _, bq := range blobQueries {
		if !bq.Include {
			continue
		}
		rc, err := e.Blob(bq.BlobName)
		if err != nil {
			// Projecting an absent blob yields zero blobs, not an error.
			continue
		}
		out.Blobs = append(out.Blobs, domain.Blob{Name: bq.BlobName, Stream: rc})
	}

	return out, nil
}
