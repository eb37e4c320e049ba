// Package search defines the boundary to the geo search indexer and an
// in-memory geohash implementation of it. The indexer only prefilters
// candidates; exact distance checks stay with the caller.
package search

import (
	"strings"
	"sync"

	"datagraph/internal/geo"
	"datagraph/pkg/domain"
)

// Indexer accelerates nearby lookups over geo-point properties. Index and
// Remove keep the index in step with committed writes; Nearby returns
// candidate entity ids sharing a geohash prefix with the query point at
// the precision implied by the radius.
type Indexer interface {
	Index(environment, entityType, entityID, property string, point domain.GeoPoint) error
	Remove(environment, entityID string) error
	Nearby(environment, entityType, property string, longitude, latitude, radius float64) ([]string, error)
}

type geoKey struct {
	environment string
	entityType  string
	property    string
}

// GeoIndex is the in-memory geohash-prefix indexer.
type GeoIndex struct {
	mu sync.RWMutex
	// hash per entity id, grouped by (environment, type, property)
	entries map[geoKey]map[string]string
}

// NewGeoIndex returns an empty index.
func NewGeoIndex() *GeoIndex {
	return &GeoIndex{entries: make(map[geoKey]map[string]string)}
}

func (g *GeoIndex) Index(environment, entityType, entityID, property string, point domain.GeoPoint) error {
	key := geoKey{environment: environment, entityType: entityType, property: property}
	g.mu.Lock()
	defer g.mu.Unlock()
	byID, ok := g.entries[key]
	if !ok {
		byID = make(map[string]string)
		g.entries[key] = byID
	}
	byID[entityID] = geo.Encode(point.Longitude, point.Latitude)
	return nil
}

func (g *GeoIndex) Remove(environment, entityID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, byID := range g.entries {
		if key.environment == environment {
			delete(byID, entityID)
		}
	}
	return nil
}

func (g *GeoIndex) Nearby(environment, entityType, property string, longitude, latitude, radius float64) ([]string, error) {
	precision := geo.PrecisionForRadius(radius)
	prefix := geo.Encode(longitude, latitude)[:precision]
	key := geoKey{environment: environment, entityType: entityType, property: property}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for id, hash := range g.entries[key] {
		if strings.HasPrefix(hash, prefix) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
