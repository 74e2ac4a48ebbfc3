// Package geometry resolves detector-unit identifiers to geometry
// descriptors.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// ErrNotFound is returned when a detector unit has no geometry.
var ErrNotFound = errors.New("geometry not found")

// Resolver looks up the geometry of a detector unit. Implementations
// return an error wrapping ErrNotFound for unknown units. The returned
// descriptor is shared and must be treated as read-only.
type Resolver interface {
	Resolve(id pixel.DetUnitID) (*pixel.Geometry, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id pixel.DetUnitID) (*pixel.Geometry, error)

// Resolve calls f(id).
func (f ResolverFunc) Resolve(id pixel.DetUnitID) (*pixel.Geometry, error) { return f(id) }

// MapResolver is an in-memory Resolver. It is safe for concurrent use.
type MapResolver struct {
	mu    sync.RWMutex
	units map[pixel.DetUnitID]*pixel.Geometry
}

// NewMapResolver returns a resolver holding the given descriptors.
// Each descriptor is validated; the first invalid one is reported.
func NewMapResolver(geoms ...*pixel.Geometry) (*MapResolver, error) {
	m := &MapResolver{units: make(map[pixel.DetUnitID]*pixel.Geometry, len(geoms))}
	for _, g := range geoms {
		if err := m.Add(g); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add validates g and stores a copy of it, replacing any previous entry.
func (m *MapResolver) Add(g *pixel.Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	cp := *g
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.units == nil {
		m.units = make(map[pixel.DetUnitID]*pixel.Geometry)
	}
	m.units[g.DetUnitID] = &cp
	return nil
}

// Resolve implements Resolver.
func (m *MapResolver) Resolve(id pixel.DetUnitID) (*pixel.Geometry, error) {
	m.mu.RLock()
	g, ok := m.units[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("det unit %d: %w", id, ErrNotFound)
	}
	return g, nil
}

// IDs returns the known detector units in ascending order.
func (m *MapResolver) IDs() []pixel.DetUnitID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]pixel.DetUnitID, 0, len(m.units))
	for id := range m.units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns the stored descriptors in ascending id order.
func (m *MapResolver) All() []*pixel.Geometry {
	ids := m.IDs()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*pixel.Geometry, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.units[id])
	}
	return out
}

// Len returns the number of known detector units.
func (m *MapResolver) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.units)
}

// LoadJSON reads a JSON array of geometry descriptors.
func LoadJSON(r io.Reader) (*MapResolver, error) {
	var geoms []*pixel.Geometry
	if err := json.NewDecoder(r).Decode(&geoms); err != nil {
		return nil, fmt.Errorf("failed to parse geometry JSON: %w", err)
	}
	m, err := NewMapResolver(geoms...)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	return m, nil
}

// WriteJSON writes the resolver's descriptors as a JSON array.
func (m *MapResolver) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.All())
}
