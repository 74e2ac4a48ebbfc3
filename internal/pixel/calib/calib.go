// Package calib supplies per-unit noise and bad-channel inputs to the
// clustering strategy.
package calib

import (
	"sync"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// Placeholder defaults match the fixed inputs the producer has always used:
// a uniform noise vector and no masked channels.
const (
	DefaultNoiseChannels = 768
	DefaultNoiseValue    = 2.0
)

// Source provides the conditions for one detector unit. The returned
// slices are shared and must be treated as read-only.
type Source interface {
	Conditions(id pixel.DetUnitID, geom *pixel.Geometry) (pixel.Noise, pixel.BadChannels, error)
}

// Placeholder returns the same uniform noise vector and an empty
// bad-channel list for every unit.
type Placeholder struct {
	noise pixel.Noise
}

// NewPlaceholder builds the shared noise vector once.
// Non-positive channel counts fall back to DefaultNoiseChannels.
func NewPlaceholder(channels int, value float32) *Placeholder {
	if channels <= 0 {
		channels = DefaultNoiseChannels
	}
	noise := make(pixel.Noise, channels)
	for i := range noise {
		noise[i] = value
	}
	return &Placeholder{noise: noise}
}

// DefaultPlaceholder returns the 768 x 2.0 placeholder.
func DefaultPlaceholder() *Placeholder {
	return NewPlaceholder(DefaultNoiseChannels, DefaultNoiseValue)
}

// Conditions implements Source.
func (p *Placeholder) Conditions(pixel.DetUnitID, *pixel.Geometry) (pixel.Noise, pixel.BadChannels, error) {
	return p.noise, nil, nil
}

// Table holds per-unit overrides and defers to a fallback Source for
// units it does not know. It is safe for concurrent use.
type Table struct {
	mu       sync.RWMutex
	noise    map[pixel.DetUnitID]pixel.Noise
	bad      map[pixel.DetUnitID]pixel.BadChannels
	fallback Source
}

// NewTable returns an empty table. A nil fallback uses DefaultPlaceholder.
func NewTable(fallback Source) *Table {
	if fallback == nil {
		fallback = DefaultPlaceholder()
	}
	return &Table{
		noise:    make(map[pixel.DetUnitID]pixel.Noise),
		bad:      make(map[pixel.DetUnitID]pixel.BadChannels),
		fallback: fallback,
	}
}

// SetNoise overrides the noise vector of a unit.
func (t *Table) SetNoise(id pixel.DetUnitID, noise pixel.Noise) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noise[id] = noise
}

// SetBadChannels overrides the masked channels of a unit.
func (t *Table) SetBadChannels(id pixel.DetUnitID, chans ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bad[id] = pixel.NewBadChannels(chans...)
}

// Conditions implements Source. Noise and bad channels are overridden
// independently.
func (t *Table) Conditions(id pixel.DetUnitID, geom *pixel.Geometry) (pixel.Noise, pixel.BadChannels, error) {
	t.mu.RLock()
	noise, haveNoise := t.noise[id]
	bad, haveBad := t.bad[id]
	t.mu.RUnlock()

	if haveNoise && haveBad {
		return noise, bad, nil
	}
	fbNoise, fbBad, err := t.fallback.Conditions(id, geom)
	if err != nil {
		return nil, nil, err
	}
	if !haveNoise {
		noise = fbNoise
	}
	if !haveBad {
		bad = fbBad
	}
	return noise, bad, nil
}
