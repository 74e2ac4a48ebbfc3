// Package synthetic generates reproducible pixel events and the geometry
// that goes with them.
package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/detset"
	"github.com/banshee-data/pixelreco/internal/pixel/geometry"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
)

// Config controls the shape of generated events.
type Config struct {
	Seed uint64

	DetUnits    int             // number of detector units
	FirstUnit   pixel.DetUnitID // id of the first unit; ids are consecutive
	Rows, Cols  int
	Pitch       float64 // cm, both directions
	LayerRadius float64 // cm, units sit on a ring of this radius

	MaxClusters  int // per unit per event, uniform in [0, MaxClusters]
	MaxSpread    int // cluster pixels lie within this many rows/cols of the seed
	SignalADC    uint16
	NoiseHits    int // low-amplitude hits per unit per event
	NoiseMaxADC  uint16
	MissingUnits int // units that appear in events but have no geometry
}

// DefaultConfig returns a small barrel-like layer.
func DefaultConfig() Config {
	return Config{
		Seed:        1,
		DetUnits:    16,
		FirstUnit:   1000,
		Rows:        160,
		Cols:        416,
		Pitch:       0.01,
		LayerRadius: 4.4,
		MaxClusters: 4,
		MaxSpread:   1,
		SignalADC:   120,
		NoiseHits:   3,
		NoiseMaxADC: 6,
	}
}

// Generator produces events from a seeded source. Two generators built
// from the same Config produce identical sequences.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	next int64
}

// NewGenerator returns a generator for cfg. Non-positive sizes fall back
// to DefaultConfig's values.
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.DetUnits <= 0 {
		cfg.DetUnits = def.DetUnits
	}
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	if cfg.Cols <= 0 {
		cfg.Cols = def.Cols
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = def.Pitch
	}
	if cfg.SignalADC == 0 {
		cfg.SignalADC = def.SignalADC
	}
	if cfg.MaxSpread < 0 {
		cfg.MaxSpread = 0
	}
	if cfg.MissingUnits > cfg.DetUnits {
		cfg.MissingUnits = cfg.DetUnits
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		next: 1,
	}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// UnitIDs returns every generated unit id in ascending order.
func (g *Generator) UnitIDs() []pixel.DetUnitID {
	ids := make([]pixel.DetUnitID, g.cfg.DetUnits)
	for i := range ids {
		ids[i] = g.cfg.FirstUnit + pixel.DetUnitID(i)
	}
	return ids
}

// Geometry returns descriptors for all units except the trailing
// MissingUnits. Units are rotated about z onto a ring.
func (g *Generator) Geometry() []*pixel.Geometry {
	ids := g.UnitIDs()
	n := len(ids) - g.cfg.MissingUnits
	out := make([]*pixel.Geometry, 0, n)
	for i := 0; i < n; i++ {
		phi := 2 * math.Pi * float64(i) / float64(len(ids))
		c, s := math.Cos(phi), math.Sin(phi)
		r := g.cfg.LayerRadius
		out = append(out, &pixel.Geometry{
			DetUnitID: ids[i],
			Rows:      g.cfg.Rows,
			Cols:      g.cfg.Cols,
			PitchX:    g.cfg.Pitch,
			PitchY:    g.cfg.Pitch,
			Thickness: 0.0285,
			T: [16]float64{
				c, -s, 0, r * c,
				s, c, 0, r * s,
				0, 0, 1, 0,
				0, 0, 0, 1,
			},
		})
	}
	return out
}

// Resolver returns an in-memory resolver over Geometry.
func (g *Generator) Resolver() (*geometry.MapResolver, error) {
	return geometry.NewMapResolver(g.Geometry()...)
}

// Next returns the next event. Every unit is present in the event, with
// or without digis.
func (g *Generator) Next() producer.Event {
	b := detset.NewBuilder[pixel.DetUnitID, pixel.Digi]()
	for _, id := range g.UnitIDs() {
		b.Touch(id)
		for range g.rng.IntN(g.cfg.MaxClusters + 1) {
			g.addCluster(b, id)
		}
		for range g.cfg.NoiseHits {
			b.Add(id, pixel.Digi{
				Row: uint16(g.rng.IntN(g.cfg.Rows)),
				Col: uint16(g.rng.IntN(g.cfg.Cols)),
				ADC: uint16(g.rng.IntN(int(g.cfg.NoiseMaxADC) + 1)),
			})
		}
	}
	ev := producer.Event{ID: g.next, Digis: b.Build()}
	g.next++
	return ev
}

func (g *Generator) addCluster(b *detset.Builder[pixel.DetUnitID, pixel.Digi], id pixel.DetUnitID) {
	row := g.rng.IntN(g.cfg.Rows)
	col := g.rng.IntN(g.cfg.Cols)
	b.Add(id, pixel.Digi{Row: uint16(row), Col: uint16(col), ADC: g.cfg.SignalADC})

	spread := g.cfg.MaxSpread
	if spread == 0 {
		return
	}
	for range g.rng.IntN(2*spread + 1) {
		r := row + g.rng.IntN(2*spread+1) - spread
		c := col + g.rng.IntN(2*spread+1) - spread
		if r < 0 || c < 0 || r >= g.cfg.Rows || c >= g.cfg.Cols {
			continue
		}
		b.Add(id, pixel.Digi{Row: uint16(r), Col: uint16(c), ADC: g.cfg.SignalADC / 2})
	}
}
