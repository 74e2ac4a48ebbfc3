package synthetic

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/clusterizer"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
)

func flatten(in *producer.Input) map[pixel.DetUnitID][]pixel.Digi {
	out := make(map[pixel.DetUnitID][]pixel.Digi, in.Len())
	for id, digis := range in.All() {
		out[id] = append([]pixel.Digi(nil), digis...)
	}
	return out
}

func TestSameSeedSameEvents(t *testing.T) {
	a := NewGenerator(DefaultConfig())
	b := NewGenerator(DefaultConfig())
	for i := 0; i < 5; i++ {
		ea, eb := a.Next(), b.Next()
		assert.Equal(t, ea.ID, eb.ID)
		if diff := cmp.Diff(flatten(ea.Digis), flatten(eb.Digis)); diff != "" {
			t.Fatalf("event %d differs (-a +b):\n%s", i, diff)
		}
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	cfg := DefaultConfig()
	a := NewGenerator(cfg)
	cfg.Seed = 2
	b := NewGenerator(cfg)
	assert.NotEqual(t, flatten(a.Next().Digis), flatten(b.Next().Digis))
}

func TestEventsCoverEveryUnit(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	ev := g.Next()
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, g.UnitIDs(), ev.Digis.Keys())
	assert.Equal(t, int64(2), g.Next().ID)

	for id, digis := range ev.Digis.All() {
		for _, d := range digis {
			assert.Less(t, int(d.Row), g.Config().Rows, "unit %d", id)
			assert.Less(t, int(d.Col), g.Config().Cols, "unit %d", id)
		}
	}
}

func TestGeometryIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MissingUnits = 2
	g := NewGenerator(cfg)

	geoms := g.Geometry()
	require.Len(t, geoms, cfg.DetUnits-2)
	for _, geom := range geoms {
		assert.NoError(t, geom.Validate())
	}

	res, err := g.Resolver()
	require.NoError(t, err)
	assert.Equal(t, cfg.DetUnits-2, res.Len())
}

func TestDefaultsFillZeroConfig(t *testing.T) {
	g := NewGenerator(Config{MaxSpread: -3, MissingUnits: 100})
	got := g.Config()
	assert.Equal(t, DefaultConfig().DetUnits, got.DetUnits)
	assert.Equal(t, DefaultConfig().Rows, got.Rows)
	assert.Zero(t, got.MaxSpread)
	assert.Equal(t, got.DetUnits, got.MissingUnits)
	assert.Empty(t, g.Geometry())
}

func TestGeneratedEventsCluster(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	res, err := g.Resolver()
	require.NoError(t, err)
	p := producer.New(producer.Options{Mode: clusterizer.ThresholdName, Params: clusterizer.DefaultParams()})

	total := 0
	for i := 0; i < 3; i++ {
		out, rep, err := p.Run(g.Next().Digis, res)
		require.NoError(t, err)
		assert.Equal(t, g.Config().DetUnits, rep.DetUnits)
		for _, c := range out.Values() {
			// Noise hits never reach the seed threshold.
			assert.GreaterOrEqual(t, c.Charge, float32(g.Config().SignalADC/2))
		}
		total += out.Size()
	}
	assert.Positive(t, total)
}

func TestMissingGeometryFailsEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MissingUnits = 1
	g := NewGenerator(cfg)
	res, err := g.Resolver()
	require.NoError(t, err)
	p := producer.New(producer.Options{Mode: clusterizer.ThresholdName, Params: clusterizer.DefaultParams()})

	_, _, err = p.Run(g.Next().Digis, res)
	var mismatch *producer.GeometryMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, g.UnitIDs()[cfg.DetUnits-1], mismatch.DetUnitID)
}
