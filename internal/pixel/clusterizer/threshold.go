package clusterizer

import (
	"math"
	"slices"
	"sync"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// ThresholdName is the registered name of ThresholdClusterizer.
const ThresholdName = "PixelThresholdClusterizer"

// ThresholdClusterizer implements Clusterizer with noise-scaled thresholds.
//
// Pixels at or above the channel threshold are candidates. Clusters grow
// from seeds, visited in ascending (row, col) order, over 8-connected
// candidates. A cluster is kept when its charge reaches the cluster
// threshold times the member noise summed in quadrature.
//
// The output is deterministic: clusters come out in seed order and each
// cluster's pixels are sorted row-major.
type ThresholdClusterizer struct {
	params Params
	pool   sync.Pool // *workspace
}

// NewThresholdClusterizer creates a threshold clusterizer.
func NewThresholdClusterizer(p Params) (*ThresholdClusterizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &ThresholdClusterizer{params: p}
	c.pool.New = func() any { return &workspace{cells: make(map[int]cell)} }
	return c, nil
}

// NewDefaultThresholdClusterizer creates a clusterizer with DefaultParams.
func NewDefaultThresholdClusterizer() *ThresholdClusterizer {
	c, _ := NewThresholdClusterizer(DefaultParams())
	return c
}

// Name implements Clusterizer.
func (c *ThresholdClusterizer) Name() string { return ThresholdName }

// GetParams returns the current clustering parameters.
func (c *ThresholdClusterizer) GetParams() Params { return c.params }

type cell struct {
	adc   uint16
	noise float32
}

type coord struct{ row, col int }

// workspace is the per-call scratch state; pooled so concurrent calls do
// not share it.
type workspace struct {
	cells map[int]cell // channel -> candidate, removed once clustered
	seeds []coord
	queue []coord
}

func (w *workspace) reset() {
	clear(w.cells)
	w.seeds = w.seeds[:0]
	w.queue = w.queue[:0]
}

// ClusterizeDetUnit implements Clusterizer. Digis outside the matrix, on
// masked channels or on channels with non-positive noise are ignored. A
// repeated (row, col) keeps the last digi.
func (c *ThresholdClusterizer) ClusterizeDetUnit(digis []pixel.Digi, id pixel.DetUnitID, geom *pixel.Geometry,
	noise pixel.Noise, bad pixel.BadChannels) []pixel.Cluster {
	if len(digis) == 0 || geom == nil {
		return nil
	}

	ws := c.pool.Get().(*workspace)
	defer func() {
		ws.reset()
		c.pool.Put(ws)
	}()

	for _, d := range digis {
		row, col := int(d.Row), int(d.Col)
		ch := geom.Channel(row, col)
		if ch < 0 || bad.Contains(ch) {
			continue
		}
		n := noise.At(ch)
		if n <= 0 {
			// Dead channel: no threshold can be formed.
			continue
		}
		adc := float64(d.ADC)
		if adc < c.params.ChannelThreshold*float64(n) {
			delete(ws.cells, ch)
			continue
		}
		ws.cells[ch] = cell{adc: d.ADC, noise: n}
		if adc >= c.params.SeedThreshold*float64(n) {
			ws.seeds = append(ws.seeds, coord{row, col})
		}
	}
	if len(ws.seeds) == 0 {
		return nil
	}

	slices.SortFunc(ws.seeds, func(a, b coord) int {
		if a.row != b.row {
			return a.row - b.row
		}
		return a.col - b.col
	})

	var clusters []pixel.Cluster
	for _, s := range ws.seeds {
		seedCh := geom.Channel(s.row, s.col)
		seed, ok := ws.cells[seedCh]
		if !ok {
			// Already absorbed by an earlier cluster.
			continue
		}
		// A later sub-threshold digi on the same channel may have replaced it.
		if float64(seed.adc) < c.params.SeedThreshold*float64(seed.noise) {
			continue
		}
		pixels, noiseSq := c.grow(ws, geom, s)

		var charge float64
		for _, p := range pixels {
			charge += float64(p.ADC)
		}
		if charge < c.params.ClusterThreshold*math.Sqrt(noiseSq) {
			continue
		}
		clusters = append(clusters, newCluster(id, geom, pixels, charge))
	}
	return clusters
}

// grow collects the 8-connected candidates reachable from seed and
// removes them from the workspace.
func (c *ThresholdClusterizer) grow(ws *workspace, geom *pixel.Geometry, seed coord) ([]pixel.Pixel, float64) {
	var pixels []pixel.Pixel
	var noiseSq float64

	take := func(p coord) {
		ch := geom.Channel(p.row, p.col)
		if ch < 0 {
			return
		}
		cl, ok := ws.cells[ch]
		if !ok {
			return
		}
		delete(ws.cells, ch)
		pixels = append(pixels, pixel.Pixel{Row: uint16(p.row), Col: uint16(p.col), ADC: cl.adc})
		noiseSq += float64(cl.noise) * float64(cl.noise)
		ws.queue = append(ws.queue, p)
	}

	ws.queue = ws.queue[:0]
	take(seed)
	for i := 0; i < len(ws.queue); i++ {
		p := ws.queue[i]
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				take(coord{p.row + dr, p.col + dc})
			}
		}
	}

	slices.SortFunc(pixels, func(a, b pixel.Pixel) int {
		if a.Row != b.Row {
			return int(a.Row) - int(b.Row)
		}
		return int(a.Col) - int(b.Col)
	})
	return pixels, noiseSq
}

func newCluster(id pixel.DetUnitID, geom *pixel.Geometry, pixels []pixel.Pixel, charge float64) pixel.Cluster {
	cl := pixel.Cluster{
		DetUnitID: id,
		Pixels:    pixels,
		Charge:    float32(charge),
		MinRow:    math.MaxUint16,
		MinCol:    math.MaxUint16,
	}

	var sumX, sumY float64
	for _, p := range pixels {
		cl.MinRow = min(cl.MinRow, p.Row)
		cl.MaxRow = max(cl.MaxRow, p.Row)
		cl.MinCol = min(cl.MinCol, p.Col)
		cl.MaxCol = max(cl.MaxCol, p.Col)
		w := float64(p.ADC)
		sumX += w * (float64(p.Row) + 0.5)
		sumY += w * (float64(p.Col) + 0.5)
	}

	var x, y float64
	if charge > 0 {
		x, y = sumX/charge, sumY/charge
	} else {
		// All-zero amplitudes: fall back to the bounding box centre.
		x = (float64(cl.MinRow) + float64(cl.MaxRow) + 1) / 2
		y = (float64(cl.MinCol) + float64(cl.MaxCol) + 1) / 2
	}
	cl.X, cl.Y = float32(x), float32(y)
	cl.GlobalX, cl.GlobalY, cl.GlobalZ = geom.GlobalPosition(x, y)
	return cl
}

// Verify at compile time that *ThresholdClusterizer implements Clusterizer.
var _ Clusterizer = (*ThresholdClusterizer)(nil)
