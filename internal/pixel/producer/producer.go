// Package producer runs the per-event clustering step: it walks the
// detector units of an event, resolves each unit's geometry and
// conditions, invokes the configured strategy and packs the non-empty
// results into a fresh output collection.
package producer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/calib"
	"github.com/banshee-data/pixelreco/internal/pixel/clusterizer"
	"github.com/banshee-data/pixelreco/internal/pixel/detset"
	"github.com/banshee-data/pixelreco/internal/pixel/geometry"
	"github.com/banshee-data/pixelreco/internal/timeutil"
)

// Input and Output are the event-scoped collections Run consumes and produces.
type (
	Input  = detset.Collection[pixel.DetUnitID, pixel.Digi]
	Output = detset.Collection[pixel.DetUnitID, pixel.Cluster]
)

// Event is one detection event's input.
type Event struct {
	ID    int64
	Digis *Input
}

// Options configures a Producer.
type Options struct {
	Mode   string
	Params clusterizer.Params

	// Registry to look Mode up in; nil uses clusterizer.Default.
	Registry *clusterizer.Registry
	// Conditions supplies noise and bad channels; nil uses the placeholder.
	Conditions calib.Source
	// Workers > 1 clusters detector units concurrently.
	Workers int
	Clock   timeutil.Clock
}

// Producer turns an event's digis into clusters. The readiness gate and the
// strategy are fixed at construction; nothing else is kept between events.
type Producer struct {
	mode       string
	gate       Gate
	configErr  error
	strategy   clusterizer.Clusterizer
	conditions calib.Source
	workers    int
	clock      timeutil.Clock
}

// New builds a producer. An unknown mode does not fail construction: the
// producer comes up NotReady, logs the configuration error once and keeps
// it in ConfigErr.
func New(opts Options) *Producer {
	p := &Producer{
		mode:       opts.Mode,
		gate:       GateUninitialized,
		conditions: opts.Conditions,
		workers:    max(opts.Workers, 1),
		clock:      opts.Clock,
	}
	if p.conditions == nil {
		p.conditions = calib.DefaultPlaceholder()
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}

	reg := opts.Registry
	if reg == nil {
		reg = clusterizer.Default
	}
	strategy, err := reg.New(opts.Mode, opts.Params)
	if err != nil {
		p.gate = GateNotReady
		p.configErr = err
		pixel.Opsf("producer: %v", err)
		return p
	}
	p.strategy = strategy
	p.gate = GateReady
	pixel.Diagf("producer: mode %s ready (workers=%d)", p.mode, p.workers)
	return p
}

// Mode returns the configured mode name.
func (p *Producer) Mode() string { return p.mode }

// State returns the readiness gate.
func (p *Producer) State() Gate { return p.gate }

// Ready reports whether events will be clustered.
func (p *Producer) Ready() bool { return p.gate == GateReady }

// ConfigErr returns the configuration error that left the producer NotReady.
func (p *Producer) ConfigErr() error { return p.configErr }

// Params returns the strategy thresholds; zero when NotReady.
func (p *Producer) Params() clusterizer.Params {
	if p.strategy == nil {
		return clusterizer.Params{}
	}
	return p.strategy.GetParams()
}

// Run clusters one event. See RunContext.
func (p *Producer) Run(input *Input, resolver geometry.Resolver) (*Output, Report, error) {
	return p.RunContext(context.Background(), input, resolver)
}

// RunContext clusters one event.
//
// Units are visited in the input's key order and a unit appears in the
// output only when the strategy returned clusters for it. A unit without
// geometry fails the whole event with a *GeometryMismatchError and a nil
// output. A NotReady producer returns an empty output and a nil error
// without consulting the resolver.
func (p *Producer) RunContext(ctx context.Context, input *Input, resolver geometry.Resolver) (*Output, Report, error) {
	report := Report{Mode: p.mode}
	start := p.clock.Now()

	if p.gate != GateReady {
		report.NotReady = true
		pixel.Opsf("producer: %s not ready, skipping event: %v", p.mode, p.configErr)
		return detset.New[pixel.DetUnitID, pixel.Cluster](0, 0), report, nil
	}
	if resolver == nil {
		return nil, report, errors.New("producer: nil geometry resolver")
	}

	var (
		out *Output
		err error
	)
	if p.workers > 1 && input.Len() > 1 {
		out, err = p.runParallel(ctx, input, resolver, &report)
	} else {
		out, err = p.runSequential(ctx, input, resolver, &report)
	}
	if err != nil {
		return nil, report, err
	}

	report.Clusters = out.Size()
	report.addSizeStats(out.Values())
	report.Elapsed = p.clock.Since(start)
	pixel.Diagf("%s", report)
	return out, report, nil
}

// unit is one detector unit's prepared work.
type unit struct {
	id    pixel.DetUnitID
	digis []pixel.Digi
	geom  *pixel.Geometry
	noise pixel.Noise
	bad   pixel.BadChannels
}

func (p *Producer) prepare(resolver geometry.Resolver, id pixel.DetUnitID, digis []pixel.Digi) (unit, error) {
	geom, err := resolver.Resolve(id)
	if err != nil {
		if errors.Is(err, geometry.ErrNotFound) {
			pixel.Opsf("producer: no geometry for det unit %d", id)
			return unit{}, &GeometryMismatchError{DetUnitID: id, Err: err}
		}
		return unit{}, fmt.Errorf("resolve geometry for det unit %d: %w", id, err)
	}
	if geom == nil {
		pixel.Opsf("producer: no geometry for det unit %d", id)
		return unit{}, &GeometryMismatchError{DetUnitID: id, Err: geometry.ErrNotFound}
	}
	noise, bad, err := p.conditions.Conditions(id, geom)
	if err != nil {
		return unit{}, fmt.Errorf("conditions for det unit %d: %w", id, err)
	}
	return unit{id: id, digis: digis, geom: geom, noise: noise, bad: bad}, nil
}

func (p *Producer) clusterize(u unit) []pixel.Cluster {
	clusters := p.strategy.ClusterizeDetUnit(u.digis, u.id, u.geom, u.noise, u.bad)
	pixel.Tracef("det unit %d: %d digis -> %d clusters", u.id, len(u.digis), len(clusters))
	return clusters
}

func (p *Producer) runSequential(ctx context.Context, input *Input, resolver geometry.Resolver, report *Report) (*Output, error) {
	out := detset.New[pixel.DetUnitID, pixel.Cluster](input.Len(), input.Size())
	for id, digis := range input.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u, err := p.prepare(resolver, id, digis)
		if err != nil {
			return nil, err
		}
		report.DetUnits++
		report.Digis += len(digis)

		clusters := p.clusterize(u)
		if len(clusters) == 0 {
			continue
		}
		if err := out.Put(id, clusters); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// runParallel resolves every unit up front, in key order, so a mismatch
// is reported for the same unit as in sequential mode. Only the strategy
// runs concurrently; results are written by this goroutine in key order.
func (p *Producer) runParallel(ctx context.Context, input *Input, resolver geometry.Resolver, report *Report) (*Output, error) {
	units := make([]unit, 0, input.Len())
	for id, digis := range input.All() {
		u, err := p.prepare(resolver, id, digis)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	results := make([][]pixel.Cluster, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.clusterize(units[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := detset.New[pixel.DetUnitID, pixel.Cluster](len(units), input.Size())
	for i, u := range units {
		report.DetUnits++
		report.Digis += len(u.digis)
		if len(results[i]) == 0 {
			continue
		}
		if err := out.Put(u.id, results[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
