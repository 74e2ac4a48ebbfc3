package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/banshee-data/pixelreco/internal/pixel/geometry"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
	"github.com/banshee-data/pixelreco/internal/pixel/storage/sqlite"
)

// Source yields events until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (producer.Event, error)
}

// Sink receives each successfully processed event. Sinks must not retain
// or modify out beyond the call unless they treat it as read-only.
type Sink interface {
	WriteEvent(ctx context.Context, eventID int64, out *producer.Output, report producer.Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, eventID int64, out *producer.Output, report producer.Report) error

// WriteEvent implements Sink.
func (f SinkFunc) WriteEvent(ctx context.Context, eventID int64, out *producer.Output, report producer.Report) error {
	return f(ctx, eventID, out, report)
}

// Config holds the dependencies of a Pipeline.
type Config struct {
	Producer *producer.Producer
	Source   Source
	Resolver geometry.Resolver
	Sinks    []Sink

	// Runs records the run when set; RunParams describes it.
	Runs      *sqlite.RunManager
	RunParams sqlite.RunParams

	Metrics     *Metrics // optional
	StopOnFatal bool
}

// Summary totals a call to Run.
type Summary struct {
	RunID        string
	Events       int
	FailedEvents int
	NotReady     int
	DetUnits     int
	Clusters     int
}

// Pipeline runs the producer over a Source.
type Pipeline struct {
	cfg Config
}

// New validates cfg and returns a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Producer == nil {
		return nil, errors.New("pipeline: producer is required")
	}
	if isNilInterface(cfg.Source) {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Producer.Ready() && isNilInterface(cfg.Resolver) {
		return nil, errors.New("pipeline: geometry resolver is required")
	}
	sinks := cfg.Sinks[:0:0]
	for _, s := range cfg.Sinks {
		if !isNilInterface(s) {
			sinks = append(sinks, s)
		}
	}
	cfg.Sinks = sinks
	return &Pipeline{cfg: cfg}, nil
}

// isNilInterface checks if an interface value is nil or holds a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Run processes events until the source is exhausted, ctx is cancelled,
// or a fatal event error occurs with StopOnFatal set.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	cfg := p.cfg

	if cfg.Runs != nil {
		runID, err := cfg.Runs.StartRun(ctx, cfg.RunParams)
		if err != nil {
			return sum, err
		}
		sum.RunID = runID
	}
	diagf("run started: mode=%s state=%s stop_on_fatal=%v", cfg.Producer.Mode(), cfg.Producer.State(), cfg.StopOnFatal)

	fail := func(err error) (Summary, error) {
		if cfg.Runs != nil {
			// The run keeps its error even when ctx is already cancelled.
			if ferr := cfg.Runs.FailRun(context.WithoutCancel(ctx), err.Error()); ferr != nil {
				opsf("failed to mark run %s failed: %v", sum.RunID, ferr)
			}
		}
		opsf("run stopped after %d events: %v", sum.Events, err)
		return sum, err
	}

	for {
		ev, err := cfg.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read event: %w", err))
		}

		if err := p.processEvent(ctx, ev, &sum); err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if cfg.StopOnFatal {
				return fail(err)
			}
		}
	}

	if cfg.Runs != nil {
		if err := cfg.Runs.CompleteRun(ctx); err != nil {
			return sum, err
		}
	}
	diagf("run finished: %d events (%d failed, %d not ready), %d clusters in %d detector units",
		sum.Events, sum.FailedEvents, sum.NotReady, sum.Clusters, sum.DetUnits)
	return sum, nil
}

// processEvent runs the producer on one event and hands the result to
// every sink. A returned error is fatal for the event.
func (p *Pipeline) processEvent(ctx context.Context, ev producer.Event, sum *Summary) error {
	cfg := p.cfg

	out, report, err := cfg.Producer.RunContext(ctx, ev.Digis, cfg.Resolver)
	if err != nil {
		sum.FailedEvents++
		if cfg.Runs != nil {
			cfg.Runs.RecordFailedEvent()
		}
		if cfg.Metrics != nil {
			cfg.Metrics.FailedEventsTotal.WithLabelValues(failureReason(err)).Inc()
		}
		opsf("event %d dropped: %v", ev.ID, err)
		return fmt.Errorf("event %d: %w", ev.ID, err)
	}

	sum.Events++
	sum.DetUnits += report.DetUnits
	sum.Clusters += report.Clusters
	if report.NotReady {
		sum.NotReady++
	}
	if cfg.Runs != nil {
		cfg.Runs.RecordEvent(report.DetUnits, report.Clusters, report.NotReady)
	}
	if m := cfg.Metrics; m != nil {
		m.EventsTotal.Inc()
		if report.NotReady {
			m.NotReadyTotal.Inc()
		}
		m.DetUnitsTotal.Add(float64(report.DetUnits))
		m.ClustersTotal.Add(float64(report.Clusters))
		m.EventDuration.Observe(report.Elapsed.Seconds())
		m.ClustersPerEvent.Observe(float64(report.Clusters))
	}
	tracef("event %d: %s (%s)", ev.ID, report, report.Elapsed)

	var sinkErr error
	for _, s := range cfg.Sinks {
		if err := s.WriteEvent(ctx, ev.ID, out, report); err != nil {
			name := fmt.Sprintf("%T", s)
			if cfg.Metrics != nil {
				cfg.Metrics.SinkErrorsTotal.WithLabelValues(name).Inc()
			}
			opsf("event %d: sink %s: %v", ev.ID, name, err)
			sinkErr = errors.Join(sinkErr, fmt.Errorf("sink %s: %w", name, err))
		}
	}
	if sinkErr != nil {
		return fmt.Errorf("event %d: %w", ev.ID, sinkErr)
	}
	return nil
}

func failureReason(err error) string {
	var gm *producer.GeometryMismatchError
	switch {
	case errors.As(err, &gm):
		return "geometry_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
