package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of the event loop.
type Metrics struct {
	EventsTotal       prometheus.Counter
	NotReadyTotal     prometheus.Counter
	FailedEventsTotal *prometheus.CounterVec
	DetUnitsTotal     prometheus.Counter
	ClustersTotal     prometheus.Counter
	SinkErrorsTotal   *prometheus.CounterVec
	EventDuration     prometheus.Histogram
	ClustersPerEvent  prometheus.Histogram
}

// NewMetrics creates the event loop metrics and registers them.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelreco_events_total",
			Help: "Total number of events processed by the cluster producer.",
		}),
		NotReadyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelreco_not_ready_events_total",
			Help: "Events skipped because the producer is not ready.",
		}),
		FailedEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelreco_failed_events_total",
			Help: "Events that failed, partitioned by reason.",
		}, []string{"reason"}),
		DetUnitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelreco_det_units_total",
			Help: "Detector units visited.",
		}),
		ClustersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelreco_clusters_total",
			Help: "Clusters produced.",
		}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelreco_sink_errors_total",
			Help: "Errors returned by output sinks.",
		}, []string{"sink"}),
		EventDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelreco_event_duration_seconds",
			Help:    "Time taken to cluster one event.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		}),
		ClustersPerEvent: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelreco_clusters_per_event",
			Help:    "Number of clusters produced per event.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.EventsTotal.Describe(ch)
	m.NotReadyTotal.Describe(ch)
	m.FailedEventsTotal.Describe(ch)
	m.DetUnitsTotal.Describe(ch)
	m.ClustersTotal.Describe(ch)
	m.SinkErrorsTotal.Describe(ch)
	m.EventDuration.Describe(ch)
	m.ClustersPerEvent.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.EventsTotal.Collect(ch)
	m.NotReadyTotal.Collect(ch)
	m.FailedEventsTotal.Collect(ch)
	m.DetUnitsTotal.Collect(ch)
	m.ClustersTotal.Collect(ch)
	m.SinkErrorsTotal.Collect(ch)
	m.EventDuration.Collect(ch)
	m.ClustersPerEvent.Collect(ch)
}
