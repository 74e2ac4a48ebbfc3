// Package monitor serves the cluster producer's status, the latest event's
// clusters, debug charts and Prometheus metrics over HTTP.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pixelreco/internal/pixel/producer"
	"github.com/banshee-data/pixelreco/internal/pixel/storage/sqlite"
)

// maxSizeSamples bounds the cluster sizes kept for the size histogram.
const maxSizeSamples = 10000

// snapshot is the most recent event handed to the server.
type snapshot struct {
	EventID int64
	Output  *producer.Output
	Report  producer.Report
	At      time.Time
}

// WebServer handles the HTTP interface for monitoring the producer.
// It is also a pipeline sink: every processed event replaces the snapshot
// served by the /api endpoints.
type WebServer struct {
	address  string
	producer *producer.Producer
	gatherer prometheus.Gatherer
	db       *sqlite.DB
	runs     *sqlite.RunManager
	geometry *sqlite.GeometryStore
	server   *http.Server

	mu     sync.RWMutex
	last   *snapshot
	events int
	sizes  []float64 // recent cluster sizes, oldest first
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Producer *producer.Producer
	Gatherer prometheus.Gatherer   // nil uses prometheus.DefaultGatherer
	DB       *sqlite.DB            // optional, enables /debug/tailsql/
	Runs     *sqlite.RunManager    // optional, reports the open run
	Geometry *sqlite.GeometryStore // optional, reports the cache size
}

// NewWebServer creates a web server. Routes are built immediately so the
// handler can be used without starting a listener.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address:  config.Address,
		producer: config.Producer,
		gatherer: config.Gatherer,
		db:       config.DB,
		runs:     config.Runs,
		geometry: config.Geometry,
	}
	if ws.gatherer == nil {
		ws.gatherer = prometheus.DefaultGatherer
	}

	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the server's routes.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/clusters", ws.handleClusters)
	mux.HandleFunc("/api/detunits", ws.handleDetUnits)
	mux.HandleFunc("/debug/charts/clusters", ws.handleClustersChart)
	mux.HandleFunc("/debug/plots/cluster-size.png", ws.handleClusterSizePlot)
	mux.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{}))

	debug := tsweb.Debugger(mux)
	debug.URL("/debug/charts/clusters", "Clusters per detector unit (last event)")
	debug.URL("/debug/plots/cluster-size.png", "Cluster size histogram")
	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(debug); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// WriteEvent records an event as the current snapshot. Outputs are never
// modified after the producer returns them, so they are kept by reference.
func (ws *WebServer) WriteEvent(_ context.Context, eventID int64, out *producer.Output, report producer.Report) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.last = &snapshot{EventID: eventID, Output: out, Report: report, At: time.Now()}
	ws.events++
	for _, c := range out.Values() {
		ws.sizes = append(ws.sizes, float64(c.Size()))
	}
	if over := len(ws.sizes) - maxSizeSamples; over > 0 {
		ws.sizes = append(ws.sizes[:0], ws.sizes[over:]...)
	}
	return nil
}

func (ws *WebServer) snapshot() (*snapshot, int) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.last, ws.events
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", ws.address, err)
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ln.Addr())
		errc <- ws.server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSON encoding error: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}
