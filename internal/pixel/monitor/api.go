package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/version"
)

type reportJSON struct {
	EventID           int64   `json:"event_id"`
	Mode              string  `json:"mode"`
	NotReady          bool    `json:"not_ready"`
	DetUnits          int     `json:"det_units"`
	Digis             int     `json:"digis"`
	Clusters          int     `json:"clusters"`
	MeanClusterSize   float64 `json:"mean_cluster_size"`
	StdDevClusterSize float64 `json:"stddev_cluster_size"`
	MaxClusterSize    int     `json:"max_cluster_size"`
	ElapsedMs         float64 `json:"elapsed_ms"`
	Summary           string  `json:"summary"`
	At                string  `json:"at"`
}

type statusJSON struct {
	Version         string      `json:"version"`
	GitSHA          string      `json:"git_sha"`
	BuildTime       string      `json:"build_time"`
	Mode            string      `json:"mode"`
	State           string      `json:"state"`
	Ready           bool        `json:"ready"`
	ConfigError     string      `json:"config_error,omitempty"`
	RunID           string      `json:"run_id,omitempty"`
	RunActive       bool        `json:"run_active"`
	GeometryCached  *int        `json:"geometry_cached_units,omitempty"`
	EventsProcessed int         `json:"events_processed"`
	LastEvent       *reportJSON `json:"last_event,omitempty"`
}

// handleStatus reports the build, the readiness gate and the last event.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	last, events := ws.snapshot()
	st := statusJSON{
		Version:         version.Version,
		GitSHA:          version.GitSHA,
		BuildTime:       version.BuildTime,
		EventsProcessed: events,
	}
	if ws.producer != nil {
		st.Mode = ws.producer.Mode()
		st.State = ws.producer.State().String()
		st.Ready = ws.producer.Ready()
		if err := ws.producer.ConfigErr(); err != nil {
			st.ConfigError = err.Error()
		}
	}
	if ws.runs != nil {
		st.RunID = ws.runs.RunID()
		st.RunActive = ws.runs.IsRunActive()
	}
	if ws.geometry != nil {
		n := ws.geometry.CachedUnits()
		st.GeometryCached = &n
	}
	if last != nil {
		rep := last.Report
		st.LastEvent = &reportJSON{
			EventID:           last.EventID,
			Mode:              rep.Mode,
			NotReady:          rep.NotReady,
			DetUnits:          rep.DetUnits,
			Digis:             rep.Digis,
			Clusters:          rep.Clusters,
			MeanClusterSize:   rep.MeanClusterSize,
			StdDevClusterSize: rep.StdDevClusterSize,
			MaxClusterSize:    rep.MaxClusterSize,
			ElapsedMs:         float64(rep.Elapsed) / float64(time.Millisecond),
			Summary:           rep.String(),
			At:                last.At.UTC().Format(time.RFC3339Nano),
		}
	}
	ws.writeJSON(w, http.StatusOK, st)
}

type pixelJSON struct {
	Row uint16 `json:"row"`
	Col uint16 `json:"col"`
	ADC uint16 `json:"adc"`
}

type clusterJSON struct {
	Size    int         `json:"size"`
	SizeX   int         `json:"size_x"`
	SizeY   int         `json:"size_y"`
	Charge  float32     `json:"charge"`
	X       float32     `json:"x"`
	Y       float32     `json:"y"`
	GlobalX float64     `json:"global_x"`
	GlobalY float64     `json:"global_y"`
	GlobalZ float64     `json:"global_z"`
	Pixels  []pixelJSON `json:"pixels"`
}

func toClusterJSON(c *pixel.Cluster) clusterJSON {
	out := clusterJSON{
		Size: c.Size(), SizeX: c.SizeX(), SizeY: c.SizeY(),
		Charge: c.Charge, X: c.X, Y: c.Y,
		GlobalX: c.GlobalX, GlobalY: c.GlobalY, GlobalZ: c.GlobalZ,
		Pixels: make([]pixelJSON, len(c.Pixels)),
	}
	for i, p := range c.Pixels {
		out.Pixels[i] = pixelJSON{Row: p.Row, Col: p.Col, ADC: p.ADC}
	}
	return out
}

// handleClusters returns the last event's clusters for one detector unit.
// Query params:
//   - det (required): detector unit id
func (ws *WebServer) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	raw := r.URL.Query().Get("det")
	if raw == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'det' parameter")
		return
	}
	det, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		ws.writeJSONError(w, http.StatusBadRequest, "invalid 'det' parameter")
		return
	}

	last, _ := ws.snapshot()
	if last == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no event processed yet")
		return
	}

	clusters := last.Output.Get(pixel.DetUnitID(det))
	resp := struct {
		EventID  int64         `json:"event_id"`
		Det      uint32        `json:"det"`
		Clusters []clusterJSON `json:"clusters"`
	}{EventID: last.EventID, Det: uint32(det), Clusters: make([]clusterJSON, 0, len(clusters))}
	for i := range clusters {
		resp.Clusters = append(resp.Clusters, toClusterJSON(&clusters[i]))
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

// handleDetUnits lists the detector units with clusters in the last event,
// in output order.
func (ws *WebServer) handleDetUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	last, _ := ws.snapshot()
	if last == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no event processed yet")
		return
	}

	type unitJSON struct {
		Det      uint32 `json:"det"`
		Clusters int    `json:"clusters"`
	}
	units := make([]unitJSON, 0, last.Output.Len())
	for id, clusters := range last.Output.All() {
		units = append(units, unitJSON{Det: uint32(id), Clusters: len(clusters)})
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":  last.EventID,
		"det_units": units,
	})
}
