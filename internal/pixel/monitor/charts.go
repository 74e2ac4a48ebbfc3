package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleClustersChart renders the last event as a page of two charts: a bar
// chart of clusters per detector unit, in output order, and the cluster
// centroids in the global x/y plane coloured by cluster size.
func (ws *WebServer) handleClustersChart(w http.ResponseWriter, r *http.Request) {
	last, _ := ws.snapshot()
	if last == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no event processed yet")
		return
	}

	units := make([]string, 0, last.Output.Len())
	counts := make([]opts.BarData, 0, last.Output.Len())
	for id, clusters := range last.Output.All() {
		units = append(units, id.String())
		counts = append(counts, opts.BarData{Value: len(clusters)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pixel Clusters", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Clusters per detector unit", Subtitle: fmt.Sprintf("event=%d units=%d", last.EventID, len(units))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(units).
		AddSeries("clusters", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	clusters := last.Output.Values()
	pts := make([]opts.ScatterData, 0, len(clusters))
	maxSize := 1
	maxAbs := 0.0
	for i := range clusters {
		c := &clusters[i]
		if c.Size() > maxSize {
			maxSize = c.Size()
		}
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(c.GlobalX), math.Abs(c.GlobalY)))
		pts = append(pts, opts.ScatterData{Value: []interface{}{c.GlobalX, c.GlobalY, c.Size(), uint32(c.DetUnitID)}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cluster centroids", Subtitle: fmt.Sprintf("clusters=%d", len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (cm)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        1,
			Max:        float32(maxSize),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("clusters", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar, scatter)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render clusters chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleClusterSizePlot renders a PNG histogram of recent cluster sizes.
func (ws *WebServer) handleClusterSizePlot(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	sizes := make(plotter.Values, len(ws.sizes))
	copy(sizes, ws.sizes)
	ws.mu.RUnlock()

	if len(sizes) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no clusters recorded yet")
		return
	}

	maxSize := 1.0
	for _, s := range sizes {
		maxSize = math.Max(maxSize, s)
	}
	bins := int(maxSize)
	if bins > 50 {
		bins = 50
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cluster size (%d clusters)", len(sizes))
	p.X.Label.Text = "pixels"
	p.Y.Label.Text = "clusters"

	h, err := plotter.NewHist(sizes, bins)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build histogram: %v", err))
		return
	}
	p.Add(h)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
