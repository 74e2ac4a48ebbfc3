package producer

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// Report summarises one call to Run.
type Report struct {
	Mode     string
	NotReady bool

	DetUnits int // units visited
	Digis    int // digis handed to the strategy
	Clusters int // clusters written to the output

	// Cluster size statistics over the event, in pixels. StdDev stays zero
	// for a single cluster.
	MeanClusterSize   float64
	StdDevClusterSize float64
	MaxClusterSize    int

	Elapsed time.Duration
}

// String matches the diag log line emitted after every ready event.
func (r Report) String() string {
	if r.NotReady {
		return fmt.Sprintf("%s is not ready, event skipped", r.Mode)
	}
	return fmt.Sprintf("executing %s resulted in %d clusters in %d detector units", r.Mode, r.Clusters, r.DetUnits)
}

func (r *Report) addSizeStats(clusters []pixel.Cluster) {
	if len(clusters) == 0 {
		return
	}
	sizes := make([]float64, len(clusters))
	for i := range clusters {
		n := clusters[i].Size()
		sizes[i] = float64(n)
		r.MaxClusterSize = max(r.MaxClusterSize, n)
	}
	if len(sizes) == 1 {
		r.MeanClusterSize = sizes[0]
		return
	}
	r.MeanClusterSize, r.StdDevClusterSize = stat.MeanStdDev(sizes, nil)
}
