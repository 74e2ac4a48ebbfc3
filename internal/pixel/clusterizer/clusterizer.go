// Package clusterizer holds the pluggable strategies that turn one detector
// unit's digis into clusters, and the registry the producer selects them from.
package clusterizer

import (
	"fmt"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// Clusterizer abstracts the clustering implementation so the producer can
// run any registered strategy without knowing its internals.
//
// Implementations must be reentrant: the producer may call
// ClusterizeDetUnit for different units from several goroutines at once.
// The digis slice is a view into the event's input and must not be
// modified or retained.
type Clusterizer interface {
	// Name returns the mode name the strategy is registered under.
	Name() string

	// ClusterizeDetUnit clusters the digis of a single detector unit.
	// An empty result means the unit produced no clusters.
	ClusterizeDetUnit(digis []pixel.Digi, id pixel.DetUnitID, geom *pixel.Geometry,
		noise pixel.Noise, bad pixel.BadChannels) []pixel.Cluster

	// GetParams returns the thresholds the strategy was built with.
	GetParams() Params
}

// Params holds the thresholds, in units of channel noise.
type Params struct {
	ChannelThreshold float64 // minimum pixel amplitude
	SeedThreshold    float64 // minimum amplitude for a pixel to start a cluster
	ClusterThreshold float64 // minimum cluster charge, against noise summed in quadrature
}

// DefaultParams returns the standard thresholds.
func DefaultParams() Params {
	return Params{
		ChannelThreshold: 2.5,
		SeedThreshold:    4.0,
		ClusterThreshold: 5.0,
	}
}

// Validate checks the thresholds are usable.
func (p Params) Validate() error {
	if p.ChannelThreshold < 0 || p.SeedThreshold < 0 || p.ClusterThreshold < 0 {
		return fmt.Errorf("thresholds must be non-negative, got channel=%g seed=%g cluster=%g",
			p.ChannelThreshold, p.SeedThreshold, p.ClusterThreshold)
	}
	if p.SeedThreshold < p.ChannelThreshold {
		return fmt.Errorf("seed threshold %g is below channel threshold %g",
			p.SeedThreshold, p.ChannelThreshold)
	}
	return nil
}
