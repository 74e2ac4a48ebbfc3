package pixel

import "fmt"

// DetUnitID identifies one physically addressable sensor module.
// Values are opaque; callers must not infer ordering semantics from them.
type DetUnitID uint32

// String formats the id the way it appears in logs and reports.
func (id DetUnitID) String() string { return fmt.Sprintf("%d", uint32(id)) }

// Digi is a single digitized pixel hit. The detector unit it belongs to is
// the key under which it is stored, so it is not repeated here.
type Digi struct {
	Row uint16 // local row index (x direction)
	Col uint16 // local column index (y direction)
	ADC uint16 // amplitude in ADC counts
}

// Pixel is a digi that was accepted into a cluster.
type Pixel struct {
	Row uint16
	Col uint16
	ADC uint16
}

// Cluster is a group of adjacent above-threshold pixels on one detector unit.
type Cluster struct {
	DetUnitID DetUnitID
	Pixels    []Pixel // sorted by (Row, Col)

	Charge float32 // sum of member ADC counts

	// Charge-weighted centroid in local pixel coordinates. Pixel centres
	// sit at half-integer positions, so a single pixel at row 3 gives X=3.5.
	X, Y float32

	MinRow, MaxRow uint16
	MinCol, MaxCol uint16

	// Centroid in the global frame, from the unit's geometry.
	GlobalX, GlobalY, GlobalZ float64
}

// Size returns the number of pixels in the cluster.
func (c *Cluster) Size() int { return len(c.Pixels) }

// SizeX returns the extent of the cluster along rows.
func (c *Cluster) SizeX() int { return int(c.MaxRow) - int(c.MinRow) + 1 }

// SizeY returns the extent of the cluster along columns.
func (c *Cluster) SizeY() int { return int(c.MaxCol) - int(c.MinCol) + 1 }
