package producer

import (
	"fmt"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// GeometryMismatchError is returned by Run when a detector unit present in
// the input has no geometry. The event produces no output.
type GeometryMismatchError struct {
	DetUnitID pixel.DetUnitID
	Err       error
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("geometry mismatch for det unit %d: %v", e.DetUnitID, e.Err)
}

func (e *GeometryMismatchError) Unwrap() error { return e.Err }
