package pixel

import (
	"errors"
	"fmt"
	"math"
)

// IdentityTransform4x4 is a 4x4 identity matrix, row-major.
var IdentityTransform4x4 = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// TransformValidationTolerance bounds the rotation determinant check.
const TransformValidationTolerance = 0.01

// Geometry describes one detector unit: its pixel matrix and where it sits
// in the global frame. Units are centimetres.
type Geometry struct {
	DetUnitID DetUnitID `json:"det"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	PitchX    float64   `json:"pitch_x"` // row pitch
	PitchY    float64   `json:"pitch_y"` // column pitch
	Thickness float64   `json:"thickness"`

	// T maps local (x, y, z) to global coordinates.
	// Row-major: m00..m03, m10..m13, m20..m23, m30..m33.
	T [16]float64 `json:"transform"`
}

// Channels returns the number of pixel channels on the unit.
func (g *Geometry) Channels() int { return g.Rows * g.Cols }

// Channel returns the linear channel index of (row, col), or -1 when the
// pixel lies outside the matrix.
func (g *Geometry) Channel(row, col int) int {
	if row < 0 || col < 0 || row >= g.Rows || col >= g.Cols {
		return -1
	}
	return row*g.Cols + col
}

// LocalPosition converts fractional pixel coordinates into local
// coordinates centred on the middle of the matrix.
func (g *Geometry) LocalPosition(row, col float64) (x, y float64) {
	x = (row - float64(g.Rows)/2) * g.PitchX
	y = (col - float64(g.Cols)/2) * g.PitchY
	return
}

// GlobalPosition converts fractional pixel coordinates into the global frame.
func (g *Geometry) GlobalPosition(row, col float64) (gx, gy, gz float64) {
	x, y := g.LocalPosition(row, col)
	return ApplyTransform(x, y, 0, g.T)
}

// Validate checks that the descriptor can be used for clustering.
func (g *Geometry) Validate() error {
	if g == nil {
		return errors.New("geometry is nil")
	}
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("det unit %d: invalid matrix %dx%d", g.DetUnitID, g.Rows, g.Cols)
	}
	if g.Rows > math.MaxUint16 || g.Cols > math.MaxUint16 {
		return fmt.Errorf("det unit %d: matrix %dx%d exceeds 16-bit addressing", g.DetUnitID, g.Rows, g.Cols)
	}
	if g.PitchX <= 0 || g.PitchY <= 0 {
		return fmt.Errorf("det unit %d: pitch must be positive, got %g x %g", g.DetUnitID, g.PitchX, g.PitchY)
	}
	if !IsValidTransformMatrix(g.T) {
		return fmt.Errorf("det unit %d: transform is not a proper rigid transform", g.DetUnitID)
	}
	return nil
}

// ApplyTransform applies a 4x4 row-major transform T to point (x, y, z).
func ApplyTransform(x, y, z float64, T [16]float64) (wx, wy, wz float64) {
	wx = T[0]*x + T[1]*y + T[2]*z + T[3]
	wy = T[4]*x + T[5]*y + T[6]*z + T[7]
	wz = T[8]*x + T[9]*y + T[10]*z + T[11]
	return
}

// IsValidTransformMatrix reports whether T is a proper rigid transform:
// rotation determinant ≈ 1 and last row [0 0 0 1].
func IsValidTransformMatrix(T [16]float64) bool {
	r00, r01, r02 := T[0], T[1], T[2]
	r10, r11, r12 := T[4], T[5], T[6]
	r20, r21, r22 := T[8], T[9], T[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > TransformValidationTolerance {
		return false
	}

	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}

	return true
}

// TranslationTransform returns a rotation-free transform that moves the
// local origin to (x, y, z).
func TranslationTransform(x, y, z float64) [16]float64 {
	T := IdentityTransform4x4
	T[3], T[7], T[11] = x, y, z
	return T
}
