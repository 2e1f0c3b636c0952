// Package grid stores chemical fields over regular lattices and unstructured
// meshes. Every field is double buffered: one buffer is read while the other
// is written, then the roles swap.
package grid

import (
	"fmt"
	"math"

	"rdsim/internal/rd"
)

// maxCells bounds the cell count so that kernel-side int indices cannot
// overflow.
const maxCells = math.MaxInt32

// Dims are the lattice extents. Inactive axes have size 1.
type Dims struct {
	X, Y, Z int
}

// Cells returns the number of lattice cells.
func (d Dims) Cells() int {
	return d.X * d.Y * d.Z
}

// Dimensionality returns 3 when Z is active, 2 when Y is active and 1
// otherwise.
func (d Dims) Dimensionality() int {
	switch {
	case d.Z > 1:
		return 3
	case d.Y > 1:
		return 2
	default:
		return 1
	}
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z)
}

// Validate checks that every axis is at least 1, that the lattice is
// addressable for the given chemical count and, when wrapping, that every
// active axis is a power of two.
func (d Dims) Validate(chemicals int, wrap bool) error {
	if d.X < 1 || d.Y < 1 || d.Z < 1 {
		return fmt.Errorf("invalid grid dimensions %s: every axis must be at least 1", d)
	}
	if chemicals < 1 {
		return fmt.Errorf("invalid chemical count %d", chemicals)
	}
	if d.X > maxCells/d.Y || d.X*d.Y > maxCells/d.Z {
		return fmt.Errorf("%w: %s exceeds %d cells", rd.ErrGridTooLarge, d, maxCells)
	}
	// Two buffers of float32 per chemical.
	if d.Cells() > math.MaxInt/(8*chemicals) {
		return fmt.Errorf("%w: %s with %d chemicals", rd.ErrGridTooLarge, d, chemicals)
	}
	if wrap {
		for _, n := range []int{d.X, d.Y, d.Z} {
			if !IsPowerOfTwo(n) {
				return fmt.Errorf("%w: got %s", rd.ErrNotPowerOfTwo, d)
			}
		}
	}
	return nil
}

// IsPowerOfTwo reports whether n is a positive power of two. 1 counts.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// clampCoord constrains v to lie within the inclusive [min, max] range.
func clampCoord(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
