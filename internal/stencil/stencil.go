// Package stencil holds the validated discrete Laplacian stencils and the
// lookup from a neighborhood description to exactly one of them.
package stencil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

// Tap is one neighbor offset with its raw integer weight.
type Tap struct {
	DX, DY, DZ int
	Weight     float32
}

// Order returns how many of the offsets are non-zero: 1 for face, 2 for edge
// and 3 for corner neighbors.
func (t Tap) Order() int {
	n := 0
	for _, d := range [3]int{t.DX, t.DY, t.DZ} {
		if d != 0 {
			n++
		}
	}
	return n
}

// Table is a stencil: Laplacian = (sum(tap.Weight*neighbor) + Center*here) / Divisor.
type Table struct {
	Name           string
	Dimensionality int
	Neighborhood   rd.Neighborhood
	Taps           []Tap
	Center         float32
	Divisor        float32
}

// build enumerates offsets in z, y, x order (x fastest) and keeps the ones
// weight assigns a non-zero weight to.
func build(name string, dim int, n rd.Neighborhood, center, divisor float32, weight func(order int) float32) *Table {
	t := &Table{Name: name, Dimensionality: dim, Neighborhood: n, Center: center, Divisor: divisor}
	span := func(active bool) []int {
		if active {
			return []int{-1, 0, 1}
		}
		return []int{0}
	}
	for _, dz := range span(dim >= 3) {
		for _, dy := range span(dim >= 2) {
			for _, dx := range span(true) {
				tap := Tap{DX: dx, DY: dy, DZ: dz}
				order := tap.Order()
				if order == 0 {
					continue
				}
				if w := weight(order); w != 0 {
					tap.Weight = w
					t.Taps = append(t.Taps, tap)
				}
			}
		}
	}
	return t
}

func weights(face, edge, corner float32) func(int) float32 {
	return func(order int) float32 {
		switch order {
		case 1:
			return face
		case 2:
			return edge
		default:
			return corner
		}
	}
}

var (
	face1D = build("3-point", 1, rd.Neighborhood{Type: rd.Face, Range: 1}, -2, 1, weights(1, 0, 0))
	face2D = build("5-point", 2, rd.Neighborhood{Type: rd.Face, Range: 1}, -4, 1, weights(1, 0, 0))
	face3D = build("7-point", 3, rd.Neighborhood{Type: rd.Face, Range: 1}, -6, 1, weights(1, 0, 0))
	// Equal-weighted Moore neighborhood, scaled by 1/2 so that the face
	// coupling matches the 5-point stencil.
	moore2DEqual = build("9-point equal", 2, rd.Neighborhood{Type: rd.Vertex, Range: 1, Weight: rd.EqualWeights}, -8, 2, weights(1, 1, 0))
	// Isotropic 9-point Laplacian [1,4,1;4,-20,4;1,4,1]/6.
	moore2D = build("9-point", 2, rd.Neighborhood{Type: rd.Vertex, Range: 1, Weight: rd.LaplacianWeights}, -20, 6, weights(4, 1, 0))
	// Dowle, Mantel and Barkley 19-point Laplacian.
	edge3D = build("19-point", 3, rd.Neighborhood{Type: rd.Edge, Range: 1, Weight: rd.LaplacianWeights}, -24, 6, weights(2, 1, 0))
	// O'Reilly and Beck 27-point Laplacian.
	vertex3D = build("27-point", 3, rd.Neighborhood{Type: rd.Vertex, Range: 1, Weight: rd.LaplacianWeights}, -88, 26, weights(6, 3, 2))
)

// Tables returns every validated stencil.
func Tables() []*Table {
	return []*Table{face1D, face2D, face3D, moore2DEqual, moore2D, edge3D, vertex3D}
}

// Lookup selects the stencil for a dimensionality and neighborhood. Face
// stencils ignore the weighting. Any other combination is rejected with a
// *rd.NeighborhoodError.
func Lookup(dim int, n rd.Neighborhood) (*Table, error) {
	if n.Range == 1 {
		switch {
		case n.Type == rd.Face && dim == 1:
			return face1D, nil
		case n.Type == rd.Face && dim == 2:
			return face2D, nil
		case n.Type == rd.Face && dim == 3:
			return face3D, nil
		case n.Type == rd.Vertex && dim == 2 && n.Weight == rd.EqualWeights:
			return moore2DEqual, nil
		case n.Type == rd.Vertex && dim == 2 && n.Weight == rd.LaplacianWeights:
			return moore2D, nil
		case n.Type == rd.Edge && dim == 3 && n.Weight == rd.LaplacianWeights:
			return edge3D, nil
		case n.Type == rd.Vertex && dim == 3 && n.Weight == rd.LaplacianWeights:
			return vertex3D, nil
		}
	}
	return nil, &rd.NeighborhoodError{Dimensionality: dim, Neighborhood: n}
}

// Weights returns the effective tap weights (raw weight / divisor).
func (t *Table) Weights() []float64 {
	w := make([]float64, len(t.Taps))
	for i, tap := range t.Taps {
		w[i] = float64(tap.Weight)
	}
	floats.Scale(1/float64(t.Divisor), w)
	return w
}

// Layer returns the 3x3 effective weights of the dz layer (dz in -1..1), the
// centre cell included. Rows are dy, columns dx.
func (t *Table) Layer(dz int) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	if dz == 0 {
		m.Set(1, 1, float64(t.Center)/float64(t.Divisor))
	}
	for i, w := range t.Weights() {
		tap := t.Taps[i]
		if tap.DZ == dz {
			m.Set(tap.DY+1, tap.DX+1, w)
		}
	}
	return m
}

// Sum returns the total of all effective weights, centre included.
func (t *Table) Sum() float64 {
	var total float64
	for dz := -1; dz <= 1; dz++ {
		total += mat.Sum(t.Layer(dz))
	}
	return total
}

// Validate checks that the stencil annihilates constant fields.
func (t *Table) Validate() error {
	raw := float64(t.Center)
	for _, tap := range t.Taps {
		raw += float64(tap.Weight)
	}
	if raw != 0 {
		return fmt.Errorf("stencil %s: raw weights sum to %g", t.Name, raw)
	}
	if s := t.Sum(); !scalar.EqualWithinAbs(s, 0, 1e-9) {
		return fmt.Errorf("stencil %s: effective weights sum to %g", t.Name, s)
	}
	if t.Divisor <= 0 || math.IsInf(float64(t.Divisor), 0) {
		return fmt.Errorf("stencil %s: invalid divisor %g", t.Name, t.Divisor)
	}
	return nil
}

// Offsets fills dst with the buffer offsets of every tap around (x, y, z).
func (t *Table) Offsets(v grid.View, x, y, z int, wrap bool, dst []int) []int {
	dst = dst[:0]
	for _, tap := range t.Taps {
		dst = append(dst, v.Neighbor(x, y, z, tap.DX, tap.DY, tap.DZ, wrap))
	}
	return dst
}

// Apply evaluates the Laplacian of vals at offset here with neighbor offsets
// from Offsets.
func (t *Table) Apply(vals []float32, here int, offsets []int) float32 {
	var sum float32
	for i, off := range offsets {
		sum += t.Taps[i].Weight * vals[off]
	}
	sum += t.Center * vals[here]
	if t.Divisor != 1 {
		sum /= t.Divisor
	}
	return sum
}
