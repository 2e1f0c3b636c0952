package grid

import "fmt"

// Grid is a lattice of cells holding one value per chemical.
type Grid struct {
	*Buffers
	View View
}

// New allocates a zeroed grid. Dimension checks that depend on the boundary
// policy are the caller's job; see Dims.Validate.
func New(d Dims, chemicals int) (*Grid, error) {
	if err := d.Validate(chemicals, false); err != nil {
		return nil, err
	}
	b, err := NewBuffers(chemicals, d.Cells())
	if err != nil {
		return nil, err
	}
	return &Grid{Buffers: b, View: NewView(d)}, nil
}

// Dims returns the lattice extents.
func (g *Grid) Dims() Dims { return g.View.Dims }

// At returns the live value of chemical c at (x, y, z).
func (g *Grid) At(c, x, y, z int) float32 {
	return g.front[c][g.View.Offset(x, y, z)]
}

// Set writes the live value of chemical c at (x, y, z).
func (g *Grid) Set(c, x, y, z int, v float32) {
	g.front[c][g.View.Offset(x, y, z)] = v
}

// Clone returns a deep copy of the live values.
func (g *Grid) Clone() *Grid {
	out, err := New(g.Dims(), g.Chemicals())
	if err != nil {
		panic(fmt.Sprintf("grid: cloning a valid grid failed: %v", err))
	}
	_ = out.CopyFrom(g.Buffers)
	return out
}

// SeedFunc returns the initial values of every chemical at a cell centre.
// Coordinates are relative to the grid extents, in [0, 1).
type SeedFunc func(x, y, z float64) []float32

// Seed fills the live buffers from fn.
func (g *Grid) Seed(fn SeedFunc) error {
	d := g.Dims()
	for z := 0; z < d.Z; z++ {
		for y := 0; y < d.Y; y++ {
			for x := 0; x < d.X; x++ {
				vals := fn(
					(float64(x)+0.5)/float64(d.X),
					(float64(y)+0.5)/float64(d.Y),
					(float64(z)+0.5)/float64(d.Z),
				)
				if len(vals) != g.Chemicals() {
					return fmt.Errorf("seed returned %d values for %d chemicals", len(vals), g.Chemicals())
				}
				i := g.View.Offset(x, y, z)
				for c, v := range vals {
					g.front[c][i] = v
				}
			}
		}
	}
	return nil
}
