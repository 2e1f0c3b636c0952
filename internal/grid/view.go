package grid

// View maps lattice coordinates to offsets in a flat buffer. The default
// layout is x-fastest.
type View struct {
	Dims   Dims
	Stride [3]int
	Base   int
}

// NewView returns the x-fastest view over d.
func NewView(d Dims) View {
	return View{Dims: d, Stride: [3]int{1, d.X, d.X * d.Y}}
}

// Offset returns the buffer offset of (x, y, z).
func (v View) Offset(x, y, z int) int {
	return v.Base + x*v.Stride[0] + y*v.Stride[1] + z*v.Stride[2]
}

// Coords is the inverse of Offset for the default layout.
func (v View) Coords(i int) (x, y, z int) {
	i -= v.Base
	z = i / v.Stride[2]
	i -= z * v.Stride[2]
	y = i / v.Stride[1]
	x = i - y*v.Stride[1]
	return x, y, z
}

// Step moves coordinate c by delta along an axis of size n. Wrapping uses the
// power-of-two bitmask; otherwise the result is clamped to the edge, which
// gives zero-flux boundaries.
func Step(c, delta, n int, wrap bool) int {
	if wrap {
		return (c + delta) & (n - 1)
	}
	return clampCoord(c+delta, 0, n-1)
}

// Neighbor returns the offset of the cell at (x+dx, y+dy, z+dz) under the
// boundary policy.
func (v View) Neighbor(x, y, z, dx, dy, dz int, wrap bool) int {
	return v.Offset(
		Step(x, dx, v.Dims.X, wrap),
		Step(y, dy, v.Dims.Y, wrap),
		Step(z, dz, v.Dims.Z, wrap),
	)
}
