package main

import "rdsim/internal/grid"

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

// displaySlice is the z layer shown for 3D grids.
func displaySlice(d grid.Dims) int { return d.Z / 2 }

// stampDisc sets chemical c to v on every in-grid cell of footprint centred
// at (cx, cy) in layer z. Off-grid cells wrap or are skipped.
func stampDisc(g *grid.Grid, footprint []gridOffset, cx, cy, z, c int, v float32, wrap bool) int {
	d := g.Dims()
	n := 0
	for _, o := range footprint {
		x, y := cx+o.dx, cy+o.dy
		if wrap {
			x = (x%d.X + d.X) % d.X
			y = (y%d.Y + d.Y) % d.Y
		} else if x < 0 || x >= d.X || y < 0 || y >= d.Y {
			continue
		}
		g.Set(c, x, y, z, v)
		n++
	}
	return n
}
