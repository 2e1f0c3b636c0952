// Package mesh diffuses chemicals over unstructured cells using a
// precomputed adjacency list instead of lattice offsets.
package mesh

import (
	"fmt"

	"github.com/ctessum/geom"
)

// Mesh is a set of cells, each a list of vertex indices into Points.
type Mesh struct {
	Points [][3]float64
	Cells  [][]int
	// Dim is 2 for polygon meshes and 3 for polyhedra.
	Dim int
}

// NumCells returns the number of cells.
func (m *Mesh) NumCells() int { return len(m.Cells) }

// Centroid returns the mean of the vertices of cell i.
func (m *Mesh) Centroid(i int) [3]float64 {
	var c [3]float64
	for _, v := range m.Cells[i] {
		for k := range c {
			c[k] += m.Points[v][k]
		}
	}
	n := float64(len(m.Cells[i]))
	for k := range c {
		c[k] /= n
	}
	return c
}

// FromPolygons builds a 2D mesh from the outer rings of polys. Vertices with
// identical coordinates are merged so that neighboring polygons share them.
func FromPolygons(polys []geom.Polygon) (*Mesh, error) {
	m := &Mesh{Dim: 2}
	index := make(map[geom.Point]int)
	for i, poly := range polys {
		if len(poly) == 0 {
			return nil, fmt.Errorf("polygon %d has no rings", i)
		}
		ring := poly[0]
		if n := len(ring); n > 1 && ring[0] == ring[n-1] {
			ring = ring[:n-1]
		}
		if len(ring) < 3 {
			return nil, fmt.Errorf("polygon %d has %d vertices", i, len(ring))
		}
		cell := make([]int, 0, len(ring))
		for _, p := range ring {
			v, ok := index[p]
			if !ok {
				v = len(m.Points)
				index[p] = v
				m.Points = append(m.Points, [3]float64{p.X, p.Y, 0})
			}
			cell = append(cell, v)
		}
		m.Cells = append(m.Cells, cell)
	}
	return m, nil
}

func square(x, y float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y},
		{X: x + 1, Y: y},
		{X: x + 1, Y: y + 1},
		{X: x, Y: y + 1},
	}}
}

// SquareLattice returns nx*ny unit squares, row by row.
func SquareLattice(nx, ny int) *Mesh {
	polys := make([]geom.Polygon, 0, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			polys = append(polys, square(float64(x), float64(y)))
		}
	}
	m, _ := FromPolygons(polys)
	return m
}

// TriangleLattice splits every square of an nx*ny lattice along its
// diagonal.
func TriangleLattice(nx, ny int) *Mesh {
	polys := make([]geom.Polygon, 0, 2*nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			fx, fy := float64(x), float64(y)
			polys = append(polys,
				geom.Polygon{{{X: fx, Y: fy}, {X: fx + 1, Y: fy}, {X: fx + 1, Y: fy + 1}}},
				geom.Polygon{{{X: fx, Y: fy}, {X: fx + 1, Y: fy + 1}, {X: fx, Y: fy + 1}}},
			)
		}
	}
	m, _ := FromPolygons(polys)
	return m
}

// CubeLattice returns nx*ny*nz unit cubes, x fastest.
func CubeLattice(nx, ny, nz int) *Mesh {
	m := &Mesh{Dim: 3}
	vid := func(x, y, z int) int { return x + (nx+1)*(y+(ny+1)*z) }
	for z := 0; z <= nz; z++ {
		for y := 0; y <= ny; y++ {
			for x := 0; x <= nx; x++ {
				m.Points = append(m.Points, [3]float64{float64(x), float64(y), float64(z)})
			}
		}
	}
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				m.Cells = append(m.Cells, []int{
					vid(x, y, z), vid(x+1, y, z), vid(x+1, y+1, z), vid(x, y+1, z),
					vid(x, y, z+1), vid(x+1, y, z+1), vid(x+1, y+1, z+1), vid(x, y+1, z+1),
				})
			}
		}
	}
	return m
}
