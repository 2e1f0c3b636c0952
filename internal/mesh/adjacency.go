package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"rdsim/internal/rd"
)

// DefaultScale multiplies the weighted neighbor sum so that parameters tuned
// on the 2D square grid give similar patterns on meshes.
const DefaultScale = 4.0

// Options select which cells are neighbors and how they are weighted.
type Options struct {
	Type   rd.NeighborhoodType
	Weight rd.Weighting
}

// Adjacency is a compressed neighbor list: the neighbors of cell i are
// Neighbors[Offsets[i]:Offsets[i+1]], with matching Weights. The weights of
// every cell sum to 1.
type Adjacency struct {
	Offsets   []int32
	Neighbors []int32
	Weights   []float32
}

// Cells returns the number of cells.
func (a *Adjacency) Cells() int { return len(a.Offsets) - 1 }

// Of returns the neighbors and weights of cell i.
func (a *Adjacency) Of(i int) ([]int32, []float32) {
	lo, hi := a.Offsets[i], a.Offsets[i+1]
	return a.Neighbors[lo:hi], a.Weights[lo:hi]
}

// minShared is the number of vertices two cells must share to be neighbors.
func minShared(dim int, t rd.NeighborhoodType) int {
	switch t {
	case rd.Face:
		if dim == 3 {
			return 3
		}
		return 2
	case rd.Edge:
		return 2
	}
	return 1
}

// BuildAdjacency finds, for every cell, the cells sharing enough vertices
// and assigns their diffusion weights. Neighbors are listed in index order.
func BuildAdjacency(m *Mesh, opts Options) (*Adjacency, error) {
	if m.Dim != 2 && m.Dim != 3 {
		return nil, fmt.Errorf("mesh dimensionality %d is not 2 or 3", m.Dim)
	}
	if m.Dim == 2 && opts.Type == rd.Edge {
		return nil, &rd.NeighborhoodError{Dimensionality: 2, Neighborhood: rd.Neighborhood{Type: opts.Type, Range: 1, Weight: opts.Weight}}
	}
	byVertex := make([][]int32, len(m.Points))
	for i, cell := range m.Cells {
		for _, v := range cell {
			if v < 0 || v >= len(m.Points) {
				return nil, fmt.Errorf("cell %d references vertex %d of %d", i, v, len(m.Points))
			}
			byVertex[v] = append(byVertex[v], int32(i))
		}
	}
	need := minShared(m.Dim, opts.Type)
	adj := &Adjacency{Offsets: make([]int32, 1, len(m.Cells)+1)}
	shared := make(map[int32][]int)
	var weights []float64
	for i, cell := range m.Cells {
		clear(shared)
		for _, v := range cell {
			for _, j := range byVertex[v] {
				if int(j) != i {
					shared[j] = append(shared[j], v)
				}
			}
		}
		var nbrs []int32
		for j, verts := range shared {
			if len(verts) >= need {
				nbrs = append(nbrs, j)
			}
		}
		sort.Slice(nbrs, func(a, b int) bool { return nbrs[a] < nbrs[b] })

		weights = weights[:0]
		ci := m.Centroid(i)
		for _, j := range nbrs {
			w := 1.0
			if opts.Weight == rd.LaplacianWeights {
				w = 1 / distance(ci, m.Centroid(int(j)))
				if verts := shared[j]; m.Dim == 2 && len(verts) == 2 {
					w *= distance(m.Points[verts[0]], m.Points[verts[1]])
				}
			}
			weights = append(weights, w)
		}
		if total := floats.Sum(weights); total > 0 {
			floats.Scale(1/total, weights)
		}
		for k, j := range nbrs {
			adj.Neighbors = append(adj.Neighbors, j)
			adj.Weights = append(adj.Weights, float32(weights[k]))
		}
		adj.Offsets = append(adj.Offsets, int32(len(adj.Neighbors)))
	}
	return adj, nil
}

func distance(a, b [3]float64) float64 {
	d := []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
	n := floats.Norm(d, 2)
	if n == 0 {
		return math.SmallestNonzeroFloat64
	}
	return n
}
