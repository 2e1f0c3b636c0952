package rd

import (
	"fmt"
	"strconv"
	"strings"
)

// NeighborhoodType selects which lattice cells count as neighbors.
type NeighborhoodType int

const (
	// Face neighbors share a face (4 in 2D, 6 in 3D).
	Face NeighborhoodType = iota
	// Edge neighbors share at least an edge (18 in 3D).
	Edge
	// Vertex neighbors share at least a corner (8 in 2D, 26 in 3D).
	Vertex
)

func (t NeighborhoodType) String() string {
	switch t {
	case Face:
		return "face"
	case Edge:
		return "edge"
	case Vertex:
		return "vertex"
	default:
		return fmt.Sprintf("NeighborhoodType(%d)", int(t))
	}
}

// ParseNeighborhoodType parses "face", "edge" or "vertex".
func ParseNeighborhoodType(s string) (NeighborhoodType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "face":
		return Face, nil
	case "edge":
		return Edge, nil
	case "vertex":
		return Vertex, nil
	}
	return 0, fmt.Errorf("unknown neighborhood type %q", s)
}

// Weighting selects how neighbor contributions are weighted.
type Weighting int

const (
	// LaplacianWeights uses the physically derived stencil weights.
	LaplacianWeights Weighting = iota
	// EqualWeights gives every neighbor the same weight.
	EqualWeights
)

func (w Weighting) String() string {
	switch w {
	case LaplacianWeights:
		return "laplacian"
	case EqualWeights:
		return "equal"
	default:
		return fmt.Sprintf("Weighting(%d)", int(w))
	}
}

// ParseWeighting parses "laplacian" or "equal".
func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "laplacian":
		return LaplacianWeights, nil
	case "equal":
		return EqualWeights, nil
	}
	return 0, fmt.Errorf("unknown neighborhood weighting %q", s)
}

// Neighborhood describes the stencil topology of a rule.
type Neighborhood struct {
	Type   NeighborhoodType
	Range  int
	Weight Weighting
}

// DefaultNeighborhood is the 5/7-point face stencil.
func DefaultNeighborhood() Neighborhood {
	return Neighborhood{Type: Face, Range: 1, Weight: LaplacianWeights}
}

func (n Neighborhood) String() string {
	return fmt.Sprintf("%s/%d/%s", n.Type, n.Range, n.Weight)
}

// ParseNeighborhood parses the type/range/weight form produced by String.
// Range and weight may be omitted and default to 1 and laplacian.
func ParseNeighborhood(s string) (Neighborhood, error) {
	n := DefaultNeighborhood()
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return n, fmt.Errorf("neighborhood %q: want type[/range[/weight]]", s)
	}
	t, err := ParseNeighborhoodType(parts[0])
	if err != nil {
		return n, err
	}
	n.Type = t
	if len(parts) > 1 {
		r, err := strconv.Atoi(parts[1])
		if err != nil || r < 1 {
			return n, fmt.Errorf("neighborhood %q: invalid range %q", s, parts[1])
		}
		n.Range = r
	}
	if len(parts) > 2 {
		if n.Weight, err = ParseWeighting(parts[2]); err != nil {
			return n, err
		}
	}
	return n, nil
}
