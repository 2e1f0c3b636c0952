package grid

import (
	"fmt"

	"rdsim/internal/rd"
)

// Buffers stores one front and one back value slice per chemical. Readers use
// Front; integrators write Back and call Swap.
type Buffers struct {
	names []string
	cells int
	front [][]float32
	back  [][]float32
}

// NewBuffers allocates zeroed buffers for chemicals x cells.
func NewBuffers(chemicals, cells int) (*Buffers, error) {
	if chemicals < 1 {
		return nil, fmt.Errorf("invalid chemical count %d", chemicals)
	}
	if cells < 1 {
		return nil, fmt.Errorf("invalid cell count %d", cells)
	}
	b := &Buffers{
		names: rd.ChemicalNames(chemicals),
		cells: cells,
		front: make([][]float32, chemicals),
		back:  make([][]float32, chemicals),
	}
	for c := 0; c < chemicals; c++ {
		b.front[c] = make([]float32, cells)
		b.back[c] = make([]float32, cells)
	}
	return b, nil
}

// Chemicals returns the number of chemicals.
func (b *Buffers) Chemicals() int { return len(b.front) }

// Cells returns the number of cells per chemical.
func (b *Buffers) Cells() int { return b.cells }

// Names returns the chemical names.
func (b *Buffers) Names() []string { return b.names }

// Front returns the live buffers, indexed by chemical.
func (b *Buffers) Front() [][]float32 { return b.front }

// Back returns the scratch buffers, indexed by chemical.
func (b *Buffers) Back() [][]float32 { return b.back }

// Swap exchanges front and back.
func (b *Buffers) Swap() {
	b.front, b.back = b.back, b.front
}

// Chemical returns the live values of the named chemical.
func (b *Buffers) Chemical(name string) ([]float32, bool) {
	for i, n := range b.names {
		if n == name {
			return b.front[i], true
		}
	}
	return nil, false
}

// Fill sets every cell of chemical c to v.
func (b *Buffers) Fill(c int, v float32) {
	vals := b.front[c]
	for i := range vals {
		vals[i] = v
	}
}

// CopyFrom copies the live values of src, which must have the same shape.
func (b *Buffers) CopyFrom(src *Buffers) error {
	if src.Chemicals() != b.Chemicals() || src.Cells() != b.Cells() {
		return fmt.Errorf("buffer shape mismatch: %dx%d vs %dx%d",
			src.Chemicals(), src.Cells(), b.Chemicals(), b.Cells())
	}
	for c := range b.front {
		copy(b.front[c], src.front[c])
	}
	return nil
}
