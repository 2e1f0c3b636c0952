package grid

import (
	"errors"
	"math"
	"testing"

	"rdsim/internal/rd"
)

func TestDimsValidate(t *testing.T) {
	tests := []struct {
		name string
		dims Dims
		wrap bool
		want error
	}{
		{"2d wrap", Dims{256, 256, 1}, true, nil},
		{"3d wrap", Dims{16, 8, 4}, true, nil},
		{"clamp any size", Dims{100, 37, 1}, false, nil},
		{"wrap non power", Dims{100, 64, 1}, true, rd.ErrNotPowerOfTwo},
		{"too large", Dims{math.MaxInt32, 2, 1}, false, rd.ErrGridTooLarge},
	}
	for _, tt := range tests {
		err := tt.dims.Validate(2, tt.wrap)
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: error %v, want %v", tt.name, err, tt.want)
		}
	}
	if err := (Dims{0, 1, 1}).Validate(1, false); err == nil {
		t.Error("zero axis accepted")
	}
}

func TestDimensionality(t *testing.T) {
	if got := (Dims{8, 1, 1}).Dimensionality(); got != 1 {
		t.Errorf("1d = %d", got)
	}
	if got := (Dims{8, 8, 1}).Dimensionality(); got != 2 {
		t.Errorf("2d = %d", got)
	}
	if got := (Dims{8, 1, 8}).Dimensionality(); got != 3 {
		t.Errorf("3d = %d", got)
	}
}

func TestViewNeighbor(t *testing.T) {
	v := NewView(Dims{8, 8, 1})
	if got, want := v.Neighbor(0, 3, 0, -1, 0, 0, true), v.Offset(7, 3, 0); got != want {
		t.Errorf("wrapped left neighbor = %d, want %d", got, want)
	}
	if got, want := v.Neighbor(7, 7, 0, 1, 1, 0, true), v.Offset(0, 0, 0); got != want {
		t.Errorf("wrapped corner = %d, want %d", got, want)
	}
	if got, want := v.Neighbor(0, 3, 0, -1, 0, 0, false), v.Offset(0, 3, 0); got != want {
		t.Errorf("clamped left neighbor = %d, want %d", got, want)
	}
	x, y, z := v.Coords(v.Offset(5, 6, 0))
	if x != 5 || y != 6 || z != 0 {
		t.Errorf("Coords round trip = %d,%d,%d", x, y, z)
	}
}

func TestBuffersSwap(t *testing.T) {
	b, err := NewBuffers(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	b.Fill(0, 1)
	b.Back()[0][2] = 5
	b.Swap()
	if b.Front()[0][2] != 5 || b.Back()[0][0] != 1 {
		t.Error("Swap did not exchange buffers")
	}
	if vals, ok := b.Chemical("b"); !ok || len(vals) != 4 {
		t.Error("chemical b not addressable by name")
	}
	other, _ := NewBuffers(1, 4)
	if err := b.CopyFrom(other); err == nil {
		t.Error("CopyFrom accepted mismatched shape")
	}
}

func TestGridSeedAndClone(t *testing.T) {
	g, err := New(Dims{4, 2, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Seed(func(x, y, z float64) []float32 {
		return []float32{float32(x), float32(y)}
	}); err != nil {
		t.Fatal(err)
	}
	if got := g.At(0, 1, 0, 0); got != 0.375 {
		t.Errorf("seeded x coordinate = %v, want 0.375", got)
	}
	c := g.Clone()
	g.Set(1, 0, 0, 0, 9)
	if c.At(1, 0, 0, 0) == 9 {
		t.Error("Clone shares storage")
	}
	if err := g.Seed(func(x, y, z float64) []float32 { return nil }); err == nil {
		t.Error("Seed accepted wrong value count")
	}
}
