// Package simd runs the Gray-Scott update four cells at a time.
//
// The arithmetic goes through Arch, a small set of 4-lane primitives. The
// emulated implementation is plain Go and always available; the native one
// uses packed 128-bit floats and is compiled only on amd64 with
// GOEXPERIMENT=simd.
package simd

// Lanes is the vector width in float32 lanes.
const Lanes = 4

// Arch is the primitive vector layer. V is the backend's 4-lane vector type.
type Arch[V any] interface {
	Name() string
	// Load reads Lanes values from the front of s.
	Load(s []float32) V
	// Store writes v to the front of s.
	Store(v V, s []float32)
	Splat(x float32) V
	Set(x0, x1, x2, x3 float32) V
	Add(a, b V) V
	Sub(a, b V) V
	Mul(a, b V) V
	// MulAdd returns a*b + c.
	MulAdd(a, b, c V) V
	// MulSub returns a*b - c.
	MulSub(a, b, c V) V
	// NegMulAdd returns c - a*b.
	NegMulAdd(a, b, c V) V
	// NegMulSub returns -(a*b) - c.
	NegMulSub(a, b, c V) V
	// Raise shifts v up one lane and fills lane 0 with the last lane of
	// prev: [prev3 v0 v1 v2].
	Raise(v, prev V) V
	// Lower shifts v down one lane and fills the last lane with lane 0 of
	// next: [v1 v2 v3 next0].
	Lower(v, next V) V
}

// Vec4 is the emulated vector.
type Vec4 [Lanes]float32

// EmulatedArch implements Arch with per-lane loops.
type EmulatedArch struct{}

func (EmulatedArch) Name() string { return "emulated" }

func (EmulatedArch) Load(s []float32) Vec4 {
	return Vec4{s[0], s[1], s[2], s[3]}
}

func (EmulatedArch) Store(v Vec4, s []float32) {
	copy(s[:Lanes], v[:])
}

func (EmulatedArch) Splat(x float32) Vec4 { return Vec4{x, x, x, x} }

func (EmulatedArch) Set(x0, x1, x2, x3 float32) Vec4 { return Vec4{x0, x1, x2, x3} }

func (EmulatedArch) Add(a, b Vec4) Vec4 {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

func (EmulatedArch) Sub(a, b Vec4) Vec4 {
	for i := range a {
		a[i] -= b[i]
	}
	return a
}

func (EmulatedArch) Mul(a, b Vec4) Vec4 {
	for i := range a {
		a[i] *= b[i]
	}
	return a
}

func (EmulatedArch) MulAdd(a, b, c Vec4) Vec4 {
	var r Vec4
	for i := range r {
		r[i] = float32(a[i]*b[i]) + c[i]
	}
	return r
}

func (EmulatedArch) MulSub(a, b, c Vec4) Vec4 {
	var r Vec4
	for i := range r {
		r[i] = float32(a[i]*b[i]) - c[i]
	}
	return r
}

func (EmulatedArch) NegMulAdd(a, b, c Vec4) Vec4 {
	var r Vec4
	for i := range r {
		r[i] = c[i] - float32(a[i]*b[i])
	}
	return r
}

func (EmulatedArch) NegMulSub(a, b, c Vec4) Vec4 {
	var r Vec4
	for i := range r {
		r[i] = -float32(a[i]*b[i]) - c[i]
	}
	return r
}

func (EmulatedArch) Raise(v, prev Vec4) Vec4 {
	return Vec4{prev[3], v[0], v[1], v[2]}
}

func (EmulatedArch) Lower(v, next Vec4) Vec4 {
	return Vec4{v[1], v[2], v[3], next[0]}
}
