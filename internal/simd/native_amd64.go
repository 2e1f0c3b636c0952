//go:build amd64 && goexperiment.simd

package simd

import "simd/archsimd"

const nativeCompiled = true

// NativeArch implements Arch with packed 128-bit floats. Multiply-add is not
// fused so results track the emulated backend closely.
type NativeArch struct{}

func (NativeArch) Name() string { return "native" }

func (NativeArch) Load(s []float32) archsimd.Float32x4 {
	return archsimd.LoadFloat32x4Slice(s)
}

func (NativeArch) Store(v archsimd.Float32x4, s []float32) {
	v.StoreSlice(s)
}

func (NativeArch) Splat(x float32) archsimd.Float32x4 {
	return archsimd.BroadcastFloat32x4(x)
}

func (NativeArch) Set(x0, x1, x2, x3 float32) archsimd.Float32x4 {
	arr := [Lanes]float32{x0, x1, x2, x3}
	return archsimd.LoadFloat32x4(&arr)
}

func (NativeArch) Add(a, b archsimd.Float32x4) archsimd.Float32x4 { return a.Add(b) }

func (NativeArch) Sub(a, b archsimd.Float32x4) archsimd.Float32x4 { return a.Sub(b) }

func (NativeArch) Mul(a, b archsimd.Float32x4) archsimd.Float32x4 { return a.Mul(b) }

func (NativeArch) MulAdd(a, b, c archsimd.Float32x4) archsimd.Float32x4 {
	return a.Mul(b).Add(c)
}

func (NativeArch) MulSub(a, b, c archsimd.Float32x4) archsimd.Float32x4 {
	return a.Mul(b).Sub(c)
}

func (NativeArch) NegMulAdd(a, b, c archsimd.Float32x4) archsimd.Float32x4 {
	return c.Sub(a.Mul(b))
}

func (NativeArch) NegMulSub(a, b, c archsimd.Float32x4) archsimd.Float32x4 {
	return archsimd.BroadcastFloat32x4(0).Sub(a.Mul(b)).Sub(c)
}

func (NativeArch) Raise(v, prev archsimd.Float32x4) archsimd.Float32x4 {
	var va, pa [Lanes]float32
	v.Store(&va)
	prev.Store(&pa)
	out := [Lanes]float32{pa[3], va[0], va[1], va[2]}
	return archsimd.LoadFloat32x4(&out)
}

func (NativeArch) Lower(v, next archsimd.Float32x4) archsimd.Float32x4 {
	var va, na [Lanes]float32
	v.Store(&va)
	next.Store(&na)
	out := [Lanes]float32{va[1], va[2], va[3], na[0]}
	return archsimd.LoadFloat32x4(&out)
}

func newNativeKernel(p kernelParams) rowKernel {
	return newKernel[archsimd.Float32x4](NativeArch{}, p)
}
