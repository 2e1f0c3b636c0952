//go:build !(amd64 && goexperiment.simd)

package simd

const nativeCompiled = false

func newNativeKernel(kernelParams) rowKernel { return nil }
