// Package device manages a compute device, the compiled reaction kernel and
// the per-chemical ping-pong buffers that live on it.
package device

import "fmt"

// PlatformInfo names a platform and its devices, in ordinal order.
type PlatformInfo struct {
	Name    string
	Devices []string
}

// Driver opens devices by platform and device ordinal.
type Driver interface {
	Platforms() ([]PlatformInfo, error)
	Open(platform, device int) (Context, error)
}

// Context is an open device with a command queue.
type Context interface {
	DeviceName() string
	// Build compiles source and returns its kernel entry point.
	Build(source, kernel string) (Program, error)
	// Alloc creates a device buffer of n float32 values.
	Alloc(n int) (Buffer, error)
	// Finish blocks until every queued command completed.
	Finish() error
	Release()
}

// Program is a built kernel.
type Program interface {
	SetBuffer(arg int, b Buffer) error
	// Run dispatches the kernel over global work items.
	Run(global []int) error
	Release()
}

// Buffer is device memory holding float32 values. Reads and writes block.
type Buffer interface {
	Write(data []float32) error
	Read(data []float32) error
	Release()
}

// BuildError carries the device compiler log of a failed build.
type BuildError struct {
	Log string
	Err error
}

func (e *BuildError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("building program: %v", e.Err)
	}
	return fmt.Sprintf("building program: %v\n%s", e.Err, e.Log)
}

func (e *BuildError) Unwrap() error { return e.Err }
