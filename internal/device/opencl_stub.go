//go:build !opencl

package device

import "errors"

var errUnavailable = errors.New("OpenCL support is not enabled; rebuild with -tags opencl")

// OpenCL returns a driver whose every call fails because the binary was
// built without the opencl tag.
func OpenCL() Driver { return unavailableDriver{} }

type unavailableDriver struct{}

func (unavailableDriver) Platforms() ([]PlatformInfo, error) { return nil, errUnavailable }

func (unavailableDriver) Open(int, int) (Context, error) { return nil, errUnavailable }
