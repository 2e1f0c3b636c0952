package simd

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"

	"rdsim/internal/rd"
)

// Backend selects the Arch implementation.
type Backend int

const (
	// Auto picks Native when it is compiled in and the CPU supports it.
	Auto Backend = iota
	Emulated
	Native
)

func (b Backend) String() string {
	switch b {
	case Auto:
		return "auto"
	case Emulated:
		return "emulated"
	case Native:
		return "native"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses auto, emulated or native.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "emulated":
		return Emulated, nil
	case "native":
		return Native, nil
	}
	return Auto, fmt.Errorf("unknown SIMD backend %q", s)
}

// hasVectorISA reports whether the CPU has the instructions the native
// backend is compiled for.
func hasVectorISA() bool {
	switch runtime.GOARCH {
	case "amd64":
		// archsimd emits the 128-bit float ops VEX-encoded, so SSE2 alone is not enough.
		return cpu.X86.HasAVX
	case "arm64":
		return cpu.ARM64.HasASIMD
	}
	return false
}

// NativeAvailable reports whether the native backend can run here.
func NativeAvailable() bool {
	return nativeCompiled && hasVectorISA()
}

// Resolve turns Auto into a concrete backend and rejects Native when it
// cannot run.
func Resolve(b Backend) (Backend, error) {
	switch b {
	case Auto:
		if NativeAvailable() {
			return Native, nil
		}
		return Emulated, nil
	case Emulated:
		return Emulated, nil
	case Native:
		if !NativeAvailable() {
			return Emulated, fmt.Errorf("%w: native SIMD is not available (%s, compiled=%v)",
				rd.ErrUnsupportedBackend, Features(), nativeCompiled)
		}
		return Native, nil
	}
	return Emulated, fmt.Errorf("unknown SIMD backend %d", int(b))
}

// Features describes the detected vector extensions for logging.
func Features() string {
	var have []string
	switch runtime.GOARCH {
	case "amd64":
		for _, f := range []struct {
			name string
			ok   bool
		}{
			{"sse2", cpu.X86.HasSSE2},
			{"sse41", cpu.X86.HasSSE41},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
		} {
			if f.ok {
				have = append(have, f.name)
			}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			have = append(have, "asimd")
		}
	}
	if len(have) == 0 {
		return runtime.GOARCH
	}
	return runtime.GOARCH + "/" + strings.Join(have, ",")
}

// DefaultWorkers is the hardware concurrency, or 3 when it cannot be
// determined.
func DefaultWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 3
}
