// Package sim is the simulation front end: it validates a configuration
// eagerly, owns the grid and dispatches each update to the selected backend.
package sim

import (
	"fmt"
	"strings"

	"rdsim/internal/device"
	"rdsim/internal/grid"
	"rdsim/internal/logging"
	"rdsim/internal/pattern"
	"rdsim/internal/rd"
	"rdsim/internal/simd"
)

// Logger is the logger the simulation reports to.
type Logger = logging.Logger

// Backend selects where updates run.
type Backend int

const (
	// Scalar runs the CPU stencil integrator; every stencil and every
	// inbuilt or formula rule is supported.
	Scalar Backend = iota
	// SIMD runs the 4-wide Gray-Scott integrator.
	SIMD
	// OpenCL runs an assembled kernel on a compute device.
	OpenCL
)

func (b Backend) String() string {
	switch b {
	case Scalar:
		return "scalar"
	case SIMD:
		return "simd"
	case OpenCL:
		return "opencl"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses scalar, simd or opencl.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar", "cpu":
		return Scalar, nil
	case "simd":
		return SIMD, nil
	case "opencl", "gpu":
		return OpenCL, nil
	}
	return Scalar, fmt.Errorf("unknown backend %q", s)
}

// Config is a complete, immutable simulation setup.
type Config struct {
	Rule         rd.Rule
	Parameters   rd.Parameters
	Dims         grid.Dims
	Wrap         bool
	Neighborhood rd.Neighborhood
	Backend      Backend

	// SIMD and Workers configure the SIMD backend; Workers also sets the
	// scalar row workers.
	SIMD    simd.Backend
	Workers int

	// Platform, Device and BlockX configure the OpenCL backend.
	Platform, Device int
	BlockX           int
	// Driver opens compute devices; device.OpenCL() when nil.
	Driver device.Driver

	Logger Logger
}

// DefaultConfig is the Gray-Scott model on a 256x256 wrapping grid.
func DefaultConfig() Config {
	return Config{
		Rule:         &rd.InbuiltRule{Reaction: rd.GrayScott},
		Parameters:   rd.GrayScott.Defaults.Clone(),
		Dims:         grid.Dims{X: 256, Y: 256, Z: 1},
		Wrap:         true,
		Neighborhood: rd.DefaultNeighborhood(),
		Backend:      Scalar,
		BlockX:       1,
	}
}

// ConfigFromDocument overlays the rule, parameters, neighborhood, wrap and
// grid extents of doc onto base. Backend choices stay as in base.
func ConfigFromDocument(doc *pattern.Document, base Config) (Config, error) {
	cfg := base
	rule, err := doc.BuildRule()
	if err != nil {
		return cfg, err
	}
	params, err := doc.Parameters()
	if err != nil {
		return cfg, err
	}
	n, err := doc.Neighborhood()
	if err != nil {
		return cfg, err
	}
	cfg.Rule = rule
	cfg.Parameters = params
	cfg.Neighborhood = n
	cfg.Wrap = doc.Wrap()
	if d, ok := doc.Dims(); ok {
		cfg.Dims = d
	}
	return cfg, nil
}

// Document describes cfg as a pattern file.
func (c Config) Document() *pattern.Document {
	return pattern.New(c.Rule, c.Parameters, c.Neighborhood, c.Wrap, c.Dims)
}
