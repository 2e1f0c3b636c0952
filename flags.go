package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rdsim/internal/rd"
	"rdsim/internal/sim"
	"rdsim/internal/simd"
)

// viewerConfig is everything the command line and RDSIM_* environment
// variables can set.
type viewerConfig struct {
	Size, Depth   int
	Wrap          bool
	Threads       int
	Density       float64
	Backend       sim.Backend
	SIMD          simd.Backend
	Platform      int
	Device        int
	BlockX        int
	Pattern       string
	StepsPerFrame int
	Neighborhood  rd.Neighborhood
	// Overrides are parameter values given explicitly; they win over the
	// rule defaults and the pattern file.
	Overrides   rd.Parameters
	Seed        int64
	ListDevices bool
	DumpKernel  bool
	Snapshot    string
	Save        string
	Headless    int
	CPUProfile  string
	LogLevel    string
	Debug       bool
}

// configResolver resolves one option from its flag, then its environment
// variable, then its default.
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*viewerConfig, string) error
}

func intSetter(dst func(*viewerConfig) *int, min int) func(*viewerConfig, string) error {
	return func(c *viewerConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n < min {
			return fmt.Errorf("must be at least %d", min)
		}
		*dst(c) = n
		return nil
	}
}

func boolSetter(dst func(*viewerConfig) *bool) func(*viewerConfig, string) error {
	return func(c *viewerConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func stringSetter(dst func(*viewerConfig) *string) func(*viewerConfig, string) error {
	return func(c *viewerConfig, v string) error {
		*dst(c) = v
		return nil
	}
}

// paramSetter records an explicit parameter value. Empty means unset.
func paramSetter(name string) func(*viewerConfig, string) error {
	return func(c *viewerConfig, v string) error {
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return err
		}
		c.Overrides.Set(name, float32(f))
		return nil
	}
}

func resolvers() []configResolver {
	return []configResolver{
		{"size", "RDSIM_SIZE", strconv.Itoa(defaultSize), "grid width and height in cells",
			intSetter(func(c *viewerConfig) *int { return &c.Size }, 1)},
		{"depth", "RDSIM_DEPTH", "1", "grid depth in cells; 1 for a 2D grid",
			intSetter(func(c *viewerConfig) *int { return &c.Depth }, 1)},
		{"wrap", "RDSIM_WRAP", "true", "toroidal boundaries (sizes must be powers of two)",
			boolSetter(func(c *viewerConfig) *bool { return &c.Wrap })},
		{"threads", "RDSIM_THREADS", "0", "CPU worker goroutines; 0 detects the core count",
			intSetter(func(c *viewerConfig) *int { return &c.Threads }, 0)},
		{"F", "RDSIM_F", "", "Gray-Scott feed rate", paramSetter("F")},
		{"k", "RDSIM_K", "", "Gray-Scott kill rate", paramSetter("k")},
		{"Da", "RDSIM_DA", "", "diffusion rate of a", paramSetter("D_a")},
		{"Db", "RDSIM_DB", "", "diffusion rate of b", paramSetter("D_b")},
		{"timestep", "RDSIM_TIMESTEP", "", "Euler timestep", paramSetter(rd.TimestepName)},
		{"density", "RDSIM_DENSITY", strconv.FormatFloat(defaultDensity, 'g', -1, 64), "amplitude of the initial noise on b",
			func(c *viewerConfig, v string) error {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return err
				}
				if f < 0 || f > 1 {
					return fmt.Errorf("density %v is outside [0, 1]", f)
				}
				c.Density = f
				return nil
			}},
		{"backend", "RDSIM_BACKEND", "scalar", "integration backend: scalar, simd or opencl",
			func(c *viewerConfig, v string) (err error) {
				c.Backend, err = sim.ParseBackend(v)
				return err
			}},
		{"simd", "RDSIM_SIMD", "auto", "vector implementation for -backend simd: auto, emulated or native",
			func(c *viewerConfig, v string) (err error) {
				c.SIMD, err = simd.ParseBackend(v)
				return err
			}},
		{"platform", "RDSIM_PLATFORM", "0", "OpenCL platform ordinal",
			intSetter(func(c *viewerConfig) *int { return &c.Platform }, 0)},
		{"device", "RDSIM_DEVICE", "0", "OpenCL device ordinal within the platform",
			intSetter(func(c *viewerConfig) *int { return &c.Device }, 0)},
		{"block", "RDSIM_BLOCK", "1", "cells per OpenCL work item along x: 1 or 4",
			intSetter(func(c *viewerConfig) *int { return &c.BlockX }, 1)},
		{"pattern", "RDSIM_PATTERN", "", "pattern XML file to load",
			stringSetter(func(c *viewerConfig) *string { return &c.Pattern })},
		{"steps-per-frame", "RDSIM_STEPS_PER_FRAME", strconv.Itoa(defaultStepsPerFrame), "simulation steps per displayed frame",
			intSetter(func(c *viewerConfig) *int { return &c.StepsPerFrame }, minStepsPerFrame)},
		{"neighborhood", "RDSIM_NEIGHBORHOOD", rd.DefaultNeighborhood().String(), "stencil as type/range/weight, e.g. vertex/1/laplacian",
			func(c *viewerConfig, v string) (err error) {
				c.Neighborhood, err = rd.ParseNeighborhood(v)
				return err
			}},
		{"seed", "RDSIM_SEED", "1", "random seed for the initial pattern",
			func(c *viewerConfig, v string) (err error) {
				c.Seed, err = strconv.ParseInt(v, 10, 64)
				return err
			}},
		{"list-devices", "RDSIM_LIST_DEVICES", "false", "list OpenCL platforms and devices, then exit",
			boolSetter(func(c *viewerConfig) *bool { return &c.ListDevices })},
		{"dump-kernel", "RDSIM_DUMP_KERNEL", "false", "print the generated OpenCL kernel, then exit",
			boolSetter(func(c *viewerConfig) *bool { return &c.DumpKernel })},
		{"snapshot", "RDSIM_SNAPSHOT", "", "write a PNG of chemical b here on exit",
			stringSetter(func(c *viewerConfig) *string { return &c.Snapshot })},
		{"save", "RDSIM_SAVE", "", "write the setup as a pattern XML file here on exit",
			stringSetter(func(c *viewerConfig) *string { return &c.Save })},
		{"headless", "RDSIM_HEADLESS", "0", "run this many steps without a window, then exit",
			intSetter(func(c *viewerConfig) *int { return &c.Headless }, 0)},
		{"cpuprofile", "RDSIM_CPUPROFILE", "", "write a CPU profile here",
			stringSetter(func(c *viewerConfig) *string { return &c.CPUProfile })},
		{"log-level", "RDSIM_LOG_LEVEL", "info", "log level: debug, info, warn, error",
			stringSetter(func(c *viewerConfig) *string { return &c.LogLevel })},
		{"debug", "RDSIM_DEBUG", "false", "show FPS and simulation speed overlay",
			boolSetter(func(c *viewerConfig) *bool { return &c.Debug })},
	}
}

// loadViewerConfig parses args, filling every option not given on the
// command line from RDSIM_* variables looked up with getenv.
func loadViewerConfig(args []string, getenv func(string) string, output io.Writer) (viewerConfig, error) {
	var cfg viewerConfig
	fs := flag.NewFlagSet("rdsim", flag.ContinueOnError)
	fs.SetOutput(output)
	rs := resolvers()
	flagVars := make(map[string]*string, len(rs))
	for _, r := range rs {
		flagVars[r.flagName] = fs.String(r.flagName, "", r.description+" (env "+r.envVarName+")")
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	for _, r := range rs {
		value := r.defaultVal
		if v := *flagVars[r.flagName]; v != "" {
			value = v
		} else if v := getenv(r.envVarName); v != "" {
			value = v
		}
		if err := r.setter(&cfg, value); err != nil {
			return cfg, fmt.Errorf("-%s=%q: %w", r.flagName, value, err)
		}
	}
	if cfg.BlockX != 1 && cfg.BlockX != 4 {
		return cfg, fmt.Errorf("-block must be 1 or 4, got %d", cfg.BlockX)
	}
	return cfg, nil
}

// loadFromEnvironment is loadViewerConfig over the process arguments.
func loadFromEnvironment() (viewerConfig, error) {
	return loadViewerConfig(os.Args[1:], os.Getenv, os.Stderr)
}
