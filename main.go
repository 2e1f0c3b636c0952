// Command rdsim runs a reaction-diffusion simulation in a window, or
// headless for a fixed number of steps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"rdsim/internal/device"
	"rdsim/internal/pattern"
	"rdsim/internal/sim"
	"rdsim/internal/simd"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a clean quit, -1 when the
// arguments are invalid or the simulation cannot be set up.
func run() int {
	vc, err := loadFromEnvironment()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "rdsim:", err)
		return -1
	}
	logger := newLeveledLogger(vc.LogLevel)
	runtime.GOMAXPROCS(runtime.NumCPU())

	if vc.CPUProfile != "" {
		stop, err := startCPUProfile(vc.CPUProfile)
		if err != nil {
			logger.Errorf("starting CPU profile: %v", err)
			return -1
		}
		defer stop()
	}

	if vc.ListDevices {
		return listDevices(device.OpenCL())
	}

	cfg, dirs, err := buildSimConfig(vc, logger)
	if err != nil {
		logger.Errorf("%v", err)
		return -1
	}
	if vc.DumpKernel {
		return dumpKernel(cfg, logger)
	}
	logger.Debugf("cpu: %s", simd.Features())

	sys, err := sim.New(cfg)
	if err != nil {
		logger.Errorf("configuring %s: %v", describeRule(cfg.Rule), err)
		return -1
	}
	defer sys.Close()
	if err := seedSystem(sys, vc, dirs, vc.Seed); err != nil {
		logger.Errorf("seeding: %v", err)
		return -1
	}

	var code int
	if vc.Headless > 0 {
		code = runHeadless(sys, vc, logger)
	} else {
		code = runWindow(sys, vc, dirs, logger)
	}

	if vc.Snapshot != "" {
		if err := writeSnapshot(vc.Snapshot, sys.Grid(), displayChemical%sys.Grid().Chemicals(), newPalette()); err != nil {
			logger.Errorf("writing snapshot: %v", err)
			code = -1
		} else {
			logger.Infof("wrote %s after %d steps", vc.Snapshot, sys.Timesteps())
		}
	}
	if vc.Save != "" {
		if err := savePattern(vc.Save, sys, dirs); err != nil {
			logger.Errorf("saving pattern: %v", err)
			code = -1
		} else {
			sys.ClearModified()
		}
	}
	return code
}

func listDevices(driver device.Driver) int {
	platforms, err := driver.Platforms()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rdsim:", err)
		return -1
	}
	for i, p := range platforms {
		fmt.Printf("platform %d: %s\n", i, p.Name)
		for j, d := range p.Devices {
			fmt.Printf("  device %d: %s\n", j, d)
		}
	}
	return 0
}

// dumpKernel prints the kernel the OpenCL backend would build for cfg. No
// device is opened.
func dumpKernel(cfg sim.Config, log *leveledLogger) int {
	cfg.Backend = sim.OpenCL
	sys, err := sim.New(cfg)
	if err != nil {
		log.Errorf("assembling kernel: %v", err)
		return -1
	}
	defer sys.Close()
	fmt.Print(sys.KernelSource())
	return 0
}

// runHeadless advances the system by vc.Headless steps in batches,
// reporting progress. An interrupt stops early without an error.
func runHeadless(sys *sim.System, vc viewerConfig, log *leveledLogger) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	start := time.Now()
	lastLog := start
	for sys.Timesteps() < vc.Headless {
		n := vc.StepsPerFrame
		if left := vc.Headless - sys.Timesteps(); n > left {
			n = left
		}
		if _, err := sys.Update(ctx, n); err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warnf("interrupted after %d steps", sys.Timesteps())
				return 0
			}
			log.Errorf("update failed after %d steps: %v", sys.Timesteps(), err)
			return -1
		}
		if now := time.Now(); now.Sub(lastLog) >= headlessLogInterval {
			log.Infof("%d/%d steps (%.0f steps/s)", sys.Timesteps(), vc.Headless,
				float64(sys.Timesteps())/now.Sub(start).Seconds())
			lastLog = now
		}
	}
	log.Infof("%d steps in %s", sys.Timesteps(), time.Since(start).Round(time.Millisecond))
	return 0
}

func runWindow(sys *sim.System, vc viewerConfig, dirs []pattern.Directive, log *leveledLogger) int {
	d := sys.Grid().Dims()
	ebiten.SetWindowSize(d.X*windowScale, d.Y*windowScale)
	ebiten.SetWindowTitle(fmt.Sprintf("rdsim: %s, %s backend", describeRule(sys.Config().Rule), vc.Backend))
	ebiten.SetTPS(int(defaultTPS))
	if err := ebiten.RunGame(newGame(sys, vc, dirs, log)); err != nil {
		log.Errorf("%v", err)
		return -1
	}
	return 0
}
