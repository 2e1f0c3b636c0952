package main

import (
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rdsim/internal/grid"
	"rdsim/internal/pattern"
	"rdsim/internal/rd"
	"rdsim/internal/sim"
)

func noEnv(string) string { return "" }

func TestLoadViewerConfigDefaults(t *testing.T) {
	vc, err := loadViewerConfig(nil, noEnv, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if vc.Size != defaultSize || vc.Depth != 1 || !vc.Wrap || vc.Backend != sim.Scalar {
		t.Errorf("unexpected defaults: %+v", vc)
	}
	if vc.StepsPerFrame != defaultStepsPerFrame || vc.BlockX != 1 || vc.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", vc)
	}
	if vc.Neighborhood != rd.DefaultNeighborhood() || len(vc.Overrides) != 0 {
		t.Errorf("neighborhood %s, overrides %v", vc.Neighborhood, vc.Overrides)
	}
}

func TestLoadViewerConfigPrecedence(t *testing.T) {
	env := map[string]string{
		"RDSIM_SIZE":    "64",
		"RDSIM_BACKEND": "simd",
		"RDSIM_F":       "0.03",
	}
	vc, err := loadViewerConfig([]string{"-size", "128", "-k", "0.06", "-neighborhood", "vertex/1/laplacian"},
		func(k string) string { return env[k] }, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if vc.Size != 128 {
		t.Errorf("flag should win over env: size %d", vc.Size)
	}
	if vc.Backend != sim.SIMD {
		t.Errorf("backend from env: %s", vc.Backend)
	}
	if f, _ := vc.Overrides.Get("F"); f != 0.03 {
		t.Errorf("F override %v", f)
	}
	if k, _ := vc.Overrides.Get("k"); k != 0.06 {
		t.Errorf("k override %v", k)
	}
	if vc.Neighborhood.Type != rd.Vertex {
		t.Errorf("neighborhood %s", vc.Neighborhood)
	}
}

func TestLoadViewerConfigRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-size", "0"},
		{"-size", "big"},
		{"-backend", "cuda"},
		{"-block", "2"},
		{"-density", "2"},
		{"-neighborhood", "ring"},
		{"-F", "x"},
		{"stray"},
	} {
		if _, err := loadViewerConfig(args, noEnv, io.Discard); err == nil {
			t.Errorf("%v accepted", args)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logLevel{
		"debug": logLevelDebug, "WARNING": logLevelWarn, "error": logLevelError, "bogus": logLevelInfo,
	} {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func testSystem(t *testing.T, extra ...string) (*sim.System, viewerConfig, []pattern.Directive) {
	t.Helper()
	args := append([]string{"-size", "32", "-threads", "2", "-steps-per-frame", "3"}, extra...)
	vc, err := loadViewerConfig(args, noEnv, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg, dirs, err := buildSimConfig(vc, newLeveledLogger("error"))
	if err != nil {
		t.Fatal(err)
	}
	sys, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sys.Close)
	if err := seedSystem(sys, vc, dirs, vc.Seed); err != nil {
		t.Fatal(err)
	}
	return sys, vc, dirs
}

func TestDefaultSeedDisc(t *testing.T) {
	d := grid.Dims{X: 32, Y: 32, Z: 1}
	seed := defaultSeed(2, d, 0.1, rand.New(rand.NewSource(1)))
	if v := seed(0.5, 0.5, 0.5); v[0] != 0 || v[1] != 1 {
		t.Errorf("centre = %v", v)
	}
	v := seed(0.05, 0.05, 0.5)
	if v[0] != 1 || v[1] < 0 || v[1] >= 0.1 {
		t.Errorf("corner = %v", v)
	}
}

func TestHeadlessRunAndOutputs(t *testing.T) {
	sys, vc, dirs := testSystem(t, "-headless", "10", "-k", "0.06")
	if code := runHeadless(sys, vc, newLeveledLogger("error")); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if sys.Timesteps() != 10 {
		t.Errorf("ran %d steps", sys.Timesteps())
	}

	dir := t.TempDir()
	snap := filepath.Join(dir, "b.png")
	if err := writeSnapshot(snap, sys.Grid(), displayChemical, newPalette()); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(snap)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("snapshot is %v", b)
	}

	saved := filepath.Join(dir, "setup.xml")
	if err := savePattern(saved, sys, dirs); err != nil {
		t.Fatal(err)
	}
	vc2, err := loadViewerConfig([]string{"-pattern", saved}, noEnv, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := buildSimConfig(vc2, newLeveledLogger("error"))
	if err != nil {
		t.Fatal(err)
	}
	if k, _ := cfg.Parameters.Get("k"); k != 0.06 {
		t.Errorf("reloaded k = %v", k)
	}
	if cfg.Dims != (grid.Dims{X: 32, Y: 32, Z: 1}) {
		t.Errorf("reloaded dims %s", cfg.Dims)
	}
}

func TestPatternOverlaysSeed(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<RD format_version="1">
  <rule name="Diffusion" type="inbuilt" wrap="1">
    <param name="timestep">1</param>
    <param name="D_a">0.1</param>
  </rule>
  <grid x="16" y="16" z="1"/>
  <initial_pattern_generator apply_when_loading="true">
    <overlay chemical="a">
      <overwrite/>
      <constant value="0.5"/>
      <everywhere/>
    </overlay>
  </initial_pattern_generator>
</RD>
`
	path := filepath.Join(t.TempDir(), "p.xml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	sys, _, dirs := testSystem(t, "-pattern", path)
	if len(dirs) != 1 || sys.Grid().Chemicals() != 1 {
		t.Fatalf("%d overlays, %d chemicals", len(dirs), sys.Grid().Chemicals())
	}
	for i, v := range sys.Grid().Front()[0] {
		if v != 0.5 {
			t.Fatalf("cell %d = %v", i, v)
		}
	}
	if name := describeRule(sys.Config().Rule); !strings.Contains(name, "Diffusion") {
		t.Errorf("describeRule = %q", name)
	}
}

func TestStampDiscWraps(t *testing.T) {
	g, err := grid.New(grid.Dims{X: 8, Y: 8, Z: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	n := stampDisc(g, precomputeFootprint(1), 0, 0, 0, 1, 1, true)
	if n != 5 || g.At(1, 7, 0, 0) != 1 || g.At(1, 0, 7, 0) != 1 {
		t.Errorf("wrapped stamp touched %d cells", n)
	}
	g2, _ := grid.New(grid.Dims{X: 8, Y: 8, Z: 1}, 2)
	if n := stampDisc(g2, precomputeFootprint(1), 0, 0, 0, 1, 1, false); n != 3 {
		t.Errorf("clamped stamp touched %d cells", n)
	}
}
