package main

import (
	"fmt"
	"math/rand"
	"os"

	"rdsim/internal/grid"
	"rdsim/internal/pattern"
	"rdsim/internal/rd"
	"rdsim/internal/sim"
	"rdsim/internal/simd"
)

// buildSimConfig turns the viewer options into a simulation setup. A pattern
// file replaces the rule, parameters, neighborhood, wrap and grid extents;
// explicit parameter flags are applied last.
func buildSimConfig(vc viewerConfig, log sim.Logger) (sim.Config, []pattern.Directive, error) {
	c := sim.DefaultConfig()
	c.Dims = grid.Dims{X: vc.Size, Y: vc.Size, Z: vc.Depth}
	c.Wrap = vc.Wrap
	c.Neighborhood = vc.Neighborhood
	c.Backend = vc.Backend
	c.SIMD = vc.SIMD
	c.Workers = vc.Threads
	if c.Workers == 0 {
		c.Workers = simd.DefaultWorkers()
	}
	c.Platform, c.Device, c.BlockX = vc.Platform, vc.Device, vc.BlockX
	c.Logger = log

	var dirs []pattern.Directive
	if vc.Pattern != "" {
		f, err := os.Open(vc.Pattern)
		if err != nil {
			return c, nil, err
		}
		doc, err := pattern.Load(f)
		f.Close()
		if err != nil {
			return c, nil, fmt.Errorf("%s: %w", vc.Pattern, err)
		}
		if c, err = sim.ConfigFromDocument(doc, c); err != nil {
			return c, nil, fmt.Errorf("%s: %w", vc.Pattern, err)
		}
		if doc.Generator != nil && doc.Generator.ApplyWhenLoading {
			if dirs, err = doc.Generator.Directives(); err != nil {
				return c, nil, fmt.Errorf("%s: %w", vc.Pattern, err)
			}
		}
		log.Infof("loaded %s: %s rule, %d parameters, %d overlays", vc.Pattern, c.Rule.Kind(), len(c.Parameters), len(dirs))
	}
	c.Parameters = c.Parameters.Clone()
	for _, p := range vc.Overrides {
		c.Parameters.Set(p.Name, p.Value)
	}
	return c, dirs, nil
}

// defaultSeed is a=1 with noise of amplitude density on the other chemicals,
// plus a disc of a=0, b=1 at the centre.
func defaultSeed(chemicals int, d grid.Dims, density float64, rng *rand.Rand) grid.SeedFunc {
	r := float64(seedRadius)
	return func(x, y, z float64) []float32 {
		vals := make([]float32, chemicals)
		vals[0] = 1
		for c := 1; c < chemicals; c++ {
			vals[c] = float32(density * rng.Float64())
		}
		dx := (x - 0.5) * float64(d.X)
		dy := (y - 0.5) * float64(d.Y)
		dz := (z - 0.5) * float64(d.Z)
		if d.Z == 1 {
			dz = 0
		}
		if chemicals > 1 && dx*dx+dy*dy+dz*dz <= r*r {
			vals[0], vals[1] = 0, 1
		}
		return vals
	}
}

// seedSystem writes the initial pattern: the overlays when a pattern file
// supplied them, otherwise the default seed.
func seedSystem(sys *sim.System, vc viewerConfig, dirs []pattern.Directive, seed int64) error {
	g := sys.Grid()
	rng := rand.New(rand.NewSource(seed))
	if err := sys.Seed(defaultSeed(g.Chemicals(), g.Dims(), vc.Density, rng)); err != nil {
		return err
	}
	if len(dirs) == 0 {
		return nil
	}
	if err := pattern.Apply(dirs, g, seed); err != nil {
		return err
	}
	sys.MarkFieldsEdited()
	return nil
}

// savePattern writes the current setup and its overlays to path.
func savePattern(path string, sys *sim.System, dirs []pattern.Directive) error {
	doc := sys.Config().Document()
	if len(dirs) > 0 {
		doc.Generator = &pattern.Generator{ApplyWhenLoading: true}
		for _, d := range dirs {
			doc.Generator.Overlays = append(doc.Generator.Overlays, d.Overlay())
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// describeRule names the rule for log lines.
func describeRule(r rd.Rule) string {
	if ir, ok := r.(*rd.InbuiltRule); ok {
		return ir.Reaction.Name
	}
	return r.Kind().String() + " rule"
}
