package sim

import (
	"context"
	"errors"
	"fmt"

	"rdsim/internal/device"
	"rdsim/internal/grid"
	"rdsim/internal/integrate"
	"rdsim/internal/kernel"
	"rdsim/internal/logging"
	"rdsim/internal/rd"
	"rdsim/internal/simd"
	"rdsim/internal/stencil"
)

// System owns one grid and advances it with the configured backend.
// Setters validate the new configuration completely before changing
// anything, so a rejected change leaves the system as it was.
type System struct {
	cfg       Config
	grid      *grid.Grid
	table     *stencil.Table
	timestep  float32
	newUpdate func() (rd.CellUpdate, error)
	source    string
	vec       *simd.Integrator
	dev       *device.Manager
	timesteps int
	modified  bool
	log       Logger
}

// New validates cfg and allocates a zeroed grid.
func New(cfg Config) (*System, error) {
	p, err := newPlan(cfg)
	if err != nil {
		return nil, err
	}
	g, err := grid.New(cfg.Dims, p.chemicals)
	if err != nil {
		return nil, err
	}
	s := &System{log: logging.OrNoOp(cfg.Logger)}
	if err := s.commit(p, g); err != nil {
		return nil, err
	}
	s.modified = false
	s.log.Infof("%s rule on %s, %s stencil, %s backend", cfg.Rule.Kind(), cfg.Dims, s.stencilName(), cfg.Backend)
	return s, nil
}

func (s *System) stencilName() string {
	if s.table == nil {
		return "kernel-defined"
	}
	return s.table.Name
}

// commit installs a validated plan. g replaces the grid when non-nil.
func (s *System) commit(p *plan, g *grid.Grid) error {
	if p.cfg.Backend == OpenCL {
		if s.dev == nil {
			driver := p.cfg.Driver
			if driver == nil {
				driver = device.OpenCL()
			}
			s.dev = device.NewManager(driver, s.log)
		}
		if err := s.dev.SetDims(p.cfg.Dims, p.chemicals, p.cfg.BlockX); err != nil {
			return err
		}
		s.dev.SetPlatform(p.cfg.Platform)
		s.dev.SetDevice(p.cfg.Device)
		s.dev.SetKernel(p.source, kernel.Name)
	} else if s.dev != nil {
		s.dev.Close()
		s.dev = nil
	}
	if g != nil {
		s.grid = g
		s.timesteps = 0
	}
	if s.dev != nil {
		// the host copy is current after every update
		s.dev.MarkHostDirty()
	}
	s.cfg = p.cfg
	s.table = p.table
	s.timestep = p.timestep
	s.newUpdate = p.newUpdate
	s.source = p.source
	s.vec = p.vec
	s.modified = true
	if p.vec != nil {
		s.log.Debugf("simd: %s arch, %d workers", p.vec.Backend(), p.vec.Workers())
	}
	return nil
}

// reconfigure validates cfg and commits it, keeping the grid when the
// extents and chemical count are unchanged.
func (s *System) reconfigure(cfg Config) error {
	p, err := newPlan(cfg)
	if err != nil {
		return err
	}
	var g *grid.Grid
	if cfg.Dims != s.grid.Dims() || p.chemicals != s.grid.Chemicals() {
		if g, err = grid.New(cfg.Dims, p.chemicals); err != nil {
			return err
		}
	}
	return s.commit(p, g)
}

// Config returns a copy of the current configuration.
func (s *System) Config() Config {
	c := s.cfg
	c.Parameters = c.Parameters.Clone()
	return c
}

// Grid returns the live grid. Edits through it must be followed by
// MarkFieldsEdited.
func (s *System) Grid() *grid.Grid { return s.grid }

// Timesteps is the number of steps taken since the grid was allocated.
func (s *System) Timesteps() int { return s.timesteps }

// IsModified reports whether the setup or the fields changed since the
// last ClearModified.
func (s *System) IsModified() bool { return s.modified }

// ClearModified resets the modified flag, typically after saving.
func (s *System) ClearModified() { s.modified = false }

// KernelSource returns the OpenCL source in use, or "" on CPU backends.
func (s *System) KernelSource() string { return s.source }

// DeviceName returns the open compute device, or "".
func (s *System) DeviceName() string {
	if s.dev == nil {
		return ""
	}
	return s.dev.DeviceName()
}

// Platforms lists the compute devices the OpenCL driver can see.
func (s *System) Platforms() ([]device.PlatformInfo, error) {
	if s.dev != nil {
		return s.dev.Platforms()
	}
	driver := s.cfg.Driver
	if driver == nil {
		driver = device.OpenCL()
	}
	return driver.Platforms()
}

// Update advances the grid by steps and returns the number of steps
// taken. OpenCL runs steps in pairs, so odd counts are rounded up.
func (s *System) Update(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}
	var (
		n   int
		err error
	)
	switch s.cfg.Backend {
	case Scalar:
		err = integrate.Advance(ctx, integrate.Config{
			Stencil:   s.table,
			Wrap:      s.cfg.Wrap,
			Timestep:  s.timestep,
			NewUpdate: s.newUpdate,
			Workers:   s.cfg.Workers,
		}, s.grid, steps)
		n = steps
	case SIMD:
		if err = ctx.Err(); err == nil {
			f := s.grid.Front()
			err = s.vec.Advance(f[0], f[1], steps)
			n = steps
		}
	case OpenCL:
		n, err = s.dev.Update(s.grid, steps)
	default:
		err = fmt.Errorf("unknown backend %d", int(s.cfg.Backend))
	}
	if err != nil {
		return 0, err
	}
	s.timesteps += n
	return n, nil
}

// Seed fills the grid from fn and resets the step count.
func (s *System) Seed(fn grid.SeedFunc) error {
	if err := s.grid.Seed(fn); err != nil {
		return err
	}
	s.timesteps = 0
	s.MarkFieldsEdited()
	return nil
}

// MarkFieldsEdited records a host-side edit of the grid values so the next
// device update uploads them.
func (s *System) MarkFieldsEdited() {
	if s.dev != nil {
		s.dev.MarkHostDirty()
	}
	s.modified = true
}

// SetParameter sets or adds one parameter.
func (s *System) SetParameter(name string, v float32) error {
	cfg := s.cfg
	cfg.Parameters = cfg.Parameters.Clone()
	cfg.Parameters.Set(name, v)
	return s.reconfigure(cfg)
}

// DeleteParameter removes a parameter.
func (s *System) DeleteParameter(name string) error {
	cfg := s.cfg
	cfg.Parameters = cfg.Parameters.Clone()
	if !cfg.Parameters.Delete(name) {
		return fmt.Errorf("no parameter %q", name)
	}
	return s.reconfigure(cfg)
}

// SetParameters replaces the parameter list.
func (s *System) SetParameters(p rd.Parameters) error {
	cfg := s.cfg
	cfg.Parameters = p.Clone()
	return s.reconfigure(cfg)
}

// SetFormula replaces the text of a formula rule.
func (s *System) SetFormula(text string) error {
	r, ok := s.cfg.Rule.(*rd.FormulaRule)
	if !ok {
		return fmt.Errorf("cannot edit the formula of a %s rule", s.cfg.Rule.Kind())
	}
	cfg := s.cfg
	cfg.Rule = &rd.FormulaRule{NumChemicals: r.NumChemicals, Formula: text}
	return s.reconfigure(cfg)
}

// SetKernelSource replaces the source of a kernel rule.
func (s *System) SetKernelSource(src string) error {
	r, ok := s.cfg.Rule.(*rd.KernelRule)
	if !ok {
		return fmt.Errorf("cannot edit the kernel of a %s rule", s.cfg.Rule.Kind())
	}
	cfg := s.cfg
	cfg.Rule = &rd.KernelRule{NumChemicals: r.NumChemicals, Source: src}
	return s.reconfigure(cfg)
}

// SetRule replaces the rule and its parameters. A different chemical count
// reallocates the grid.
func (s *System) SetRule(rule rd.Rule, params rd.Parameters) error {
	cfg := s.cfg
	cfg.Rule = rule
	cfg.Parameters = params.Clone()
	return s.reconfigure(cfg)
}

// SetDims reallocates the grid with new extents. Values reset to zero.
func (s *System) SetDims(d grid.Dims) error {
	cfg := s.cfg
	cfg.Dims = d
	p, err := newPlan(cfg)
	if err != nil {
		return err
	}
	g, err := grid.New(d, p.chemicals)
	if err != nil {
		return err
	}
	return s.commit(p, g)
}

// SetNeighborhood selects a different stencil.
func (s *System) SetNeighborhood(n rd.Neighborhood) error {
	cfg := s.cfg
	cfg.Neighborhood = n
	return s.reconfigure(cfg)
}

// SetWrap switches between toroidal and clamped boundaries.
func (s *System) SetWrap(wrap bool) error {
	cfg := s.cfg
	cfg.Wrap = wrap
	return s.reconfigure(cfg)
}

// SetBackend moves the simulation to another backend. The grid is kept.
func (s *System) SetBackend(b Backend) error {
	cfg := s.cfg
	cfg.Backend = b
	return s.reconfigure(cfg)
}

// SetPlatform selects the OpenCL platform. The context is rebuilt on the
// next update.
func (s *System) SetPlatform(i int) error {
	if i < 0 {
		return errors.New("negative platform index")
	}
	cfg := s.cfg
	cfg.Platform, cfg.Device = i, 0
	return s.reconfigure(cfg)
}

// SetDevice selects the device within the current platform.
func (s *System) SetDevice(i int) error {
	if i < 0 {
		return errors.New("negative device index")
	}
	cfg := s.cfg
	cfg.Device = i
	return s.reconfigure(cfg)
}

// Close releases device resources.
func (s *System) Close() {
	if s.dev != nil {
		s.dev.Close()
		s.dev = nil
	}
}
