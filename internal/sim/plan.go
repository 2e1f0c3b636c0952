package sim

import (
	"errors"
	"fmt"

	"rdsim/internal/formula"
	"rdsim/internal/kernel"
	"rdsim/internal/rd"
	"rdsim/internal/simd"
	"rdsim/internal/stencil"
)

// plan is a validated Config with everything its backend needs prepared.
// Building a plan has no side effects, so a rejected configuration leaves
// the running system untouched.
type plan struct {
	cfg       Config
	chemicals int
	table     *stencil.Table
	timestep  float32
	newUpdate func() (rd.CellUpdate, error)
	source    string
	vec       *simd.Integrator
}

func unsupported(rule rd.Rule, b Backend) error {
	return fmt.Errorf("%w: %s rule on the %s backend", rd.ErrUnsupportedBackend, rule.Kind(), b)
}

func newPlan(cfg Config) (*plan, error) {
	if cfg.Rule == nil {
		return nil, errors.New("no rule")
	}
	if r, ok := cfg.Rule.(*rd.InbuiltRule); ok && r.Reaction == nil {
		return nil, errors.New("inbuilt rule without a reaction")
	}
	p := &plan{cfg: cfg, chemicals: cfg.Rule.Chemicals()}
	if p.chemicals < 1 {
		return nil, fmt.Errorf("rule has %d chemicals", p.chemicals)
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, err
	}
	dt, err := cfg.Parameters.Timestep()
	if err != nil {
		return nil, err
	}
	p.timestep = dt
	if err := cfg.Dims.Validate(p.chemicals, cfg.Wrap); err != nil {
		return nil, err
	}
	if cfg.Backend == OpenCL {
		bx := cfg.BlockX
		if bx == 0 {
			bx = 1
		}
		if bx != 1 && bx != 4 {
			return nil, fmt.Errorf("OpenCL block size %d is not 1 or 4", bx)
		}
		if cfg.Dims.X%bx != 0 {
			return nil, fmt.Errorf("grid width %d is not a multiple of the block size %d", cfg.Dims.X, bx)
		}
		p.cfg.BlockX = bx
	}

	dim := cfg.Dims.Dimensionality()
	if _, isKernel := cfg.Rule.(*rd.KernelRule); !isKernel {
		if p.table, err = stencil.Lookup(dim, cfg.Neighborhood); err != nil {
			return nil, err
		}
	}

	// formula text for kernel assembly
	var text string
	switch r := cfg.Rule.(type) {
	case *rd.InbuiltRule:
		params := cfg.Parameters
		if _, err := r.Reaction.Bind(params); err != nil {
			return nil, err
		}
		p.newUpdate = func() (rd.CellUpdate, error) { return r.Reaction.Bind(params) }
		text = r.Reaction.Formula
	case *rd.FormulaRule:
		prog, err := formula.Compile(r.Formula, r.NumChemicals, cfg.Parameters.Names())
		if err != nil {
			return nil, err
		}
		params := cfg.Parameters
		if _, err := prog.Bind(params); err != nil {
			return nil, err
		}
		p.newUpdate = func() (rd.CellUpdate, error) { return prog.Bind(params) }
		text = r.Formula
	case *rd.KernelRule:
		if cfg.Backend != OpenCL {
			return nil, unsupported(r, cfg.Backend)
		}
		if r.Source == "" {
			return nil, errors.New("kernel rule has no source")
		}
		p.source = r.Source
	default:
		return nil, fmt.Errorf("unknown rule type %T", cfg.Rule)
	}

	switch cfg.Backend {
	case Scalar:
	case SIMD:
		r, ok := cfg.Rule.(*rd.InbuiltRule)
		if !ok || r.Reaction != rd.GrayScott {
			return nil, unsupported(cfg.Rule, SIMD)
		}
		if dim != 2 || p.table.Name != "5-point" {
			return nil, fmt.Errorf("%w: the SIMD backend runs the 2D 5-point stencil only, got %s on %s",
				rd.ErrUnsupportedBackend, p.table.Name, cfg.Dims)
		}
		gs, err := simd.GrayScottParams(cfg.Parameters)
		if err != nil {
			return nil, err
		}
		p.vec, err = simd.New(simd.Config{
			Width: cfg.Dims.X, Height: cfg.Dims.Y, Wrap: cfg.Wrap,
			Params: gs, Backend: cfg.SIMD, Workers: cfg.Workers,
		})
		if err != nil {
			return nil, err
		}
	case OpenCL:
		if p.source == "" {
			p.source, err = kernel.Assemble(kernel.Options{
				Formula:        text,
				Chemicals:      p.chemicals,
				Dimensionality: dim,
				Neighborhood:   cfg.Neighborhood,
				Wrap:           cfg.Wrap,
				Parameters:     cfg.Parameters,
				BlockX:         p.cfg.BlockX,
			})
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown backend %d", int(cfg.Backend))
	}
	return p, nil
}
