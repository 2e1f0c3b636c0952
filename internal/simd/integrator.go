package simd

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

// GrayScott holds the model constants.
type GrayScott struct {
	Da, Db   float32
	F, K     float32
	Timestep float32
}

// GrayScottParams reads the model constants from a parameter list.
func GrayScottParams(p rd.Parameters) (GrayScott, error) {
	var gs GrayScott
	verr := &rd.FormulaError{}
	for _, f := range []struct {
		name string
		dst  *float32
	}{
		{"D_a", &gs.Da}, {"D_b", &gs.Db}, {"F", &gs.F}, {"k", &gs.K}, {rd.TimestepName, &gs.Timestep},
	} {
		v, ok := p.Get(f.name)
		if !ok {
			verr.Add("parameter \"" + f.name + "\" is not declared")
			continue
		}
		*f.dst = v
	}
	if verr.HasIssues() {
		return gs, verr
	}
	return gs, nil
}

// Config is the immutable setup of an Integrator.
type Config struct {
	Width, Height int
	Wrap          bool
	Params        GrayScott
	Backend       Backend
	// Workers below 1 means DefaultWorkers.
	Workers int
}

// Integrator advances the a and b fields of a 2D Gray-Scott system in place.
type Integrator struct {
	cfg     Config
	backend Backend
	workers int
	da, db  []float32
}

// New validates cfg and resolves the backend.
func New(cfg Config) (*Integrator, error) {
	if cfg.Width < Lanes || cfg.Width%Lanes != 0 {
		return nil, fmt.Errorf("grid width %d must be a positive multiple of %d", cfg.Width, Lanes)
	}
	if err := (grid.Dims{X: cfg.Width, Y: cfg.Height, Z: 1}).Validate(2, cfg.Wrap); err != nil {
		return nil, err
	}
	backend, err := Resolve(cfg.Backend)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = DefaultWorkers()
	}
	if workers > cfg.Height {
		workers = cfg.Height
	}
	cells := cfg.Width * cfg.Height
	return &Integrator{
		cfg:     cfg,
		backend: backend,
		workers: workers,
		da:      make([]float32, cells),
		db:      make([]float32, cells),
	}, nil
}

// Backend returns the resolved backend.
func (it *Integrator) Backend() Backend { return it.backend }

// Workers returns the worker count.
func (it *Integrator) Workers() int { return it.workers }

// Advance runs steps updates on a and b. Each step computes every delta
// before any cell is written, so a and b can be updated in place.
func (it *Integrator) Advance(a, b []float32, steps int) error {
	cells := it.cfg.Width * it.cfg.Height
	if len(a) != cells || len(b) != cells {
		return fmt.Errorf("field sizes %d/%d do not match %dx%d", len(a), len(b), it.cfg.Width, it.cfg.Height)
	}
	if steps <= 0 {
		return nil
	}
	p := kernelParams{
		width: it.cfg.Width, height: it.cfg.Height, wrap: it.cfg.Wrap,
		gs: it.cfg.Params, a: a, b: b, da: it.da, db: it.db,
	}
	var k rowKernel
	if it.backend == Native {
		k = newNativeKernel(p)
	}
	if k == nil {
		k = newKernel[Vec4](EmulatedArch{}, p)
	}

	h := it.cfg.Height
	if it.workers == 1 {
		for s := 0; s < steps; s++ {
			k.deltas(0, h)
			k.apply(0, h)
		}
		return nil
	}
	bar := newBarrier(it.workers)
	var eg errgroup.Group
	for w := 0; w < it.workers; w++ {
		lo, hi := w*h/it.workers, (w+1)*h/it.workers
		eg.Go(func() error {
			for s := 0; s < steps; s++ {
				k.deltas(lo, hi)
				bar.Wait()
				k.apply(lo, hi)
				bar.Wait()
			}
			return nil
		})
	}
	return eg.Wait()
}

type kernelParams struct {
	width, height int
	wrap          bool
	gs            GrayScott
	a, b          []float32
	da, db        []float32
}

// rowKernel is one backend's two phases over a row range.
type rowKernel interface {
	deltas(lo, hi int)
	apply(lo, hi int)
}

type kernel[V any, A Arch[V]] struct {
	arch A
	kernelParams
	four, diffA, diffB, f, fk, dt V
}

func newKernel[V any, A Arch[V]](arch A, p kernelParams) *kernel[V, A] {
	return &kernel[V, A]{
		arch:         arch,
		kernelParams: p,
		four:         arch.Splat(4),
		diffA:        arch.Splat(p.gs.Da),
		diffB:        arch.Splat(p.gs.Db),
		f:            arch.Splat(p.gs.F),
		fk:           arch.Splat(p.gs.F + p.gs.K),
		dt:           arch.Splat(p.gs.Timestep),
	}
}

// laplacian is the 5-point stencil for the block at x on row, with the
// left and right lanes shifted in from the neighboring blocks.
func (k *kernel[V, A]) laplacian(field []float32, row, up, down, x int) (center, lap V) {
	ar := k.arch
	w := k.width
	center = ar.Load(field[row+x:])
	var prev, next V
	switch {
	case x > 0:
		prev = ar.Load(field[row+x-Lanes:])
	case k.wrap:
		prev = ar.Load(field[row+w-Lanes:])
	default:
		prev = ar.Splat(field[row])
	}
	switch {
	case x+Lanes < w:
		next = ar.Load(field[row+x+Lanes:])
	case k.wrap:
		next = ar.Load(field[row:])
	default:
		next = ar.Splat(field[row+w-1])
	}
	sum := ar.Add(ar.Load(field[up+x:]), ar.Load(field[down+x:]))
	sum = ar.Add(sum, ar.Raise(center, prev))
	sum = ar.Add(sum, ar.Lower(center, next))
	return center, ar.NegMulAdd(k.four, center, sum)
}

func (k *kernel[V, A]) deltas(lo, hi int) {
	ar := k.arch
	w := k.width
	one := ar.Splat(1)
	for y := lo; y < hi; y++ {
		row := y * w
		up := grid.Step(y, -1, k.height, k.wrap) * w
		down := grid.Step(y, 1, k.height, k.wrap) * w
		for x := 0; x < w; x += Lanes {
			a, lapA := k.laplacian(k.a, row, up, down, x)
			b, lapB := k.laplacian(k.b, row, up, down, x)
			abb := ar.Mul(ar.Mul(a, b), b)
			// F*(1-a) + D_a*lap_a - a*b*b
			feed := ar.Mul(k.f, ar.Sub(one, a))
			da := ar.Sub(ar.MulAdd(k.diffA, lapA, feed), abb)
			// D_b*lap_b + a*b*b - (F+k)*b
			db := ar.NegMulAdd(k.fk, b, ar.MulAdd(k.diffB, lapB, abb))
			ar.Store(da, k.da[row+x:])
			ar.Store(db, k.db[row+x:])
		}
	}
}

func (k *kernel[V, A]) apply(lo, hi int) {
	ar := k.arch
	for i := lo * k.width; i < hi*k.width; i += Lanes {
		ar.Store(ar.MulAdd(k.dt, ar.Load(k.da[i:]), ar.Load(k.a[i:])), k.a[i:])
		ar.Store(ar.MulAdd(k.dt, ar.Load(k.db[i:]), ar.Load(k.b[i:])), k.b[i:])
	}
}
