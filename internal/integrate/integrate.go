// Package integrate advances grids with the explicit Euler method on the CPU.
package integrate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
	"rdsim/internal/stencil"
)

// Config describes one scalar integration setup.
type Config struct {
	Stencil  *stencil.Table
	Wrap     bool
	Timestep float32
	// NewUpdate returns a per-cell update. It is called once per worker
	// since updates keep scratch state.
	NewUpdate func() (rd.CellUpdate, error)
	// Workers is the number of goroutines sharing the rows. Values below 1
	// run everything on the calling goroutine.
	Workers int
}

func (c Config) validate(g *grid.Grid) error {
	if c.Stencil == nil {
		return errors.New("integrate: no stencil")
	}
	if c.NewUpdate == nil {
		return errors.New("integrate: no cell update")
	}
	d := g.Dims()
	if c.Stencil.Dimensionality != d.Dimensionality() {
		return fmt.Errorf("integrate: %s stencil on a %dD grid", c.Stencil.Name, d.Dimensionality())
	}
	return d.Validate(g.Chemicals(), c.Wrap)
}

// row is one x-line of the lattice.
type row struct{ y, z int }

// worker holds the scratch buffers reused across rows.
type worker struct {
	update  rd.CellUpdate
	rows    []row
	values  []float32
	laps    []float32
	deltas  []float32
	offsets []int
}

// Advance runs steps Euler steps: every cell reads the front buffers, the
// back buffers receive value + timestep*delta, then the buffers swap.
// ctx is only consulted before the batch starts; a batch runs to completion
// or not at all.
func Advance(ctx context.Context, cfg Config, g *grid.Grid, steps int) error {
	if steps <= 0 {
		return nil
	}
	if err := cfg.validate(g); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d := g.Dims()
	rows := make([]row, 0, d.Y*d.Z)
	for z := 0; z < d.Z; z++ {
		for y := 0; y < d.Y; y++ {
			rows = append(rows, row{y: y, z: z})
		}
	}
	count := cfg.Workers
	if count < 1 {
		count = 1
	}
	if count > len(rows) {
		count = len(rows)
	}
	workers := make([]*worker, count)
	nchem := g.Chemicals()
	for i := range workers {
		update, err := cfg.NewUpdate()
		if err != nil {
			return err
		}
		workers[i] = &worker{
			update:  update,
			values:  make([]float32, nchem),
			laps:    make([]float32, nchem),
			deltas:  make([]float32, nchem),
			offsets: make([]int, 0, len(cfg.Stencil.Taps)),
		}
	}
	// contiguous row blocks keep each worker's reads local
	for i, w := range workers {
		lo := i * len(rows) / count
		hi := (i + 1) * len(rows) / count
		w.rows = rows[lo:hi]
	}

	fast := isFivePoint(cfg.Stencil)
	for s := 0; s < steps; s++ {
		if count == 1 {
			workers[0].run(cfg, g, fast)
		} else {
			var eg errgroup.Group
			for _, w := range workers {
				eg.Go(func() error {
					w.run(cfg, g, fast)
					return nil
				})
			}
			_ = eg.Wait()
		}
		g.Swap()
	}
	return nil
}

func isFivePoint(t *stencil.Table) bool {
	return t.Dimensionality == 2 && len(t.Taps) == 4
}

func (w *worker) run(cfg Config, g *grid.Grid, fast bool) {
	if fast {
		for _, r := range w.rows {
			w.fivePointRow(cfg, g, r.y)
		}
		return
	}
	front, back := g.Front(), g.Back()
	dt := cfg.Timestep
	t := cfg.Stencil
	for _, r := range w.rows {
		for x := 0; x < g.Dims().X; x++ {
			here := g.View.Offset(x, r.y, r.z)
			w.offsets = t.Offsets(g.View, x, r.y, r.z, cfg.Wrap, w.offsets)
			for c := range front {
				w.values[c] = front[c][here]
				w.laps[c] = t.Apply(front[c], here, w.offsets)
			}
			w.update(w.values, w.laps, w.deltas)
			for c := range back {
				back[c][here] = w.values[c] + dt*w.deltas[c]
			}
		}
	}
}

// fivePointRow is the 2D face stencil on a single row with the
// neighbor rows resolved once.
func (w *worker) fivePointRow(cfg Config, g *grid.Grid, y int) {
	d := g.Dims()
	width := d.X
	front, back := g.Front(), g.Back()
	t := cfg.Stencil
	dt := cfg.Timestep
	rowBase := y * width
	topBase := grid.Step(y, -1, d.Y, cfg.Wrap) * width
	bottomBase := grid.Step(y, 1, d.Y, cfg.Wrap) * width
	for x := 0; x < width; x++ {
		left, right := x-1, x+1
		if x == 0 || x == width-1 {
			left = grid.Step(x, -1, width, cfg.Wrap)
			right = grid.Step(x, 1, width, cfg.Wrap)
		}
		for c := range front {
			f := front[c]
			v := f[rowBase+x]
			w.values[c] = v
			lap := f[topBase+x] + f[rowBase+left] + f[rowBase+right] + f[bottomBase+x] + t.Center*v
			if t.Divisor != 1 {
				lap /= t.Divisor
			}
			w.laps[c] = lap
		}
		w.update(w.values, w.laps, w.deltas)
		for c := range back {
			back[c][rowBase+x] = w.values[c] + dt*w.deltas[c]
		}
	}
}
