package mesh

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

// Config describes a mesh integration.
type Config struct {
	// Scale multiplies the Laplacian; DefaultScale when zero.
	Scale     float32
	Timestep  float32
	NewUpdate func() (rd.CellUpdate, error)
	Workers   int
}

// Advance runs steps Euler steps with
// laplacian = Scale * (sum(w_j * v_j) - v_i), zero for a cell without
// neighbors, reading the front buffers,
// writing the back buffers and swapping after each step. As with the grid
// integrator, ctx is checked once and the whole batch runs or none of it.
func Advance(ctx context.Context, cfg Config, adj *Adjacency, b *grid.Buffers, steps int) error {
	if steps <= 0 {
		return nil
	}
	if cfg.NewUpdate == nil {
		return errors.New("mesh: no cell update")
	}
	if adj.Cells() != b.Cells() {
		return fmt.Errorf("mesh: adjacency has %d cells, buffers %d", adj.Cells(), b.Cells())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	count := cfg.Workers
	if count < 1 {
		count = 1
	}
	if count > b.Cells() {
		count = b.Cells()
	}
	nchem := b.Chemicals()
	type worker struct {
		update             rd.CellUpdate
		lo, hi             int
		values, laps, dels []float32
	}
	workers := make([]*worker, count)
	for i := range workers {
		update, err := cfg.NewUpdate()
		if err != nil {
			return err
		}
		workers[i] = &worker{
			update: update,
			lo:     i * b.Cells() / count,
			hi:     (i + 1) * b.Cells() / count,
			values: make([]float32, nchem),
			laps:   make([]float32, nchem),
			dels:   make([]float32, nchem),
		}
	}
	run := func(w *worker) {
		front, back := b.Front(), b.Back()
		for i := w.lo; i < w.hi; i++ {
			nbrs, weights := adj.Of(i)
			for c := range front {
				f := front[c]
				var sum float32
				for k, j := range nbrs {
					sum += weights[k] * f[j]
				}
				w.values[c] = f[i]
				// an isolated cell has nothing to exchange with
				if len(nbrs) == 0 {
					w.laps[c] = 0
					continue
				}
				w.laps[c] = scale * (sum - f[i])
			}
			w.update(w.values, w.laps, w.dels)
			for c := range back {
				back[c][i] = w.values[c] + cfg.Timestep*w.dels[c]
			}
		}
	}
	for s := 0; s < steps; s++ {
		if count == 1 {
			run(workers[0])
		} else {
			var eg errgroup.Group
			for _, w := range workers {
				eg.Go(func() error {
					run(w)
					return nil
				})
			}
			_ = eg.Wait()
		}
		b.Swap()
	}
	return nil
}
