package sim

import (
	"context"
	"errors"
	"fmt"

	"rdsim/internal/formula"
	"rdsim/internal/grid"
	"rdsim/internal/logging"
	"rdsim/internal/mesh"
	"rdsim/internal/rd"
)

// MeshConfig sets up a simulation over an unstructured mesh. Only CPU
// integration is available for meshes.
type MeshConfig struct {
	Rule       rd.Rule
	Parameters rd.Parameters
	Mesh       *mesh.Mesh
	Adjacency  mesh.Options
	// Scale multiplies the weighted Laplacian; mesh.DefaultScale when zero.
	Scale   float32
	Workers int
	Logger  Logger
}

// MeshSystem advances a mesh.
type MeshSystem struct {
	cfg       MeshConfig
	adj       *mesh.Adjacency
	bufs      *grid.Buffers
	newUpdate func() (rd.CellUpdate, error)
	timestep  float32
	timesteps int
	log       Logger
}

func meshUpdate(rule rd.Rule, params rd.Parameters) (func() (rd.CellUpdate, error), error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch r := rule.(type) {
	case *rd.InbuiltRule:
		if r.Reaction == nil {
			return nil, errors.New("inbuilt rule without a reaction")
		}
		if _, err := r.Reaction.Bind(params); err != nil {
			return nil, err
		}
		return func() (rd.CellUpdate, error) { return r.Reaction.Bind(params) }, nil
	case *rd.FormulaRule:
		prog, err := formula.Compile(r.Formula, r.NumChemicals, params.Names())
		if err != nil {
			return nil, err
		}
		if _, err := prog.Bind(params); err != nil {
			return nil, err
		}
		return func() (rd.CellUpdate, error) { return prog.Bind(params) }, nil
	case nil:
		return nil, errors.New("no rule")
	default:
		return nil, fmt.Errorf("%w: %s rule on a mesh", rd.ErrUnsupportedBackend, rule.Kind())
	}
}

// NewMesh builds the adjacency of cfg.Mesh and allocates zeroed fields.
func NewMesh(cfg MeshConfig) (*MeshSystem, error) {
	if cfg.Mesh == nil {
		return nil, errors.New("no mesh")
	}
	cfg.Parameters = cfg.Parameters.Clone()
	newUpdate, err := meshUpdate(cfg.Rule, cfg.Parameters)
	if err != nil {
		return nil, err
	}
	dt, err := cfg.Parameters.Timestep()
	if err != nil {
		return nil, err
	}
	adj, err := mesh.BuildAdjacency(cfg.Mesh, cfg.Adjacency)
	if err != nil {
		return nil, err
	}
	bufs, err := grid.NewBuffers(cfg.Rule.Chemicals(), cfg.Mesh.NumCells())
	if err != nil {
		return nil, err
	}
	m := &MeshSystem{
		cfg:       cfg,
		adj:       adj,
		bufs:      bufs,
		newUpdate: newUpdate,
		timestep:  dt,
		log:       logging.OrNoOp(cfg.Logger),
	}
	m.log.Infof("%s rule on a %dD mesh of %d cells, %d neighbor links",
		cfg.Rule.Kind(), cfg.Mesh.Dim, adj.Cells(), len(adj.Neighbors))
	return m, nil
}

// Buffers returns the per-chemical cell values.
func (m *MeshSystem) Buffers() *grid.Buffers { return m.bufs }

// Adjacency returns the neighbor lists in use.
func (m *MeshSystem) Adjacency() *mesh.Adjacency { return m.adj }

// Timesteps is the number of steps taken.
func (m *MeshSystem) Timesteps() int { return m.timesteps }

// SetParameter sets or adds one parameter, validating the rule against the
// new list first.
func (m *MeshSystem) SetParameter(name string, v float32) error {
	params := m.cfg.Parameters.Clone()
	params.Set(name, v)
	newUpdate, err := meshUpdate(m.cfg.Rule, params)
	if err != nil {
		return err
	}
	dt, err := params.Timestep()
	if err != nil {
		return err
	}
	m.cfg.Parameters, m.newUpdate, m.timestep = params, newUpdate, dt
	return nil
}

// Update advances the mesh by steps.
func (m *MeshSystem) Update(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}
	err := mesh.Advance(ctx, mesh.Config{
		Scale:     m.cfg.Scale,
		Timestep:  m.timestep,
		NewUpdate: m.newUpdate,
		Workers:   m.cfg.Workers,
	}, m.adj, m.bufs, steps)
	if err != nil {
		return 0, err
	}
	m.timesteps += steps
	return steps, nil
}
