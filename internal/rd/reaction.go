package rd

import "sort"

// CellUpdate computes the rate of change of every chemical at one cell from
// the cell's values and their Laplacians. Implementations may keep scratch
// state and must not be shared between goroutines.
type CellUpdate func(values, laplacians, deltas []float32)

// Reaction is a compiled-in rule. Formula is the equivalent formula text; it
// lets kernel backends run the same rule.
type Reaction struct {
	Name      string
	Chemicals int
	Defaults  Parameters
	Formula   string
	bind      func(p Parameters) (CellUpdate, error)
}

// Bind resolves the parameters the reaction needs and returns its update.
func (r *Reaction) Bind(p Parameters) (CellUpdate, error) {
	return r.bind(p)
}

// require looks up every name and reports the missing ones together.
func require(p Parameters, names ...string) ([]float32, error) {
	values := make([]float32, len(names))
	verr := &FormulaError{}
	for i, name := range names {
		v, ok := p.Get(name)
		if !ok {
			verr.Add("parameter \"" + name + "\" is not declared")
			continue
		}
		values[i] = v
	}
	if verr.HasIssues() {
		return nil, verr
	}
	return values, nil
}

// GrayScott is the two-chemical Gray-Scott model.
var GrayScott = &Reaction{
	Name:      "Gray-Scott",
	Chemicals: 2,
	Defaults: Parameters{
		{Name: TimestepName, Value: 1.0},
		{Name: "D_a", Value: 0.082},
		{Name: "D_b", Value: 0.041},
		{Name: "k", Value: 0.064},
		{Name: "F", Value: 0.035},
	},
	Formula: "delta_a = D_a * laplacian_a - a*b*b + F*(1.0f - a);\n" +
		"delta_b = D_b * laplacian_b + a*b*b - (F + k)*b;\n",
	bind: func(p Parameters) (CellUpdate, error) {
		v, err := require(p, "D_a", "D_b", "k", "F")
		if err != nil {
			return nil, err
		}
		da, db, k, f := v[0], v[1], v[2], v[3]
		return func(c, lap, d []float32) {
			a, b := c[0], c[1]
			abb := a * b * b
			d[0] = da*lap[0] - abb + f*(1-a)
			d[1] = db*lap[1] + abb - (f+k)*b
		}, nil
	},
}

// Brusselator is the two-chemical Brusselator oscillator.
var Brusselator = &Reaction{
	Name:      "Brusselator",
	Chemicals: 2,
	Defaults: Parameters{
		{Name: TimestepName, Value: 0.01},
		{Name: "A", Value: 1.0},
		{Name: "B", Value: 3.0},
		{Name: "D_a", Value: 1.0},
		{Name: "D_b", Value: 8.0},
	},
	Formula: "delta_a = A - (B + 1.0f)*a + a*a*b + D_a * laplacian_a;\n" +
		"delta_b = B*a - a*a*b + D_b * laplacian_b;\n",
	bind: func(p Parameters) (CellUpdate, error) {
		v, err := require(p, "A", "B", "D_a", "D_b")
		if err != nil {
			return nil, err
		}
		ca, cb, da, db := v[0], v[1], v[2], v[3]
		return func(c, lap, d []float32) {
			a, b := c[0], c[1]
			aab := a * a * b
			d[0] = ca - (cb+1)*a + aab + da*lap[0]
			d[1] = cb*a - aab + db*lap[1]
		}, nil
	},
}

// Diffusion is plain single-chemical diffusion.
var Diffusion = &Reaction{
	Name:      "Diffusion",
	Chemicals: 1,
	Defaults: Parameters{
		{Name: TimestepName, Value: 1.0},
		{Name: "D_a", Value: 0.1},
	},
	Formula: "delta_a = D_a * laplacian_a;\n",
	bind: func(p Parameters) (CellUpdate, error) {
		v, err := require(p, "D_a")
		if err != nil {
			return nil, err
		}
		da := v[0]
		return func(c, lap, d []float32) {
			d[0] = da * lap[0]
		}, nil
	},
}

var reactions = map[string]*Reaction{
	GrayScott.Name:   GrayScott,
	Brusselator.Name: Brusselator,
	Diffusion.Name:   Diffusion,
}

// LookupReaction returns the inbuilt reaction called name.
func LookupReaction(name string) (*Reaction, bool) {
	r, ok := reactions[name]
	return r, ok
}

// ReactionNames lists the inbuilt reactions in name order.
func ReactionNames() []string {
	names := make([]string, 0, len(reactions))
	for name := range reactions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
