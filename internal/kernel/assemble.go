// Package kernel assembles OpenCL C compute kernels from reaction formulas.
//
// The generated kernel takes one input and one output buffer per chemical,
// in chemical order: a_in, a_out, b_in, b_out, ... Buffer argument 2c is the
// input of chemical c and 2c+1 its output.
package kernel

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"rdsim/internal/formula"
	"rdsim/internal/rd"
	"rdsim/internal/stencil"
)

// Name is the entry point of every assembled kernel.
const Name = "rd_compute"

// denormalEpsilon is added to block-packed Laplacians to keep values out of
// the denormal range.
const denormalEpsilon = "1e-6f"

// Options describes the kernel to assemble.
type Options struct {
	Formula        string
	Chemicals      int
	Dimensionality int
	Neighborhood   rd.Neighborhood
	Wrap           bool
	Parameters     rd.Parameters
	// BlockX is 1 for one cell per work item or 4 for float4 blocks along x.
	BlockX int
}

// Assemble returns the kernel source for opts. Identical options always
// give identical text.
func Assemble(opts Options) (string, error) {
	if strings.TrimSpace(opts.Formula) == "" {
		return "", errors.New("assembling kernel: rule has no formula")
	}
	if opts.Chemicals < 1 {
		return "", fmt.Errorf("assembling kernel: invalid chemical count %d", opts.Chemicals)
	}
	if opts.BlockX == 0 {
		opts.BlockX = 1
	}
	if opts.BlockX != 1 && opts.BlockX != 4 {
		return "", fmt.Errorf("assembling kernel: block size %d is not 1 or 4", opts.BlockX)
	}
	table, err := stencil.Lookup(opts.Dimensionality, opts.Neighborhood)
	if err != nil {
		return "", err
	}
	if err := opts.Parameters.Validate(); err != nil {
		return "", err
	}
	if _, err := opts.Parameters.Timestep(); err != nil {
		return "", err
	}
	prog, err := formula.Compile(opts.Formula, opts.Chemicals, opts.Parameters.Names())
	if err != nil {
		return "", err
	}

	e := &emitter{
		opts:   opts,
		table:  table,
		chems:  rd.ChemicalNames(opts.Chemicals),
		block:  opts.BlockX == 4,
		locals: len(prog.Locals()) > 0,
	}
	e.signature()
	e.indices()
	e.loads()
	e.laplacians()
	e.deltas()
	e.params()
	e.formula()
	e.epilogue()
	return e.b.String(), nil
}

type emitter struct {
	b      strings.Builder
	opts   Options
	table  *stencil.Table
	chems  []string
	block  bool
	locals bool
}

func (e *emitter) line(format string, args ...any) {
	if format != "" {
		e.b.WriteString("    ")
		fmt.Fprintf(&e.b, format, args...)
	}
	e.b.WriteByte('\n')
}

func (e *emitter) vtype() string {
	if e.block {
		return "float4"
	}
	return "float"
}

func (e *emitter) signature() {
	boundary := "clamped"
	if e.opts.Wrap {
		boundary = "wrapped"
	}
	fmt.Fprintf(&e.b, "// %s stencil, %s boundaries, %d chemical(s), block %d\n",
		e.table.Name, boundary, len(e.chems), e.opts.BlockX)
	for dz := -1; dz <= 1; dz++ {
		if dz != 0 && e.opts.Dimensionality < 3 {
			continue
		}
		fmt.Fprintf(&e.b, "// z%+d: %.4g\n", dz, mat.Formatted(e.table.Layer(dz), mat.FormatMATLAB()))
	}
	fmt.Fprintf(&e.b, "__kernel void %s(\n", Name)
	for i, c := range e.chems {
		sep := ","
		if i == len(e.chems)-1 {
			sep = ")"
		}
		fmt.Fprintf(&e.b, "    __global %s *%s_in, __global %s *%s_out%s\n", e.vtype(), c, e.vtype(), c, sep)
	}
	e.b.WriteString("{\n")
}

// axes lists the coordinate names used by the dimensionality.
func (e *emitter) axes() []string {
	return []string{"x", "y", "z"}[:e.opts.Dimensionality]
}

func (e *emitter) indices() {
	for i, a := range []string{"x", "y", "z"} {
		e.line("const int %s = get_global_id(%d);", a, i)
	}
	for i, a := range []string{"X", "Y", "Z"} {
		e.line("const int %s = get_global_size(%d);", a, i)
	}
	e.line("const int i_here = X*(Y*z + y) + x;")
	e.line("")
	for _, a := range e.axes() {
		n := strings.ToUpper(a)
		if e.opts.Wrap {
			e.line("const int %sm1 = (%s - 1) & (%s - 1);", a, a, n)
			e.line("const int %sp1 = (%s + 1) & (%s - 1);", a, a, n)
		} else {
			e.line("const int %sm1 = max(%s - 1, 0);", a, a)
			e.line("const int %sp1 = min(%s + 1, %s - 1);", a, a, n)
		}
	}
}

func coord(axis string, d int) string {
	switch d {
	case -1:
		return axis + "m1"
	case 1:
		return axis + "p1"
	}
	return axis
}

// tapName spells an offset with compass letters: n/s along y, w/e along x
// and d/u along z.
func tapName(dx, dy, dz int) string {
	var s string
	s += map[int]string{-1: "n", 0: "", 1: "s"}[dy]
	s += map[int]string{-1: "w", 0: "", 1: "e"}[dx]
	s += map[int]string{-1: "d", 0: "", 1: "u"}[dz]
	return s
}

func index(dx, dy, dz int) string {
	return fmt.Sprintf("X*(Y*%s + %s) + %s", coord("z", dz), coord("y", dy), coord("x", dx))
}

// rowKey is a (dy, dz) line of blocks.
type rowKey struct{ dy, dz int }

func (e *emitter) loads() {
	e.line("")
	if !e.block {
		for _, t := range e.table.Taps {
			e.line("const int i_%s = %s;", tapName(t.DX, t.DY, t.DZ), index(t.DX, t.DY, t.DZ))
		}
		for _, c := range e.chems {
			e.line("float %s = %s_in[i_here];", c, c)
			for _, t := range e.table.Taps {
				n := tapName(t.DX, t.DY, t.DZ)
				e.line("float %s_%s = %s_in[i_%s];", c, n, c, n)
			}
		}
		return
	}

	// Block rows are loaded whole; the x neighbors are built by shifting in
	// a lane from the adjacent block of the same row.
	rows := map[rowKey]bool{{0, 0}: true}
	sides := map[rowKey]bool{}
	for _, t := range e.table.Taps {
		k := rowKey{t.DY, t.DZ}
		rows[k] = true
		if t.DX != 0 {
			sides[k] = true
		}
	}
	keys := make([]rowKey, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dz != keys[j].dz {
			return keys[i].dz < keys[j].dz
		}
		return keys[i].dy < keys[j].dy
	})
	for _, k := range keys {
		if k == (rowKey{}) {
			continue
		}
		e.line("const int i_%s = %s;", tapName(0, k.dy, k.dz), index(0, k.dy, k.dz))
	}
	for _, k := range keys {
		if !sides[k] {
			continue
		}
		r := tapName(0, k.dy, k.dz)
		e.line("const int i_%sbw = %s;", r, index(-1, k.dy, k.dz))
		e.line("const int i_%sbe = %s;", r, index(1, k.dy, k.dz))
	}
	for _, c := range e.chems {
		for _, k := range keys {
			row := c
			if r := tapName(0, k.dy, k.dz); r != "" {
				row = c + "_" + r
				e.line("float4 %s = %s_in[i_%s];", row, c, r)
			} else {
				e.line("float4 %s = %s_in[i_here];", c, c)
			}
		}
		for _, k := range keys {
			if !sides[k] {
				continue
			}
			r := tapName(0, k.dy, k.dz)
			row := c
			if r != "" {
				row = c + "_" + r
			}
			e.line("float4 %s_%sbw = %s_in[i_%sbw];", c, r, c, r)
			e.line("float4 %s_%sbe = %s_in[i_%sbe];", c, r, c, r)
			west, east := fmt.Sprintf("%s_%sbw.w", c, r), fmt.Sprintf("%s_%sbe.x", c, r)
			if !e.opts.Wrap {
				west = fmt.Sprintf("(x > 0 ? %s : %s.x)", west, row)
				east = fmt.Sprintf("(x < X - 1 ? %s : %s.w)", east, row)
			}
			e.line("float4 %s_%s = (float4)(%s, %s.xyz);", c, tapName(-1, k.dy, k.dz), west, row)
			e.line("float4 %s_%s = (float4)(%s.yzw, %s);", c, tapName(1, k.dy, k.dz), row, east)
		}
	}
}

// literal formats v as an OpenCL float literal.
func literal(v float32) string {
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s + "f"
}

func (e *emitter) laplacians() {
	e.line("")
	// group taps by weight, heaviest first, so the sum reads like the
	// textbook stencil
	byWeight := map[float32][]stencil.Tap{}
	var weights []float32
	for _, t := range e.table.Taps {
		if _, ok := byWeight[t.Weight]; !ok {
			weights = append(weights, t.Weight)
		}
		byWeight[t.Weight] = append(byWeight[t.Weight], t)
	}
	sort.Slice(weights, func(i, j int) bool { return weights[i] > weights[j] })

	for _, c := range e.chems {
		var terms []string
		for _, w := range weights {
			names := make([]string, 0, len(byWeight[w]))
			for _, t := range byWeight[w] {
				names = append(names, c+"_"+tapName(t.DX, t.DY, t.DZ))
			}
			sum := strings.Join(names, " + ")
			if w == 1 {
				terms = append(terms, sum)
			} else {
				terms = append(terms, literal(w)+"*("+sum+")")
			}
		}
		expr := strings.Join(terms, " + ")
		if e.table.Center < 0 {
			expr += " - " + literal(-e.table.Center) + "*" + c
		} else {
			expr += " + " + literal(e.table.Center) + "*" + c
		}
		if e.table.Divisor != 1 {
			expr = "(" + expr + ") / " + literal(e.table.Divisor)
		}
		if e.block {
			expr += " + " + denormalEpsilon
		}
		e.line("%s laplacian_%s = %s;", e.vtype(), c, expr)
	}
}

func (e *emitter) deltas() {
	e.line("")
	for _, c := range e.chems {
		e.line("%s delta_%s = 0.0f;", e.vtype(), c)
	}
}

func (e *emitter) params() {
	e.line("")
	for _, p := range e.opts.Parameters {
		e.line("const float %s = %s;", p.Name, literal(p.Value))
	}
}

func (e *emitter) formula() {
	e.line("")
	wide := e.block && e.locals
	if wide {
		e.b.WriteString("#define float float4\n")
	}
	text := strings.ReplaceAll(e.opts.Formula, "\r\n", "\n")
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(l) == "" {
			e.b.WriteByte('\n')
			continue
		}
		e.line("%s", l)
	}
	if wide {
		e.b.WriteString("#undef float\n")
	}
}

func (e *emitter) epilogue() {
	e.line("")
	for _, c := range e.chems {
		e.line("%s_out[i_here] = %s + timestep * delta_%s;", c, c, c)
	}
	e.b.WriteString("}\n")
}
