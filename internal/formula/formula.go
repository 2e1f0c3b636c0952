// Package formula validates reaction formulas and evaluates them on the CPU.
//
// A formula is a list of C statements assigning delta_<chemical> for every
// chemical, e.g.
//
//	delta_a = D_a * laplacian_a - a*b*b + F*(1.0f - a);
//	delta_b = D_b * laplacian_b + a*b*b - (F + k)*b;
//
// Statements may declare float locals. Expressions use + - * /, parentheses,
// numeric literals and the functions listed in Functions. The same text is
// spliced verbatim into generated kernels, so the accepted language is a
// subset of OpenCL C.
package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"rdsim/internal/rd"
)

type function struct {
	arity int
	eval  func(args []float64) float64
}

var functions = map[string]function{
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":   {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"tanh":  {1, func(a []float64) float64 { return math.Tanh(a[0]) }},
	"fabs":  {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"fmin":  {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"fmax":  {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
	"min":   {2, func(a []float64) float64 { return math.Min(a[0], a[1]) }},
	"max":   {2, func(a []float64) float64 { return math.Max(a[0], a[1]) }},
}

// Functions returns the names of the callable functions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type evalFn func(slots []float32) float32

// Program is a validated formula. Slots are laid out as chemical values,
// Laplacians, deltas, parameters, then locals.
type Program struct {
	source    string
	chemicals []string
	params    []string
	locals    []string
	used      map[string]bool
	nslots    int
	exec      []func(slots []float32)
}

type compiler struct {
	prog  *Program
	names map[string]int
	errs  *rd.FormulaError
}

// Compile validates src against the chemical count and the declared
// parameter names. Every problem found is reported in one *rd.FormulaError.
func Compile(src string, chemicals int, params []string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &rd.FormulaError{Issues: []string{"formula is empty"}}
	}
	if chemicals < 1 {
		return nil, &rd.FormulaError{Issues: []string{fmt.Sprintf("invalid chemical count %d", chemicals)}}
	}
	stmts, err := parse(src)
	if err != nil {
		return nil, &rd.FormulaError{Issues: []string{err.Error()}}
	}

	c := &compiler{
		prog: &Program{
			source:    src,
			chemicals: rd.ChemicalNames(chemicals),
			params:    append([]string(nil), params...),
			used:      make(map[string]bool),
		},
		names: make(map[string]int),
		errs:  &rd.FormulaError{},
	}
	n := chemicals
	for i, chem := range c.prog.chemicals {
		c.names[chem] = i
		c.names["laplacian_"+chem] = n + i
		c.names["delta_"+chem] = 2*n + i
	}
	for i, name := range params {
		if _, taken := c.names[name]; taken {
			c.errs.Add(fmt.Sprintf("parameter %q collides with a chemical name", name))
			continue
		}
		if c.reserved(name) {
			c.errs.Add(fmt.Sprintf("parameter %q is reserved by the generated kernel", name))
			continue
		}
		c.names[name] = 3*n + i
	}
	c.prog.nslots = 3*n + len(params)

	assigned := make(map[string]int)
	for _, s := range stmts {
		c.statement(s, assigned)
	}
	for _, chem := range c.prog.chemicals {
		target := "delta_" + chem
		switch count := assigned[target]; {
		case count == 0:
			c.errs.Add("missing assignment to " + target)
		case count > 1:
			c.errs.Add(fmt.Sprintf("%s is assigned %d times", target, count))
		}
	}
	if c.errs.HasIssues() {
		return nil, c.errs
	}
	return c.prog, nil
}

// kernelNames are declared by every generated kernel alongside the formula.
var kernelNames = map[string]bool{
	"float": true, "float4": true, "int": true, "const": true, "rd_compute": true,
	"x": true, "y": true, "z": true, "X": true, "Y": true, "Z": true,
	"xm1": true, "xp1": true, "ym1": true, "yp1": true, "zm1": true, "zp1": true,
}

// reserved reports whether name is a function or clashes with an identifier
// the kernel emitter declares: indices i_*, per-chemical taps <chem>_*,
// coordinates and types.
func (c *compiler) reserved(name string) bool {
	if _, ok := functions[name]; ok {
		return true
	}
	if kernelNames[name] {
		return true
	}
	for _, prefix := range []string{"delta_", "laplacian_", "i_"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, chem := range c.prog.chemicals {
		if strings.HasPrefix(name, chem+"_") {
			return true
		}
	}
	return false
}

func (c *compiler) statement(s statement, assigned map[string]int) {
	expr, ok := c.expr(s.expr)
	if s.decl {
		if _, taken := c.names[s.target]; taken || c.reserved(s.target) {
			c.errs.Add(fmt.Sprintf("line %d: cannot declare %q: name is already in use", s.line, s.target))
			return
		}
		c.names[s.target] = c.prog.nslots
		c.prog.nslots++
		c.prog.locals = append(c.prog.locals, s.target)
	}
	slot, known := c.names[s.target]
	isDelta := strings.HasPrefix(s.target, "delta_")
	switch {
	case !known && isDelta:
		c.errs.Add(fmt.Sprintf("line %d: %s does not name a chemical", s.line, s.target))
		return
	case !known:
		c.errs.Add(fmt.Sprintf("line %d: undeclared identifier %q", s.line, s.target))
		return
	case isDelta:
		assigned[s.target]++
	case !s.decl && slot < 3*len(c.prog.chemicals)+len(c.prog.params):
		c.errs.Add(fmt.Sprintf("line %d: cannot assign to %q", s.line, s.target))
		return
	}
	if !ok {
		return
	}
	op := s.op
	c.prog.exec = append(c.prog.exec, func(slots []float32) {
		v := expr(slots)
		switch op {
		case "=":
			slots[slot] = v
		case "+=":
			slots[slot] += v
		case "-=":
			slots[slot] -= v
		case "*=":
			slots[slot] *= v
		case "/=":
			slots[slot] /= v
		}
	})
}

func (c *compiler) expr(n node) (evalFn, bool) {
	switch n := n.(type) {
	case numNode:
		v := n.value
		return func([]float32) float32 { return v }, true
	case identNode:
		slot, ok := c.names[n.name]
		if !ok {
			c.errs.Add(fmt.Sprintf("line %d: undeclared identifier %q", n.line, n.name))
			return nil, false
		}
		c.prog.used[n.name] = true
		return func(s []float32) float32 { return s[slot] }, true
	case unaryNode:
		x, ok := c.expr(n.x)
		if !ok {
			return nil, false
		}
		if n.op == "-" {
			return func(s []float32) float32 { return -x(s) }, true
		}
		return x, true
	case binaryNode:
		l, lok := c.expr(n.l)
		r, rok := c.expr(n.r)
		if !lok || !rok {
			return nil, false
		}
		switch n.op {
		case "+":
			return func(s []float32) float32 { return l(s) + r(s) }, true
		case "-":
			return func(s []float32) float32 { return l(s) - r(s) }, true
		case "*":
			return func(s []float32) float32 { return l(s) * r(s) }, true
		default:
			return func(s []float32) float32 { return l(s) / r(s) }, true
		}
	case callNode:
		fn, ok := functions[n.fn]
		if !ok {
			c.errs.Add(fmt.Sprintf("line %d: unknown function %q", n.line, n.fn))
			return nil, false
		}
		if len(n.args) != fn.arity {
			c.errs.Add(fmt.Sprintf("line %d: %s takes %d arguments, got %d", n.line, n.fn, fn.arity, len(n.args)))
			return nil, false
		}
		args := make([]evalFn, len(n.args))
		good := true
		for i, a := range n.args {
			if args[i], ok = c.expr(a); !ok {
				good = false
			}
		}
		if !good {
			return nil, false
		}
		eval := fn.eval
		return func(s []float32) float32 {
			var buf [2]float64
			in := buf[:len(args)]
			for i, a := range args {
				in[i] = float64(a(s))
			}
			return float32(eval(in))
		}, true
	}
	panic(fmt.Sprintf("formula: unexpected node %T", n))
}

// Source returns the formula text.
func (p *Program) Source() string { return p.source }

// Chemicals returns the chemical names the formula covers.
func (p *Program) Chemicals() []string { return p.chemicals }

// Locals returns the names of declared locals in declaration order.
func (p *Program) Locals() []string { return p.locals }

// UnusedParameters returns the declared parameters the formula never reads.
func (p *Program) UnusedParameters() []string {
	var unused []string
	for _, name := range p.params {
		if !p.used[name] && name != rd.TimestepName {
			unused = append(unused, name)
		}
	}
	return unused
}

// Bind fixes parameter values and returns a per-cell update. The values are
// looked up by name in params, which must declare every parameter the
// program was compiled with.
func (p *Program) Bind(params rd.Parameters) (rd.CellUpdate, error) {
	n := len(p.chemicals)
	slots := make([]float32, p.nslots)
	verr := &rd.FormulaError{}
	for i, name := range p.params {
		v, ok := params.Get(name)
		if !ok {
			verr.Add("parameter \"" + name + "\" is not declared")
			continue
		}
		slots[3*n+i] = v
	}
	if verr.HasIssues() {
		return nil, verr
	}
	exec := p.exec
	return func(values, laplacians, deltas []float32) {
		copy(slots[:n], values)
		copy(slots[n:2*n], laplacians)
		d := slots[2*n : 3*n]
		for i := range d {
			d[i] = 0
		}
		for _, e := range exec {
			e(slots)
		}
		copy(deltas, d)
	}, nil
}
