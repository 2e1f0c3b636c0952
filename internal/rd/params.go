package rd

import (
	"fmt"
	"math"
)

// TimestepName is the parameter every rule uses as its Euler step size.
const TimestepName = "timestep"

// Parameter is a named scalar constant referenced by a rule.
type Parameter struct {
	Name  string
	Value float32
}

// Parameters is an ordered, name-addressable parameter list.
type Parameters []Parameter

// Index returns the position of name in the list or -1.
func (p Parameters) Index(name string) int {
	for i, param := range p {
		if param.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of name.
func (p Parameters) Get(name string) (float32, bool) {
	if i := p.Index(name); i >= 0 {
		return p[i].Value, true
	}
	return 0, false
}

// Set updates name, appending it when it is not declared yet.
func (p *Parameters) Set(name string, value float32) {
	if i := p.Index(name); i >= 0 {
		(*p)[i].Value = value
		return
	}
	*p = append(*p, Parameter{Name: name, Value: value})
}

// Delete removes name and reports whether it was present.
func (p *Parameters) Delete(name string) bool {
	i := p.Index(name)
	if i < 0 {
		return false
	}
	*p = append((*p)[:i], (*p)[i+1:]...)
	return true
}

// Names returns the parameter names in declaration order.
func (p Parameters) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}
	return names
}

// Clone returns an independent copy.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	copy(out, p)
	return out
}

// Timestep returns the Euler step size declared in the list.
func (p Parameters) Timestep() (float32, error) {
	dt, ok := p.Get(TimestepName)
	if !ok {
		return 0, &FormulaError{Issues: []string{"parameter \"" + TimestepName + "\" is not declared"}}
	}
	return dt, nil
}

// Validate checks that every name is a usable identifier, that no name is
// declared twice and that every value is finite.
func (p Parameters) Validate() error {
	verr := &FormulaError{}
	seen := make(map[string]bool, len(p))
	for i, param := range p {
		if !IsIdentifier(param.Name) {
			verr.Add(fmt.Sprintf("parameter %d: %q is not a valid identifier", i, param.Name))
			continue
		}
		if seen[param.Name] {
			verr.Add("duplicate parameter name: " + param.Name)
		}
		seen[param.Name] = true
		if math.IsNaN(float64(param.Value)) || math.IsInf(float64(param.Value), 0) {
			verr.Add(fmt.Sprintf("parameter %q has non-finite value %v", param.Name, param.Value))
		}
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}

// IsIdentifier reports whether s is a C-style identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
