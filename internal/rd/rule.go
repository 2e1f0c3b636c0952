package rd

import "fmt"

// Kind identifies a Rule variant.
type Kind int

const (
	// KindInbuilt rules run a compiled-in update function.
	KindInbuilt Kind = iota
	// KindFormula rules carry a short delta_<chemical> formula.
	KindFormula
	// KindKernel rules carry complete kernel source.
	KindKernel
)

func (k Kind) String() string {
	switch k {
	case KindInbuilt:
		return "inbuilt"
	case KindFormula:
		return "formula"
	case KindKernel:
		return "kernel"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the persisted rule type names.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "inbuilt":
		return KindInbuilt, nil
	case "formula":
		return KindFormula, nil
	case "kernel":
		return KindKernel, nil
	}
	return 0, fmt.Errorf("unknown rule type %q", s)
}

// Rule is the closed set of rule variants: *InbuiltRule, *FormulaRule and
// *KernelRule. Backends select behavior with a type switch.
type Rule interface {
	Kind() Kind
	Chemicals() int
	sealed()
}

// InbuiltRule runs one of the compiled-in reactions.
type InbuiltRule struct {
	Reaction *Reaction
}

func (r *InbuiltRule) Kind() Kind     { return KindInbuilt }
func (r *InbuiltRule) Chemicals() int { return r.Reaction.Chemicals }
func (r *InbuiltRule) sealed()        {}

// FormulaRule holds user formula text for NumChemicals chemicals.
type FormulaRule struct {
	NumChemicals int
	Formula      string
}

func (r *FormulaRule) Kind() Kind     { return KindFormula }
func (r *FormulaRule) Chemicals() int { return r.NumChemicals }
func (r *FormulaRule) sealed()        {}

// KernelRule holds complete kernel source. The kernel must be named
// KernelName in the generated-kernel calling convention.
type KernelRule struct {
	NumChemicals int
	Source       string
}

func (r *KernelRule) Kind() Kind     { return KindKernel }
func (r *KernelRule) Chemicals() int { return r.NumChemicals }
func (r *KernelRule) sealed()        {}
