package rd

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestChemicalName(t *testing.T) {
	tests := []struct {
		index int
		name  string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "aa"},
		{27, "ab"},
		{51, "az"},
		{52, "ba"},
		{701, "zz"},
		{702, "aaa"},
	}
	for _, tt := range tests {
		if got := ChemicalName(tt.index); got != tt.name {
			t.Errorf("ChemicalName(%d) = %q, want %q", tt.index, got, tt.name)
		}
		idx, ok := ChemicalIndex(tt.name)
		if !ok || idx != tt.index {
			t.Errorf("ChemicalIndex(%q) = %d, %v; want %d", tt.name, idx, ok, tt.index)
		}
	}
	if _, ok := ChemicalIndex("A"); ok {
		t.Error("ChemicalIndex accepted an upper-case name")
	}
	if _, ok := ChemicalIndex(""); ok {
		t.Error("ChemicalIndex accepted an empty name")
	}
}

func TestParametersSetGetDelete(t *testing.T) {
	var p Parameters
	p.Set("timestep", 1)
	p.Set("k", 0.06)
	p.Set("k", 0.064)
	if len(p) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(p))
	}
	if v, ok := p.Get("k"); !ok || v != 0.064 {
		t.Errorf("Get(k) = %v, %v", v, ok)
	}
	if names := strings.Join(p.Names(), ","); names != "timestep,k" {
		t.Errorf("Names() = %s", names)
	}
	clone := p.Clone()
	clone.Set("k", 1)
	if v, _ := p.Get("k"); v != 0.064 {
		t.Error("Clone shares storage with the original")
	}
	if !p.Delete("timestep") || p.Delete("timestep") {
		t.Error("Delete did not report presence correctly")
	}
	if _, err := p.Timestep(); !errors.Is(err, ErrFormula) {
		t.Errorf("Timestep() error = %v, want ErrFormula", err)
	}
}

func TestParametersValidate(t *testing.T) {
	good := Parameters{{"timestep", 1}, {"D_a", 0.1}}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := Parameters{{"1x", 1}, {"k", 1}, {"k", 2}, {"F", float32(math.NaN())}}
	err := bad.Validate()
	var ferr *FormulaError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FormulaError, got %v", err)
	}
	if len(ferr.Issues) != 3 {
		t.Errorf("expected 3 issues, got %v", ferr.Issues)
	}
}

func TestParseNeighborhood(t *testing.T) {
	for _, s := range []string{"face", "Edge", " vertex "} {
		if _, err := ParseNeighborhoodType(s); err != nil {
			t.Errorf("ParseNeighborhoodType(%q): %v", s, err)
		}
	}
	if _, err := ParseNeighborhoodType("diagonal"); err == nil {
		t.Error("expected error for unknown type")
	}
	if w, err := ParseWeighting("equal"); err != nil || w != EqualWeights {
		t.Errorf("ParseWeighting(equal) = %v, %v", w, err)
	}
	if got := DefaultNeighborhood().String(); got != "face/1/laplacian" {
		t.Errorf("DefaultNeighborhood() = %s", got)
	}
	n, err := ParseNeighborhood("vertex/1/equal")
	if err != nil || n != (Neighborhood{Type: Vertex, Range: 1, Weight: EqualWeights}) {
		t.Errorf("ParseNeighborhood(vertex/1/equal) = %v, %v", n, err)
	}
	if n, err := ParseNeighborhood("edge"); err != nil || n.String() != "edge/1/laplacian" {
		t.Errorf("ParseNeighborhood(edge) = %v, %v", n, err)
	}
	for _, bad := range []string{"face/0", "face/x", "face/1/heavy/2", "ring"} {
		if _, err := ParseNeighborhood(bad); err == nil {
			t.Errorf("ParseNeighborhood(%q) accepted", bad)
		}
	}
}

func TestNeighborhoodErrorNamesCombination(t *testing.T) {
	err := error(&NeighborhoodError{Dimensionality: 1, Neighborhood: Neighborhood{Type: Vertex, Range: 2}})
	if !errors.Is(err, ErrUnsupportedNeighborhood) {
		t.Fatal("NeighborhoodError does not unwrap to ErrUnsupportedNeighborhood")
	}
	for _, want := range []string{"dimensionality=1", "type=vertex", "range=2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestReactionBind(t *testing.T) {
	update, err := GrayScott.Bind(GrayScott.Defaults)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	deltas := make([]float32, 2)
	update([]float32{1, 0}, []float32{0, 0}, deltas)
	if deltas[0] != 0 || deltas[1] != 0 {
		t.Errorf("steady state a=1,b=0 produced deltas %v", deltas)
	}

	_, err = Brusselator.Bind(Parameters{{"A", 1}})
	var ferr *FormulaError
	if !errors.As(err, &ferr) || len(ferr.Issues) != 3 {
		t.Fatalf("expected 3 missing parameters, got %v", err)
	}
}

func TestRuleVariants(t *testing.T) {
	rules := []Rule{
		&InbuiltRule{Reaction: Diffusion},
		&FormulaRule{NumChemicals: 3, Formula: "x"},
		&KernelRule{NumChemicals: 2, Source: "y"},
	}
	wantKinds := []Kind{KindInbuilt, KindFormula, KindKernel}
	wantChems := []int{1, 3, 2}
	for i, r := range rules {
		if r.Kind() != wantKinds[i] || r.Chemicals() != wantChems[i] {
			t.Errorf("rule %d: kind %v chemicals %d", i, r.Kind(), r.Chemicals())
		}
		k, err := ParseKind(r.Kind().String())
		if err != nil || k != r.Kind() {
			t.Errorf("ParseKind(%s) = %v, %v", r.Kind(), k, err)
		}
	}
	if _, ok := LookupReaction("Gray-Scott"); !ok {
		t.Error("Gray-Scott not registered")
	}
	if got := strings.Join(ReactionNames(), ","); got != "Brusselator,Diffusion,Gray-Scott" {
		t.Errorf("ReactionNames() = %s", got)
	}
}
