package pattern

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

const spots = `<?xml version="1.0" encoding="UTF-8"?>
<RD format_version="1">
  <description>Spots</description>
  <rule name="Gray-Scott" type="inbuilt" wrap="1" neighborhood_type="vertex" neighborhood_range="1" neighborhood_weight="equal">
    <param name="timestep">1</param>
    <param name="k"> 0.064 </param>
  </rule>
  <grid x="16" y="8" z="1"/>
  <initial_pattern_generator apply_when_loading="true">
    <overlay chemical="a"><overwrite/><constant value="1"/><everywhere/></overlay>
    <overlay chemical="b"><add/><white_noise low="0" high="0.1"/>
      <rectangle><point3D x="0" y="0" z="0"/><point3D x="0.5" y="1" z="1"/></rectangle>
    </overlay>
    <overlay chemical="b"><overwrite/><constant value="1"/>
      <circle radius="0.1"><point3D x="0.5" y="0.5" z="0.5"/></circle>
    </overlay>
  </initial_pattern_generator>
</RD>`

func TestLoad(t *testing.T) {
	doc, err := Load(strings.NewReader(spots))
	if err != nil {
		t.Fatal(err)
	}
	rule, err := doc.BuildRule()
	if err != nil {
		t.Fatal(err)
	}
	if ir, ok := rule.(*rd.InbuiltRule); !ok || ir.Reaction != rd.GrayScott {
		t.Errorf("rule = %#v", rule)
	}
	params, err := doc.Parameters()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := params.Get("k"); !ok || v != 0.064 {
		t.Errorf("k = %v, %v", v, ok)
	}
	n, err := doc.Neighborhood()
	if err != nil {
		t.Fatal(err)
	}
	if n != (rd.Neighborhood{Type: rd.Vertex, Range: 1, Weight: rd.EqualWeights}) {
		t.Errorf("neighborhood = %v", n)
	}
	if !doc.Wrap() {
		t.Error("wrap not read")
	}
	if d, ok := doc.Dims(); !ok || d != (grid.Dims{X: 16, Y: 8, Z: 1}) {
		t.Errorf("dims = %v, %v", d, ok)
	}
	dirs, err := doc.Generator.Directives()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 3 {
		t.Fatalf("got %d directives", len(dirs))
	}
	if dirs[1].Op != Add || dirs[1].Chemical != 1 {
		t.Errorf("second directive = %+v", dirs[1])
	}
	if c, ok := dirs[2].Shape.(Circle); !ok || c.Radius != 0.1 {
		t.Errorf("third shape = %#v", dirs[2].Shape)
	}
}

func TestApply(t *testing.T) {
	doc, err := Load(strings.NewReader(spots))
	if err != nil {
		t.Fatal(err)
	}
	dirs, err := doc.Generator.Directives()
	if err != nil {
		t.Fatal(err)
	}
	g, err := grid.New(grid.Dims{X: 16, Y: 8, Z: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(dirs, g, 1); err != nil {
		t.Fatal(err)
	}
	for _, v := range g.Front()[0] {
		if v != 1 {
			t.Fatalf("a = %v, want 1 everywhere", v)
		}
	}
	// left half gets noise, the right half outside the circle stays zero
	if v := g.At(1, 0, 0, 0); v < 0 || v >= 0.1 {
		t.Errorf("noise cell = %v", v)
	}
	if v := g.At(1, 15, 0, 0); v != 0 {
		t.Errorf("right edge b = %v, want 0", v)
	}
	// the centre cell (x=8 -> 0.53, y=4 -> 0.56) lies in the circle
	if v := g.At(1, 8, 4, 0); v != 1 {
		t.Errorf("circle b = %v, want 1", v)
	}

	again, _ := grid.New(grid.Dims{X: 16, Y: 8, Z: 1}, 2)
	if err := Apply(dirs, again, 1); err != nil {
		t.Fatal(err)
	}
	for i, v := range g.Front()[1] {
		if again.Front()[1][i] != v {
			t.Fatal("same seed produced a different pattern")
		}
	}

	small, _ := grid.New(grid.Dims{X: 4, Y: 4, Z: 1}, 1)
	if err := Apply(dirs, small, 1); err == nil {
		t.Error("applied an overlay on chemical b to a one-chemical grid")
	}
}

func TestEncodeLoad(t *testing.T) {
	rule := &rd.FormulaRule{NumChemicals: 2, Formula: "delta_a = D_a * laplacian_a - a*b*b;\ndelta_b = b < 1 ? 0 : 1;\n"}
	params := rd.Parameters{{Name: "timestep", Value: 0.5}, {Name: "D_a", Value: 0.25}}
	doc := New(rule, params, rd.DefaultNeighborhood(), true, grid.Dims{X: 32, Y: 32, Z: 1})
	doc.Generator = &Generator{ApplyWhenLoading: true}
	for _, d := range []Directive{
		{Chemical: 0, Op: Overwrite, Fill: Constant{V: 1}, Shape: Everywhere{}},
		{Chemical: 1, Op: Multiply, Fill: WhiteNoise{Low: 0.5, High: 1}, Shape: Rectangle{Max: [3]float64{1, 0.5, 1}}},
		{Chemical: 1, Op: Subtract, Fill: Constant{V: 0.25}, Shape: Circle{Center: [3]float64{0.5, 0.5, 0.5}, Radius: 0.2}},
	} {
		doc.Generator.Overlays = append(doc.Generator.Overlays, d.Overlay())
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	back, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := back.BuildRule()
	if err != nil {
		t.Fatal(err)
	}
	fr, ok := got.(*rd.FormulaRule)
	if !ok || fr.Formula != rule.Formula || fr.NumChemicals != 2 {
		t.Errorf("rule = %#v", got)
	}
	gotParams, err := back.Parameters()
	if err != nil {
		t.Fatal(err)
	}
	if len(gotParams) != 2 || gotParams[1] != params[1] {
		t.Errorf("params = %v", gotParams)
	}
	if !back.Wrap() {
		t.Error("wrap lost")
	}
	dirs, err := back.Generator.Directives()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 3 || dirs[1].Op != Multiply || dirs[2].Fill != (Constant{V: 0.25}) {
		t.Errorf("directives = %+v", dirs)
	}
	if r, ok := dirs[1].Shape.(Rectangle); !ok || r.Max != [3]float64{1, 0.5, 1} {
		t.Errorf("rectangle = %#v", dirs[1].Shape)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unknown inbuilt", `<RD><rule name="Nope" type="inbuilt"/></RD>`},
		{"unknown type", `<RD><rule name="x" type="plugin"/></RD>`},
		{"formula without payload", `<RD><rule name="x" type="formula"/></RD>`},
	}
	for _, tt := range tests {
		doc, err := Load(strings.NewReader(tt.xml))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if _, err := doc.BuildRule(); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}

	doc, _ := Load(strings.NewReader(`<RD><rule name="x" type="formula"><param name="k">abc</param></rule></RD>`))
	if _, err := doc.Parameters(); err == nil {
		t.Error("accepted a non-numeric parameter")
	}
	doc, _ = Load(strings.NewReader(`<RD><rule name="x" type="formula"><param name="1k">1</param></rule></RD>`))
	if _, err := doc.Parameters(); !errors.Is(err, rd.ErrFormula) {
		t.Errorf("expected ErrFormula for a bad name, got %v", err)
	}

	bad := Overlay{Chemical: "a", Items: []Item{item("overwrite", nil), item("stripes", nil)}}
	if _, err := bad.Directive(); err == nil {
		t.Error("accepted an unknown element")
	}
	missing := Overlay{Chemical: "a", Items: []Item{item("constant", map[string]float64{"value": 1}), item("everywhere", nil)}}
	if _, err := missing.Directive(); err == nil {
		t.Error("accepted an overlay without an operation")
	}
	if _, err := Load(strings.NewReader("<RD>")); err == nil {
		t.Error("accepted truncated XML")
	}
}
