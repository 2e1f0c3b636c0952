package pattern

import (
	"encoding/xml"
	"fmt"
	"math/rand"
	"strconv"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

// Overlay is the persisted form of a directive: an operation element, a
// fill element and a shape element, in any order.
type Overlay struct {
	Chemical string `xml:"chemical,attr"`
	Items    []Item `xml:",any"`
}

// Item is any element with attributes and children.
type Item struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Items   []Item     `xml:",any"`
}

func (it Item) attr(name string) (float64, error) {
	for _, a := range it.Attrs {
		if a.Name.Local == name {
			v, err := strconv.ParseFloat(a.Value, 64)
			if err != nil {
				return 0, fmt.Errorf("%s %s: %w", it.XMLName.Local, name, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%s has no %s attribute", it.XMLName.Local, name)
}

func item(name string, attrs map[string]float64, children ...Item) Item {
	it := Item{XMLName: xml.Name{Local: name}, Items: children}
	for _, k := range []string{"value", "low", "high", "radius", "x", "y", "z"} {
		if v, ok := attrs[k]; ok {
			it.Attrs = append(it.Attrs, xml.Attr{
				Name:  xml.Name{Local: k},
				Value: strconv.FormatFloat(v, 'g', -1, 64),
			})
		}
	}
	return it
}

func point(p [3]float64) Item {
	return item("point3D", map[string]float64{"x": p[0], "y": p[1], "z": p[2]})
}

func (it Item) point() ([3]float64, error) {
	var p [3]float64
	for i, k := range []string{"x", "y", "z"} {
		v, err := it.attr(k)
		if err != nil {
			return p, err
		}
		p[i] = v
	}
	return p, nil
}

// Op combines a fill value with the current cell value.
type Op int

const (
	Overwrite Op = iota
	Add
	Subtract
	Multiply
)

var opNames = map[Op]string{Overwrite: "overwrite", Add: "add", Subtract: "subtract", Multiply: "multiply"}

func (o Op) String() string { return opNames[o] }

func (o Op) apply(old, v float32) float32 {
	switch o {
	case Add:
		return old + v
	case Subtract:
		return old - v
	case Multiply:
		return old * v
	}
	return v
}

// Fill produces the value a directive writes.
type Fill interface {
	Value(rng *rand.Rand) float32
	item() Item
}

// Constant fills with one value.
type Constant struct{ V float32 }

func (c Constant) Value(*rand.Rand) float32 { return c.V }
func (c Constant) item() Item {
	return item("constant", map[string]float64{"value": float64(c.V)})
}

// WhiteNoise fills with uniform values in [Low, High).
type WhiteNoise struct{ Low, High float32 }

func (w WhiteNoise) Value(rng *rand.Rand) float32 {
	return w.Low + rng.Float32()*(w.High-w.Low)
}
func (w WhiteNoise) item() Item {
	return item("white_noise", map[string]float64{"low": float64(w.Low), "high": float64(w.High)})
}

// Shape selects cells by their centre in relative coordinates.
type Shape interface {
	Contains(p [3]float64) bool
	item() Item
}

// Everywhere selects every cell.
type Everywhere struct{}

func (Everywhere) Contains([3]float64) bool { return true }
func (Everywhere) item() Item               { return item("everywhere", nil) }

// Rectangle selects the box between two corners, inclusive.
type Rectangle struct{ Min, Max [3]float64 }

func (r Rectangle) Contains(p [3]float64) bool {
	for i := range p {
		if p[i] < r.Min[i] || p[i] > r.Max[i] {
			return false
		}
	}
	return true
}
func (r Rectangle) item() Item { return item("rectangle", nil, point(r.Min), point(r.Max)) }

// Circle selects the ball around Center.
type Circle struct {
	Center [3]float64
	Radius float64
}

func (c Circle) Contains(p [3]float64) bool {
	var d2 float64
	for i := range p {
		d := p[i] - c.Center[i]
		d2 += d * d
	}
	return d2 <= c.Radius*c.Radius
}
func (c Circle) item() Item {
	return item("circle", map[string]float64{"radius": c.Radius}, point(c.Center))
}

// Directive is one overlay: for every cell in Shape, chemical =
// Op(chemical, Fill).
type Directive struct {
	Chemical int
	Op       Op
	Fill     Fill
	Shape    Shape
}

// Overlay converts d to its persisted form.
func (d Directive) Overlay() Overlay {
	return Overlay{
		Chemical: rd.ChemicalName(d.Chemical),
		Items:    []Item{item(d.Op.String(), nil), d.Fill.item(), d.Shape.item()},
	}
}

// Directive parses the overlay.
func (o Overlay) Directive() (Directive, error) {
	c, ok := rd.ChemicalIndex(o.Chemical)
	if !ok {
		return Directive{}, fmt.Errorf("overlay names invalid chemical %q", o.Chemical)
	}
	d := Directive{Chemical: c, Op: -1}
	for _, it := range o.Items {
		var err error
		switch name := it.XMLName.Local; name {
		case "overwrite", "add", "subtract", "multiply":
			for op, n := range opNames {
				if n == name {
					d.Op = op
				}
			}
		case "constant":
			var v float64
			v, err = it.attr("value")
			d.Fill = Constant{V: float32(v)}
		case "white_noise":
			var lo, hi float64
			if lo, err = it.attr("low"); err == nil {
				hi, err = it.attr("high")
			}
			d.Fill = WhiteNoise{Low: float32(lo), High: float32(hi)}
		case "everywhere":
			d.Shape = Everywhere{}
		case "rectangle":
			if len(it.Items) != 2 {
				return d, fmt.Errorf("rectangle needs two corners, has %d", len(it.Items))
			}
			var r Rectangle
			if r.Min, err = it.Items[0].point(); err == nil {
				r.Max, err = it.Items[1].point()
			}
			d.Shape = r
		case "circle":
			if len(it.Items) != 1 {
				return d, fmt.Errorf("circle needs one centre, has %d", len(it.Items))
			}
			var c Circle
			if c.Radius, err = it.attr("radius"); err == nil {
				c.Center, err = it.Items[0].point()
			}
			d.Shape = c
		default:
			return d, fmt.Errorf("unknown overlay element %q", name)
		}
		if err != nil {
			return d, err
		}
	}
	switch {
	case d.Op < 0:
		return d, fmt.Errorf("overlay on %s has no operation", o.Chemical)
	case d.Fill == nil:
		return d, fmt.Errorf("overlay on %s has no fill", o.Chemical)
	case d.Shape == nil:
		return d, fmt.Errorf("overlay on %s has no shape", o.Chemical)
	}
	return d, nil
}

// Directives parses every overlay of the generator.
func (g *Generator) Directives() ([]Directive, error) {
	if g == nil {
		return nil, nil
	}
	dirs := make([]Directive, 0, len(g.Overlays))
	for i, o := range g.Overlays {
		d, err := o.Directive()
		if err != nil {
			return nil, fmt.Errorf("overlay %d: %w", i, err)
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}

// Apply runs the directives in order over g. Noise is drawn from a source
// seeded with seed so the result is reproducible.
func Apply(dirs []Directive, g *grid.Grid, seed int64) error {
	for _, d := range dirs {
		if d.Chemical >= g.Chemicals() {
			return fmt.Errorf("overlay targets chemical %s of a %d-chemical grid", rd.ChemicalName(d.Chemical), g.Chemicals())
		}
	}
	rng := rand.New(rand.NewSource(seed))
	dims := g.Dims()
	front := g.Front()
	for _, d := range dirs {
		for z := 0; z < dims.Z; z++ {
			for y := 0; y < dims.Y; y++ {
				for x := 0; x < dims.X; x++ {
					p := [3]float64{
						(float64(x) + 0.5) / float64(dims.X),
						(float64(y) + 0.5) / float64(dims.Y),
						(float64(z) + 0.5) / float64(dims.Z),
					}
					if !d.Shape.Contains(p) {
						continue
					}
					i := g.View.Offset(x, y, z)
					front[d.Chemical][i] = d.Op.apply(front[d.Chemical][i], d.Fill.Value(rng))
				}
			}
		}
	}
	return nil
}
