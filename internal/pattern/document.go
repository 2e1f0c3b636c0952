// Package pattern reads and writes pattern files: the rule, its parameters,
// the grid extents and the overlays that generate the initial pattern.
package pattern

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rdsim/internal/grid"
	"rdsim/internal/rd"
)

// FormatVersion is written to new files.
const FormatVersion = 1

// Document is the root RD element.
type Document struct {
	XMLName       xml.Name   `xml:"RD"`
	FormatVersion int        `xml:"format_version,attr"`
	Description   string     `xml:"description,omitempty"`
	Rule          RuleElem   `xml:"rule"`
	Grid          *GridElem  `xml:"grid,omitempty"`
	Generator     *Generator `xml:"initial_pattern_generator,omitempty"`
}

// RuleElem is the rule element.
type RuleElem struct {
	Name               string      `xml:"name,attr"`
	Type               string      `xml:"type,attr"`
	Wrap               string      `xml:"wrap,attr,omitempty"`
	NeighborhoodType   string      `xml:"neighborhood_type,attr,omitempty"`
	NeighborhoodRange  int         `xml:"neighborhood_range,attr,omitempty"`
	NeighborhoodWeight string      `xml:"neighborhood_weight,attr,omitempty"`
	Params             []ParamElem `xml:"param"`
	Formula            *Payload    `xml:"formula,omitempty"`
	Kernel             *Payload    `xml:"kernel,omitempty"`
}

// ParamElem is one named float.
type ParamElem struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Payload is formula or kernel text.
type Payload struct {
	NumberOfChemicals int    `xml:"number_of_chemicals,attr"`
	Text              string `xml:",chardata"`
}

// GridElem holds the lattice extents.
type GridElem struct {
	X int `xml:"x,attr"`
	Y int `xml:"y,attr"`
	Z int `xml:"z,attr"`
}

// Generator is the ordered list of overlays.
type Generator struct {
	ApplyWhenLoading bool      `xml:"apply_when_loading,attr"`
	Overlays         []Overlay `xml:"overlay"`
}

// Load decodes a document.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding pattern: %w", err)
	}
	return &doc, nil
}

// Encode writes doc with an XML header.
func (d *Document) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding pattern: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// BuildRule converts the rule element to its variant.
func (d *Document) BuildRule() (rd.Rule, error) {
	kind, err := rd.ParseKind(d.Rule.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case rd.KindInbuilt:
		r, ok := rd.LookupReaction(d.Rule.Name)
		if !ok {
			return nil, fmt.Errorf("unknown inbuilt rule %q (have %s)", d.Rule.Name, strings.Join(rd.ReactionNames(), ", "))
		}
		return &rd.InbuiltRule{Reaction: r}, nil
	case rd.KindFormula:
		if d.Rule.Formula == nil {
			return nil, fmt.Errorf("rule %q has no formula element", d.Rule.Name)
		}
		return &rd.FormulaRule{NumChemicals: d.Rule.Formula.NumberOfChemicals, Formula: d.Rule.Formula.Text}, nil
	default:
		if d.Rule.Kernel == nil {
			return nil, fmt.Errorf("rule %q has no kernel element", d.Rule.Name)
		}
		return &rd.KernelRule{NumChemicals: d.Rule.Kernel.NumberOfChemicals, Source: d.Rule.Kernel.Text}, nil
	}
}

// Parameters parses the param elements.
func (d *Document) Parameters() (rd.Parameters, error) {
	params := make(rd.Parameters, 0, len(d.Rule.Params))
	for _, p := range d.Rule.Params {
		v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 32)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		params = append(params, rd.Parameter{Name: p.Name, Value: float32(v)})
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Neighborhood returns the rule's neighborhood, face/1/laplacian when unset.
func (d *Document) Neighborhood() (rd.Neighborhood, error) {
	n := rd.DefaultNeighborhood()
	var err error
	if d.Rule.NeighborhoodType != "" {
		if n.Type, err = rd.ParseNeighborhoodType(d.Rule.NeighborhoodType); err != nil {
			return n, err
		}
	}
	if d.Rule.NeighborhoodRange != 0 {
		n.Range = d.Rule.NeighborhoodRange
	}
	if d.Rule.NeighborhoodWeight != "" {
		if n.Weight, err = rd.ParseWeighting(d.Rule.NeighborhoodWeight); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Wrap reports whether the rule uses periodic boundaries.
func (d *Document) Wrap() bool {
	switch strings.ToLower(strings.TrimSpace(d.Rule.Wrap)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Dims returns the grid extents, or ok=false when the file has none.
func (d *Document) Dims() (dims grid.Dims, ok bool) {
	if d.Grid == nil {
		return grid.Dims{}, false
	}
	return grid.Dims{X: d.Grid.X, Y: d.Grid.Y, Z: d.Grid.Z}, true
}

// New builds a document for a system configuration.
func New(rule rd.Rule, params rd.Parameters, n rd.Neighborhood, wrap bool, dims grid.Dims) *Document {
	d := &Document{
		FormatVersion: FormatVersion,
		Rule: RuleElem{
			Type:               rule.Kind().String(),
			Wrap:               "0",
			NeighborhoodType:   n.Type.String(),
			NeighborhoodRange:  n.Range,
			NeighborhoodWeight: n.Weight.String(),
		},
		Grid: &GridElem{X: dims.X, Y: dims.Y, Z: dims.Z},
	}
	if wrap {
		d.Rule.Wrap = "1"
	}
	for _, p := range params {
		d.Rule.Params = append(d.Rule.Params, ParamElem{
			Name:  p.Name,
			Value: strconv.FormatFloat(float64(p.Value), 'g', -1, 32),
		})
	}
	switch r := rule.(type) {
	case *rd.InbuiltRule:
		d.Rule.Name = r.Reaction.Name
	case *rd.FormulaRule:
		d.Rule.Name = "formula"
		d.Rule.Formula = &Payload{NumberOfChemicals: r.NumChemicals, Text: r.Formula}
	case *rd.KernelRule:
		d.Rule.Name = "kernel"
		d.Rule.Kernel = &Payload{NumberOfChemicals: r.NumChemicals, Text: r.Source}
	}
	return d
}
