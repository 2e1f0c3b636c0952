package rd

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedNeighborhood is returned for a (dimensionality, type,
	// range, weight) combination without a validated stencil.
	ErrUnsupportedNeighborhood = errors.New("unsupported neighborhood configuration")
	// ErrNotPowerOfTwo is returned when a wrapping grid has a dimension that is
	// not a power of two.
	ErrNotPowerOfTwo = errors.New("wrapping grid dimensions must be powers of two")
	// ErrFormula is returned when a formula or parameter list does not fit the
	// rule's chemicals.
	ErrFormula = errors.New("invalid formula")
	// ErrGridTooLarge is returned when the requested fields cannot be addressed.
	ErrGridTooLarge = errors.New("grid too large")
	// ErrUnsupportedBackend is returned when a rule cannot run on the selected
	// backend.
	ErrUnsupportedBackend = errors.New("unsupported backend for rule")
)

// NeighborhoodError names the requested combination that has no stencil.
type NeighborhoodError struct {
	Dimensionality int
	Neighborhood   Neighborhood
}

func (e *NeighborhoodError) Error() string {
	return fmt.Sprintf("%v: dimensionality=%d type=%s range=%d weight=%s",
		ErrUnsupportedNeighborhood, e.Dimensionality, e.Neighborhood.Type,
		e.Neighborhood.Range, e.Neighborhood.Weight)
}

func (e *NeighborhoodError) Unwrap() error { return ErrUnsupportedNeighborhood }

// FormulaError collects every issue found while validating a formula and its
// parameters.
type FormulaError struct {
	Issues []string
}

func (e *FormulaError) Error() string {
	if len(e.Issues) == 0 {
		return ErrFormula.Error()
	}
	if len(e.Issues) == 1 {
		return ErrFormula.Error() + ": " + e.Issues[0]
	}
	return ErrFormula.Error() + ": " + strings.Join(e.Issues, "; ")
}

func (e *FormulaError) Unwrap() error { return ErrFormula }

// Add records an issue.
func (e *FormulaError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

// HasIssues reports whether any issue was recorded.
func (e *FormulaError) HasIssues() bool {
	return len(e.Issues) > 0
}
