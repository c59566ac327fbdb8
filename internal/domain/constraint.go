package domain

import (
	"slices"
	"strings"
)

type ConstraintKind string

const (
	ConstraintCardinality ConstraintKind = "cardinality"
	ConstraintRange       ConstraintKind = "range"
	ConstraintDatatype    ConstraintKind = "datatype"
	ConstraintDomain      ConstraintKind = "domain"
	ConstraintClass       ConstraintKind = "class"
	ConstraintIn          ConstraintKind = "in"
)

func ValidConstraintKind(k string) bool {
	switch ConstraintKind(k) {
	case ConstraintCardinality, ConstraintRange, ConstraintDatatype,
		ConstraintDomain, ConstraintClass, ConstraintIn:
		return true
	}
	return false
}

// ConstraintRef identifies a constraint and the facts it targets. An empty
// TargetClass targets every subject that carries Property.
type ConstraintRef struct {
	ID          string
	TargetClass string
	Property    string
}

func (r ConstraintRef) Ref() ConstraintRef { return r }

// Constraint is the closed set of shape constraint kinds.
type Constraint interface {
	Ref() ConstraintRef
	Kind() ConstraintKind
	isConstraint()
}

// Cardinality bounds the number of values of Property. Max < 0 is unbounded.
type Cardinality struct {
	ConstraintRef
	Min int
	Max int
}

// NumericRange requires numeric values within the closed interval [Min, Max].
// A nil bound is open on that side.
type NumericRange struct {
	ConstraintRef
	Min *float64
	Max *float64
}

// Datatype requires every value of Property to be of the given term kind.
type Datatype struct {
	ConstraintRef
	Datatype TermKind
}

// Domain requires subjects carrying Property to be typed Class.
type Domain struct {
	ConstraintRef
	Class string
}

// ObjectClass requires ref values of Property to be typed Class.
type ObjectClass struct {
	ConstraintRef
	Class string
}

// AllowedValues restricts values of Property to a fixed set.
type AllowedValues struct {
	ConstraintRef
	Values []Term
}

func (Cardinality) Kind() ConstraintKind   { return ConstraintCardinality }
func (NumericRange) Kind() ConstraintKind  { return ConstraintRange }
func (Datatype) Kind() ConstraintKind      { return ConstraintDatatype }
func (Domain) Kind() ConstraintKind        { return ConstraintDomain }
func (ObjectClass) Kind() ConstraintKind   { return ConstraintClass }
func (AllowedValues) Kind() ConstraintKind { return ConstraintIn }

func (Cardinality) isConstraint()   {}
func (NumericRange) isConstraint()  {}
func (Datatype) isConstraint()      {}
func (Domain) isConstraint()        {}
func (ObjectClass) isConstraint()   {}
func (AllowedValues) isConstraint() {}

type ViolationKind string

const (
	ViolationMissingProperty ViolationKind = "missing_property"
	ViolationTooManyValues   ViolationKind = "too_many_values"
	ViolationOutOfRange      ViolationKind = "out_of_range"
	ViolationWrongDatatype   ViolationKind = "wrong_datatype"
	ViolationDomainMismatch  ViolationKind = "domain_mismatch"
	ViolationClassMismatch   ViolationKind = "class_mismatch"
	ViolationNotAllowed      ViolationKind = "value_not_allowed"
)

// Violation is a single failed constraint on a subject.
type Violation struct {
	Subject      string        `json:"subject"`
	ConstraintID string        `json:"constraint_id"`
	Property     string        `json:"property"`
	Kind         ViolationKind `json:"kind"`
	Value        *Term         `json:"value,omitempty"`
	Reason       string        `json:"reason"`
}

func (v Violation) Compare(o Violation) int {
	if c := strings.Compare(v.Subject, o.Subject); c != 0 {
		return c
	}
	if c := strings.Compare(v.ConstraintID, o.ConstraintID); c != 0 {
		return c
	}
	if c := strings.Compare(v.Property, o.Property); c != 0 {
		return c
	}
	if c := strings.Compare(string(v.Kind), string(o.Kind)); c != 0 {
		return c
	}
	switch {
	case v.Value == nil && o.Value == nil:
		return 0
	case v.Value == nil:
		return -1
	case o.Value == nil:
		return 1
	}
	return v.Value.Compare(*o.Value)
}

// ValidationReport is the outcome of shape validation over a graph.
type ValidationReport struct {
	Conforms   bool        `json:"conforms"`
	Violations []Violation `json:"violations"`
}

// NewValidationReport sorts violations into canonical order.
func NewValidationReport(violations []Violation) ValidationReport {
	v := slices.Clone(violations)
	slices.SortFunc(v, Violation.Compare)
	if v == nil {
		v = []Violation{}
	}
	return ValidationReport{Conforms: len(v) == 0, Violations: v}
}

// Filter keeps only violations for which keep returns true.
func (r ValidationReport) Filter(keep func(Violation) bool) ValidationReport {
	var out []Violation
	for _, v := range r.Violations {
		if keep(v) {
			out = append(out, v)
		}
	}
	return NewValidationReport(out)
}
