package domain

import (
	"fmt"
	"strings"
)

// PatternTerm is one position of a rule pattern: a variable, a constant, or
// (in rule consequents only) a template that mints an identifier from the
// local names of bound variables, e.g. "tourism:Destination_{city}".
type PatternTerm struct {
	Var      string
	Const    Term
	Template string
}

func Var(name string) PatternTerm         { return PatternTerm{Var: name} }
func Const(t Term) PatternTerm            { return PatternTerm{Const: t} }
func ConstRef(id string) PatternTerm      { return PatternTerm{Const: NewRef(id)} }
func TemplateRef(tmpl string) PatternTerm { return PatternTerm{Template: tmpl} }
func (p PatternTerm) IsVar() bool         { return p.Var != "" }
func (p PatternTerm) IsTemplate() bool    { return p.Template != "" }

func (p PatternTerm) String() string {
	switch {
	case p.IsVar():
		return "?" + p.Var
	case p.IsTemplate():
		return "<" + p.Template + ">"
	}
	return p.Const.String()
}

// TemplateVars returns the variable names referenced by a template.
func (p PatternTerm) TemplateVars() []string {
	var out []string
	s := p.Template
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			return out
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return out
		}
		out = append(out, s[i+1:i+j])
		s = s[i+j+1:]
	}
}

// Pattern is a fact pattern (subject, predicate, object).
type Pattern struct {
	Subject   PatternTerm
	Predicate PatternTerm
	Object    PatternTerm
}

func (p Pattern) String() string {
	return fmt.Sprintf("(%s %s %s)", p.Subject, p.Predicate, p.Object)
}

// Vars returns the variables bound by matching p, in position order.
func (p Pattern) Vars() []string {
	var out []string
	for _, t := range []PatternTerm{p.Subject, p.Predicate, p.Object} {
		if t.IsVar() {
			out = append(out, t.Var)
		}
	}
	return out
}

type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

func ValidCompareOp(op string) bool {
	switch CompareOp(op) {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Filter constrains a bound variable. Ordering operators compare numerically
// and fail for non-numeric operands; = and != compare terms exactly.
type Filter struct {
	Var   string
	Op    CompareOp
	Value Term
}

func (f Filter) Holds(t Term) bool {
	switch f.Op {
	case OpEq:
		return t == f.Value
	case OpNe:
		return t != f.Value
	}
	a, ok := t.Numeric()
	if !ok {
		return false
	}
	b, ok := f.Value.Numeric()
	if !ok {
		return false
	}
	switch f.Op {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

// InferenceRule derives every Then pattern for each consistent binding of the
// When patterns that satisfies all filters. Rules never retract.
type InferenceRule struct {
	ID          string
	Description string
	When        []Pattern
	Where       []Filter
	Then        []Pattern
}

// DerivedFact is a fact produced by inference. RuleIDs lists every rule that
// produced it in the pass it first appeared.
type DerivedFact struct {
	Fact
	RuleIDs []string `json:"rule_ids"`
}

func (d DerivedFact) DerivedBy(ruleID string) bool {
	for _, id := range d.RuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

type ContradictionKind string

const (
	ContradictionDisjointTypes   ContradictionKind = "disjoint_types"
	ContradictionFunctional      ContradictionKind = "functional"
	ContradictionExclusiveValues ContradictionKind = "exclusive_values"
)

func ValidContradictionKind(k string) bool {
	switch ContradictionKind(k) {
	case ContradictionDisjointTypes, ContradictionFunctional, ContradictionExclusiveValues:
		return true
	}
	return false
}

// ContradictionRule is the closed set of mutual-exclusion rule kinds.
type ContradictionRule interface {
	RuleID() string
	Kind() ContradictionKind
	isContradictionRule()
}

// DisjointTypes flags an entity typed both ClassA and ClassB.
type DisjointTypes struct {
	ID     string
	ClassA string
	ClassB string
}

// FunctionalProperty flags a subject with two distinct values of Property.
type FunctionalProperty struct {
	ID       string
	Property string
}

// PropertyValue is a (property, value) pair on an implicit subject.
type PropertyValue struct {
	Property string
	Value    Term
}

// ExclusiveValues flags a subject carrying both Left and Right.
type ExclusiveValues struct {
	ID    string
	Left  PropertyValue
	Right PropertyValue
}

func (r DisjointTypes) RuleID() string      { return r.ID }
func (r FunctionalProperty) RuleID() string { return r.ID }
func (r ExclusiveValues) RuleID() string    { return r.ID }

func (DisjointTypes) Kind() ContradictionKind      { return ContradictionDisjointTypes }
func (FunctionalProperty) Kind() ContradictionKind { return ContradictionFunctional }
func (ExclusiveValues) Kind() ContradictionKind    { return ContradictionExclusiveValues }

func (DisjointTypes) isContradictionRule()      {}
func (FunctionalProperty) isContradictionRule() {}
func (ExclusiveValues) isContradictionRule()    {}

// Contradiction relates two facts that a rule declares mutually exclusive.
// A sorts before B so that each pair is reported once.
type Contradiction struct {
	A      Fact   `json:"fact_a"`
	B      Fact   `json:"fact_b"`
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

func NewContradiction(a, b Fact, ruleID, reason string) Contradiction {
	if b.Compare(a) < 0 {
		a, b = b, a
	}
	return Contradiction{A: a, B: b, RuleID: ruleID, Reason: reason}
}

// Involves reports whether f is one of the two facts.
func (c Contradiction) Involves(f Fact) bool {
	return c.A == f || c.B == f
}

func (c Contradiction) Compare(o Contradiction) int {
	if x := c.A.Compare(o.A); x != 0 {
		return x
	}
	if x := c.B.Compare(o.B); x != 0 {
		return x
	}
	return strings.Compare(c.RuleID, o.RuleID)
}

// RuleSet is the immutable configuration loaded once at startup.
type RuleSet struct {
	Name           string
	Version        string
	Constraints    []Constraint
	Rules          []InferenceRule
	Contradictions []ContradictionRule
}
