// Package rules loads the shape constraint, inference rule and contradiction
// rule sets from YAML into immutable domain structures.
package rules

import (
	"bytes"
	_ "embed"
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

//go:embed default.yaml
var defaultRuleSet []byte

// ErrInvalidRuleSet marks every load or compile failure.
var ErrInvalidRuleSet = errors.New("invalid rule set")

var validate = validator.New()

type ruleSetDoc struct {
	Name           string             `yaml:"name" validate:"required"`
	Version        string             `yaml:"version"`
	Constraints    []constraintDoc    `yaml:"constraints" validate:"dive"`
	Rules          []ruleDoc          `yaml:"rules" validate:"dive"`
	Contradictions []contradictionDoc `yaml:"contradictions" validate:"dive"`
}

type constraintDoc struct {
	ID       string      `yaml:"id" validate:"required"`
	Kind     string      `yaml:"kind" validate:"required,oneof=cardinality range datatype domain class in"`
	Target   string      `yaml:"target"`
	Property string      `yaml:"property" validate:"required"`
	MinCount *int        `yaml:"min_count" validate:"omitempty,gte=0"`
	MaxCount *int        `yaml:"max_count" validate:"omitempty,gte=0"`
	Min      *float64    `yaml:"min"`
	Max      *float64    `yaml:"max"`
	Datatype string      `yaml:"datatype" validate:"required_if=Kind datatype,omitempty,oneof=ref string decimal integer boolean"`
	Class    string      `yaml:"class"`
	Values   []yaml.Node `yaml:"values"`
}

type ruleDoc struct {
	ID          string   `yaml:"id" validate:"required"`
	Description string   `yaml:"description"`
	When        []string `yaml:"when" validate:"required,min=1,dive,required"`
	Where       []string `yaml:"where" validate:"dive,required"`
	Then        []string `yaml:"then" validate:"required,min=1,dive,required"`
}

type propertyValueDoc struct {
	Property string    `yaml:"property" validate:"required"`
	Value    yaml.Node `yaml:"value"`
}

type contradictionDoc struct {
	ID       string            `yaml:"id" validate:"required"`
	Kind     string            `yaml:"kind" validate:"required,oneof=disjoint_types functional exclusive_values"`
	Classes  []string          `yaml:"classes" validate:"required_if=Kind disjoint_types,omitempty,len=2,dive,required"`
	Property string            `yaml:"property" validate:"required_if=Kind functional"`
	Left     *propertyValueDoc `yaml:"left" validate:"required_if=Kind exclusive_values"`
	Right    *propertyValueDoc `yaml:"right" validate:"required_if=Kind exclusive_values"`
}

// Default returns the embedded tourism rule set.
func Default() *domain.RuleSet {
	rs, err := Parse(defaultRuleSet)
	if err != nil {
		panic(errors.Wrap(err, "embedded rule set"))
	}
	return rs
}

// Load reads a rule set from path, or returns Default when path is empty.
func Load(path string) (*domain.RuleSet, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rule set %s", path)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "rule set %s", path)
	}
	return rs, nil
}

// Parse decodes and compiles a YAML rule set. Unknown fields are rejected.
func Parse(data []byte) (*domain.RuleSet, error) {
	var doc ruleSetDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode rule set"), ErrInvalidRuleSet)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "validate rule set"), ErrInvalidRuleSet)
	}
	rs, err := compile(doc)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidRuleSet)
	}
	return rs, nil
}

func compile(doc ruleSetDoc) (*domain.RuleSet, error) {
	rs := &domain.RuleSet{Name: doc.Name, Version: doc.Version}

	seen := make(map[string]struct{})
	for _, c := range doc.Constraints {
		if _, dup := seen[c.ID]; dup {
			return nil, errors.Newf("duplicate constraint id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		compiled, err := compileConstraint(c)
		if err != nil {
			return nil, errors.Wrapf(err, "constraint %s", c.ID)
		}
		rs.Constraints = append(rs.Constraints, compiled)
	}

	seen = make(map[string]struct{})
	for _, r := range doc.Rules {
		if _, dup := seen[r.ID]; dup {
			return nil, errors.Newf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		compiled, err := compileRule(r)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s", r.ID)
		}
		rs.Rules = append(rs.Rules, compiled)
	}

	seen = make(map[string]struct{})
	for _, c := range doc.Contradictions {
		if _, dup := seen[c.ID]; dup {
			return nil, errors.Newf("duplicate contradiction id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
		compiled, err := compileContradiction(c)
		if err != nil {
			return nil, errors.Wrapf(err, "contradiction %s", c.ID)
		}
		rs.Contradictions = append(rs.Contradictions, compiled)
	}
	return rs, nil
}

func compileConstraint(c constraintDoc) (domain.Constraint, error) {
	ref := domain.ConstraintRef{ID: c.ID, TargetClass: c.Target, Property: c.Property}

	switch domain.ConstraintKind(c.Kind) {
	case domain.ConstraintCardinality:
		if c.MinCount == nil && c.MaxCount == nil {
			return nil, errors.New("cardinality needs min_count or max_count")
		}
		card := domain.Cardinality{ConstraintRef: ref, Max: -1}
		if c.MinCount != nil {
			card.Min = *c.MinCount
		}
		if c.MaxCount != nil {
			card.Max = *c.MaxCount
			if card.Max < card.Min {
				return nil, errors.Newf("max_count %d is below min_count %d", card.Max, card.Min)
			}
		}
		if card.Min > 0 && c.Target == "" {
			return nil, errors.New("min_count needs a target class")
		}
		return card, nil

	case domain.ConstraintRange:
		if c.Min == nil && c.Max == nil {
			return nil, errors.New("range needs min or max")
		}
		for _, bound := range []*float64{c.Min, c.Max} {
			if bound != nil && !isFinite(*bound) {
				return nil, errors.Newf("range bound %v is not a finite number", *bound)
			}
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return nil, errors.Newf("min %v exceeds max %v", *c.Min, *c.Max)
		}
		return domain.NumericRange{ConstraintRef: ref, Min: c.Min, Max: c.Max}, nil

	case domain.ConstraintDatatype:
		return domain.Datatype{ConstraintRef: ref, Datatype: domain.TermKind(c.Datatype)}, nil

	case domain.ConstraintDomain:
		if c.Class == "" {
			return nil, errors.New("domain needs a class")
		}
		return domain.Domain{ConstraintRef: ref, Class: c.Class}, nil

	case domain.ConstraintClass:
		if c.Class == "" {
			return nil, errors.New("class needs a class")
		}
		return domain.ObjectClass{ConstraintRef: ref, Class: c.Class}, nil

	case domain.ConstraintIn:
		if len(c.Values) == 0 {
			return nil, errors.New("in needs at least one value")
		}
		values := make([]domain.Term, 0, len(c.Values))
		for i := range c.Values {
			t, err := termFromNode(&c.Values[i])
			if err != nil {
				return nil, err
			}
			values = append(values, t)
		}
		slices.SortFunc(values, domain.Term.Compare)
		return domain.AllowedValues{ConstraintRef: ref, Values: slices.Compact(values)}, nil
	}
	return nil, errors.Newf("unknown constraint kind %q", c.Kind)
}

func compileRule(r ruleDoc) (domain.InferenceRule, error) {
	rule := domain.InferenceRule{ID: r.ID, Description: r.Description}

	bound := make(map[string]struct{})
	for _, line := range r.When {
		p, err := parsePattern(line, false)
		if err != nil {
			return rule, err
		}
		for _, v := range p.Vars() {
			bound[v] = struct{}{}
		}
		rule.When = append(rule.When, p)
	}

	for _, line := range r.Where {
		f, err := parseFilter(line)
		if err != nil {
			return rule, err
		}
		if _, ok := bound[f.Var]; !ok {
			return rule, errors.Newf("filter %q uses unbound variable ?%s", line, f.Var)
		}
		rule.Where = append(rule.Where, f)
	}

	for _, line := range r.Then {
		p, err := parsePattern(line, true)
		if err != nil {
			return rule, err
		}
		for _, pt := range []domain.PatternTerm{p.Subject, p.Predicate, p.Object} {
			var used []string
			switch {
			case pt.IsVar():
				used = []string{pt.Var}
			case pt.IsTemplate():
				used = pt.TemplateVars()
			}
			for _, v := range used {
				if _, ok := bound[v]; !ok {
					return rule, errors.Newf("consequent %q uses unbound variable ?%s", line, v)
				}
			}
		}
		rule.Then = append(rule.Then, p)
	}
	return rule, nil
}

func compileContradiction(c contradictionDoc) (domain.ContradictionRule, error) {
	switch domain.ContradictionKind(c.Kind) {
	case domain.ContradictionDisjointTypes:
		if c.Classes[0] == c.Classes[1] {
			return nil, errors.Newf("class %q cannot be disjoint with itself", c.Classes[0])
		}
		return domain.DisjointTypes{ID: c.ID, ClassA: c.Classes[0], ClassB: c.Classes[1]}, nil

	case domain.ContradictionFunctional:
		return domain.FunctionalProperty{ID: c.ID, Property: c.Property}, nil

	case domain.ContradictionExclusiveValues:
		left, err := compilePropertyValue(c.Left)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}
		right, err := compilePropertyValue(c.Right)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}
		if left == right {
			return nil, errors.New("left and right must differ")
		}
		return domain.ExclusiveValues{ID: c.ID, Left: left, Right: right}, nil
	}
	return nil, errors.Newf("unknown contradiction kind %q", c.Kind)
}

func compilePropertyValue(pv *propertyValueDoc) (domain.PropertyValue, error) {
	v, err := termFromNode(&pv.Value)
	if err != nil {
		return domain.PropertyValue{}, err
	}
	return domain.PropertyValue{Property: pv.Property, Value: v}, nil
}
