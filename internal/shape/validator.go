// Package shape checks fact graphs against structural constraints.
package shape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// Validator evaluates a fixed constraint set. It holds no mutable state and
// is safe for concurrent use.
type Validator struct {
	constraints []domain.Constraint
}

func NewValidator(constraints []domain.Constraint) *Validator {
	return &Validator{constraints: constraints}
}

// Validate checks every constraint against g in a single pass.
// The report does not depend on the order facts were added in.
func (v *Validator) Validate(g *domain.Graph) domain.ValidationReport {
	return v.ValidateIndex(g.Index())
}

func (v *Validator) ValidateIndex(idx *domain.Index) domain.ValidationReport {
	var out []domain.Violation
	for _, c := range v.constraints {
		out = append(out, check(c, idx)...)
	}
	return domain.NewValidationReport(out)
}

// targets returns the subjects a constraint applies to.
func targets(ref domain.ConstraintRef, idx *domain.Index) []string {
	if ref.TargetClass != "" {
		return idx.SubjectsOfType(ref.TargetClass)
	}
	var out []string
	var last string
	for _, f := range idx.ByPredicate(ref.Property) {
		if f.Subject != last {
			out = append(out, f.Subject)
			last = f.Subject
		}
	}
	return out
}

func check(c domain.Constraint, idx *domain.Index) []domain.Violation {
	ref := c.Ref()
	var out []domain.Violation

	violation := func(subject string, kind domain.ViolationKind, value *domain.Term, reason string) {
		out = append(out, domain.Violation{
			Subject:      subject,
			ConstraintID: ref.ID,
			Property:     ref.Property,
			Kind:         kind,
			Value:        value,
			Reason:       reason,
		})
	}

	for _, s := range targets(ref, idx) {
		values := idx.Values(s, ref.Property)

		switch c := c.(type) {
		case domain.Cardinality:
			n := len(values)
			if n < c.Min {
				reason := fmt.Sprintf("%s requires at least %d %s, found %d", s, c.Min, ref.Property, n)
				if n == 0 {
					reason = fmt.Sprintf("%s is missing required property %s", s, ref.Property)
				}
				violation(s, domain.ViolationMissingProperty, nil, reason)
			}
			if c.Max >= 0 && n > c.Max {
				violation(s, domain.ViolationTooManyValues, nil,
					fmt.Sprintf("%s allows at most %d %s, found %d", s, c.Max, ref.Property, n))
			}

		case domain.NumericRange:
			for _, val := range values {
				f, ok := val.Numeric()
				if !ok {
					continue
				}
				if c.Min != nil && f < *c.Min {
					violation(s, domain.ViolationOutOfRange, termPtr(val),
						fmt.Sprintf("%s %s is below minimum %s", local(ref.Property), numeral(val), formatBound(*c.Min)))
				}
				if c.Max != nil && f > *c.Max {
					violation(s, domain.ViolationOutOfRange, termPtr(val),
						fmt.Sprintf("%s %s exceeds maximum %s", local(ref.Property), numeral(val), formatBound(*c.Max)))
				}
			}

		case domain.Datatype:
			for _, val := range values {
				if !hasDatatype(val, c.Datatype) {
					violation(s, domain.ViolationWrongDatatype, termPtr(val),
						fmt.Sprintf("%s value %s is %s, expected %s", ref.Property, val, val.Kind, c.Datatype))
				}
			}

		case domain.Domain:
			if len(values) > 0 && !idx.HasType(s, c.Class) {
				violation(s, domain.ViolationDomainMismatch, nil,
					fmt.Sprintf("%s uses %s but is not a %s", s, ref.Property, c.Class))
			}

		case domain.ObjectClass:
			for _, val := range values {
				if !val.IsRef() || !idx.HasType(val.Lexical, c.Class) {
					violation(s, domain.ViolationClassMismatch, termPtr(val),
						fmt.Sprintf("%s value %s is not a %s", ref.Property, val, c.Class))
				}
			}

		case domain.AllowedValues:
			for _, val := range values {
				if !allowed(val, c.Values) {
					violation(s, domain.ViolationNotAllowed, termPtr(val),
						fmt.Sprintf("%s value %s is not one of %s", ref.Property, val, listTerms(c.Values)))
				}
			}
		}
	}
	return out
}

// hasDatatype accepts integers where decimals are expected.
func hasDatatype(t domain.Term, kind domain.TermKind) bool {
	if t.Kind == kind {
		return true
	}
	return kind == domain.TermDecimal && t.Kind == domain.TermInteger
}

func allowed(t domain.Term, values []domain.Term) bool {
	for _, v := range values {
		if v == t {
			return true
		}
	}
	return false
}

func termPtr(t domain.Term) *domain.Term {
	return &t
}

func local(property string) string {
	return domain.LocalName(property)
}

// numeral renders decimals with at least one fractional digit, so a rating
// of 6.0 reads "6.0" rather than "6".
func numeral(t domain.Term) string {
	if t.Kind == domain.TermDecimal && !strings.Contains(t.Lexical, ".") {
		return t.Lexical + ".0"
	}
	return t.Lexical
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func listTerms(ts []domain.Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
