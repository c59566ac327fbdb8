package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// TypePredicate is the predicate used for class membership.
const TypePredicate = "rdf:type"

type TermKind string

const (
	TermRef     TermKind = "ref"
	TermString  TermKind = "string"
	TermDecimal TermKind = "decimal"
	TermInteger TermKind = "integer"
	TermBoolean TermKind = "boolean"
)

func ValidTermKind(k string) bool {
	switch TermKind(k) {
	case TermRef, TermString, TermDecimal, TermInteger, TermBoolean:
		return true
	}
	return false
}

// Term is the object position of a fact: an identifier or a typed literal.
// Terms are comparable and the lexical form is canonical, so two terms are
// equal exactly when they denote the same value.
type Term struct {
	Kind    TermKind
	Lexical string
}

func NewRef(id string) Term {
	return Term{Kind: TermRef, Lexical: id}
}

func NewString(s string) Term {
	return Term{Kind: TermString, Lexical: s}
}

func NewDecimal(f float64) Term {
	if f == 0 {
		f = 0 // normalize -0
	}
	return Term{Kind: TermDecimal, Lexical: strconv.FormatFloat(f, 'f', -1, 64)}
}

func NewInteger(i int64) Term {
	return Term{Kind: TermInteger, Lexical: strconv.FormatInt(i, 10)}
}

func NewBoolean(b bool) Term {
	return Term{Kind: TermBoolean, Lexical: strconv.FormatBool(b)}
}

func (t Term) IsRef() bool {
	return t.Kind == TermRef
}

// Numeric returns the value of a decimal or integer literal.
func (t Term) Numeric() (float64, bool) {
	switch t.Kind {
	case TermDecimal, TermInteger:
		f, err := strconv.ParseFloat(t.Lexical, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func (t Term) Bool() (bool, bool) {
	if t.Kind != TermBoolean {
		return false, false
	}
	b, err := strconv.ParseBool(t.Lexical)
	return b, err == nil
}

func (t Term) Validate() error {
	switch t.Kind {
	case TermRef:
		if t.Lexical == "" {
			return errors.New("ref object must not be empty")
		}
	case TermString:
	case TermDecimal, TermInteger:
		f, ok := t.Numeric()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Newf("invalid %s literal %q", t.Kind, t.Lexical)
		}
	case TermBoolean:
		if _, ok := t.Bool(); !ok {
			return errors.Newf("invalid boolean literal %q", t.Lexical)
		}
	default:
		return errors.Newf("unknown term kind %q", t.Kind)
	}
	return nil
}

// Compare orders terms by kind, then numerically for numbers, then lexically.
func (t Term) Compare(o Term) int {
	if t.Kind != o.Kind {
		return strings.Compare(string(t.Kind), string(o.Kind))
	}
	if a, ok := t.Numeric(); ok {
		if b, ok := o.Numeric(); ok {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(t.Lexical, o.Lexical)
}

func (t Term) String() string {
	switch t.Kind {
	case TermRef:
		return t.Lexical
	case TermString:
		return strconv.Quote(t.Lexical)
	default:
		return t.Lexical
	}
}

// LocalName returns the part of a ref after the last '#', '/' or ':'.
func (t Term) LocalName() string {
	return LocalName(t.Lexical)
}

func LocalName(id string) string {
	if i := strings.LastIndexAny(id, "#/:"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// termWire is the JSON form of a term: exactly one of the fields is set.
type termWire struct {
	Ref     *string      `json:"ref,omitempty"`
	String  *string      `json:"string,omitempty"`
	Decimal *json.Number `json:"decimal,omitempty"`
	Integer *json.Number `json:"integer,omitempty"`
	Boolean *bool        `json:"boolean,omitempty"`
}

func (t Term) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	switch t.Kind {
	case TermRef, TermString:
		s, err := json.Marshal(t.Lexical)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "%q:%s", string(t.Kind), s)
	case TermDecimal, TermInteger, TermBoolean:
		fmt.Fprintf(&buf, "%q:%s", string(t.Kind), t.Lexical)
	default:
		return nil, errors.Newf("cannot marshal term of kind %q", t.Kind)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Term) UnmarshalJSON(data []byte) error {
	var w termWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return errors.Wrap(err, "decode term")
	}

	set := 0
	var out Term
	if w.Ref != nil {
		set++
		out = NewRef(*w.Ref)
	}
	if w.String != nil {
		set++
		out = NewString(*w.String)
	}
	if w.Decimal != nil {
		set++
		f, err := w.Decimal.Float64()
		if err != nil {
			return errors.Wrapf(err, "decimal literal %q", w.Decimal.String())
		}
		out = NewDecimal(f)
	}
	if w.Integer != nil {
		set++
		i, err := w.Integer.Int64()
		if err != nil {
			return errors.Wrapf(err, "integer literal %q", w.Integer.String())
		}
		out = NewInteger(i)
	}
	if w.Boolean != nil {
		set++
		out = NewBoolean(*w.Boolean)
	}
	if set != 1 {
		return errors.Newf("term must set exactly one of ref, string, decimal, integer, boolean (got %d)", set)
	}
	*t = out
	return nil
}

// Fact is an immutable subject-predicate-object triple, identified by value.
type Fact struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Term   `json:"object"`
}

func NewFact(subject, predicate string, object Term) Fact {
	return Fact{Subject: subject, Predicate: predicate, Object: object}
}

// TypeFact asserts class membership of subject.
func TypeFact(subject, class string) Fact {
	return Fact{Subject: subject, Predicate: TypePredicate, Object: NewRef(class)}
}

func (f Fact) Validate() error {
	if strings.TrimSpace(f.Subject) == "" {
		return errors.New("fact subject is required")
	}
	if strings.TrimSpace(f.Predicate) == "" {
		return errors.New("fact predicate is required")
	}
	if err := f.Object.Validate(); err != nil {
		return errors.Wrapf(err, "fact %s %s", f.Subject, f.Predicate)
	}
	return nil
}

func (f Fact) Compare(o Fact) int {
	if c := strings.Compare(f.Subject, o.Subject); c != 0 {
		return c
	}
	if c := strings.Compare(f.Predicate, o.Predicate); c != 0 {
		return c
	}
	return f.Object.Compare(o.Object)
}

func (f Fact) String() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object)
}
