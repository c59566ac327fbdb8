package rules

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// tokenize splits a pattern or filter line on whitespace, keeping
// double-quoted string literals (with Go escapes) as single tokens.
func tokenize(line string) ([]string, error) {
	var tokens []string
	s := strings.TrimSpace(line)
	for s != "" {
		if s[0] == '"' {
			end := closingQuote(s)
			if end < 0 {
				return nil, errors.Newf("unterminated string literal in %q", line)
			}
			tokens = append(tokens, s[:end+1])
			s = strings.TrimLeftFunc(s[end+1:], unicode.IsSpace)
			continue
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			end = len(s)
		}
		tokens = append(tokens, s[:end])
		s = strings.TrimLeftFunc(s[end:], unicode.IsSpace)
	}
	return tokens, nil
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func isVariable(tok string) bool {
	return len(tok) > 1 && (tok[0] == '?' || tok[0] == '$')
}

func validVarName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// parseTerm reads a constant token.
func parseTerm(tok string) (domain.Term, error) {
	switch {
	case tok == "":
		return domain.Term{}, errors.New("empty term")
	case tok[0] == '"':
		s, err := strconv.Unquote(tok)
		if err != nil {
			return domain.Term{}, errors.Wrapf(err, "string literal %s", tok)
		}
		return domain.NewString(s), nil
	case tok == "true" || tok == "false":
		return domain.NewBoolean(tok == "true"), nil
	}
	if looksNumeric(tok) {
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return domain.NewInteger(i), nil
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return domain.Term{}, errors.Wrapf(err, "numeric literal %s", tok)
		}
		if !isFinite(f) {
			return domain.Term{}, errors.Newf("numeric literal %s is not finite", tok)
		}
		return domain.NewDecimal(f), nil
	}
	return domain.NewRef(tok), nil
}

func looksNumeric(tok string) bool {
	c := tok[0]
	if c == '-' || c == '+' {
		if len(tok) == 1 {
			return false
		}
		c = tok[1]
	}
	return c >= '0' && c <= '9'
}

// parsePatternTerm reads one position of a pattern. Templates are only
// accepted where allowTemplate is set.
func parsePatternTerm(tok string, allowTemplate bool) (domain.PatternTerm, error) {
	if isVariable(tok) {
		name := tok[1:]
		if !validVarName(name) {
			return domain.PatternTerm{}, errors.Newf("invalid variable name %q", tok)
		}
		return domain.Var(name), nil
	}
	if tok[0] != '"' && strings.ContainsAny(tok, "{}") {
		if !allowTemplate {
			return domain.PatternTerm{}, errors.Newf("template %q is only allowed in rule consequents", tok)
		}
		tmpl := domain.TemplateRef(tok)
		vars := tmpl.TemplateVars()
		if len(vars) == 0 || strings.Count(tok, "{") != len(vars) || strings.Count(tok, "}") != len(vars) {
			return domain.PatternTerm{}, errors.Newf("malformed template %q", tok)
		}
		for _, v := range vars {
			if !validVarName(v) {
				return domain.PatternTerm{}, errors.Newf("invalid variable %q in template %q", v, tok)
			}
		}
		return tmpl, nil
	}
	t, err := parseTerm(tok)
	if err != nil {
		return domain.PatternTerm{}, err
	}
	return domain.Const(t), nil
}

// parsePattern reads "subject predicate object".
func parsePattern(line string, consequent bool) (domain.Pattern, error) {
	toks, err := tokenize(line)
	if err != nil {
		return domain.Pattern{}, err
	}
	if len(toks) != 3 {
		return domain.Pattern{}, errors.Newf("pattern %q must have subject, predicate and object", line)
	}

	var p domain.Pattern
	if p.Subject, err = parsePatternTerm(toks[0], consequent); err != nil {
		return p, err
	}
	if p.Predicate, err = parsePatternTerm(toks[1], false); err != nil {
		return p, err
	}
	if p.Object, err = parsePatternTerm(toks[2], consequent); err != nil {
		return p, err
	}

	if !p.Subject.IsVar() && !p.Subject.IsTemplate() && !p.Subject.Const.IsRef() {
		return p, errors.Newf("pattern %q: subject must be an identifier", line)
	}
	if !p.Predicate.IsVar() && !p.Predicate.Const.IsRef() {
		return p, errors.Newf("pattern %q: predicate must be an identifier", line)
	}
	return p, nil
}

// parseFilter reads "?var op value".
func parseFilter(line string) (domain.Filter, error) {
	toks, err := tokenize(line)
	if err != nil {
		return domain.Filter{}, err
	}
	if len(toks) != 3 {
		return domain.Filter{}, errors.Newf("filter %q must have the form ?var op value", line)
	}
	if !isVariable(toks[0]) || !validVarName(toks[0][1:]) {
		return domain.Filter{}, errors.Newf("filter %q must start with a variable", line)
	}
	if !domain.ValidCompareOp(toks[1]) {
		return domain.Filter{}, errors.Newf("filter %q: unknown operator %q", line, toks[1])
	}
	value, err := parseTerm(toks[2])
	if err != nil {
		return domain.Filter{}, errors.Wrapf(err, "filter %q", line)
	}
	op := domain.CompareOp(toks[1])
	if op != domain.OpEq && op != domain.OpNe {
		if _, ok := value.Numeric(); !ok {
			return domain.Filter{}, errors.Newf("filter %q: operator %s needs a numeric value", line, op)
		}
	}
	return domain.Filter{Var: toks[0][1:], Op: op, Value: value}, nil
}

// termFromNode converts a YAML scalar into a term: quoted scalars are string
// literals, resolved booleans and numbers are typed literals and any other
// plain scalar is an identifier.
func termFromNode(n *yaml.Node) (domain.Term, error) {
	if n == nil || n.Kind != yaml.ScalarNode {
		return domain.Term{}, errors.New("value must be a scalar")
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return domain.NewString(n.Value), nil
	}
	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return domain.Term{}, errors.Wrapf(err, "line %d", n.Line)
		}
		return domain.NewBoolean(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return domain.Term{}, errors.Wrapf(err, "line %d", n.Line)
		}
		return domain.NewInteger(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return domain.Term{}, errors.Wrapf(err, "line %d", n.Line)
		}
		if !isFinite(f) {
			return domain.Term{}, errors.Newf("line %d: %s is not a finite number", n.Line, n.Value)
		}
		return domain.NewDecimal(f), nil
	case "!!null":
		return domain.Term{}, errors.Newf("line %d: value must not be null", n.Line)
	}
	if n.Value == "" {
		return domain.Term{}, errors.Newf("line %d: empty identifier", n.Line)
	}
	return domain.NewRef(n.Value), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
