package inference

import (
	"strings"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// binding maps variable names to terms. Subjects and predicates bind as refs.
type binding map[string]domain.Term

func (b binding) extend(name string, t domain.Term) (binding, bool) {
	if cur, ok := b[name]; ok {
		return b, cur == t
	}
	next := make(binding, len(b)+1)
	for k, v := range b {
		next[k] = v
	}
	next[name] = t
	return next, true
}

// resolve returns the constant a pattern position stands for under b.
func (b binding) resolve(pt domain.PatternTerm) (domain.Term, bool) {
	if pt.IsVar() {
		t, ok := b[pt.Var]
		return t, ok
	}
	return pt.Const, true
}

// match returns every binding that satisfies all patterns, in a
// deterministic order given by the canonical order of idx.
func match(patterns []domain.Pattern, idx *domain.Index, b binding) []binding {
	if len(patterns) == 0 {
		return []binding{b}
	}
	p := patterns[0]

	var out []binding
	for _, f := range candidates(p, idx, b) {
		next, ok := unify(p, f, b)
		if !ok {
			continue
		}
		out = append(out, match(patterns[1:], idx, next)...)
	}
	return out
}

// candidates narrows the facts a pattern could match using whatever
// position is already fixed.
func candidates(p domain.Pattern, idx *domain.Index, b binding) []domain.Fact {
	if s, ok := b.resolve(p.Subject); ok {
		if !s.IsRef() {
			return nil
		}
		return idx.BySubject(s.Lexical)
	}
	if pr, ok := b.resolve(p.Predicate); ok {
		if !pr.IsRef() {
			return nil
		}
		return idx.ByPredicate(pr.Lexical)
	}
	return idx.Facts()
}

func unify(p domain.Pattern, f domain.Fact, b binding) (binding, bool) {
	b, ok := unifyTerm(p.Subject, domain.NewRef(f.Subject), b)
	if !ok {
		return nil, false
	}
	b, ok = unifyTerm(p.Predicate, domain.NewRef(f.Predicate), b)
	if !ok {
		return nil, false
	}
	return unifyTerm(p.Object, f.Object, b)
}

func unifyTerm(pt domain.PatternTerm, t domain.Term, b binding) (binding, bool) {
	if pt.IsVar() {
		return b.extend(pt.Var, t)
	}
	return b, pt.Const == t
}

func (b binding) satisfies(filters []domain.Filter) bool {
	for _, f := range filters {
		t, ok := b[f.Var]
		if !ok || !f.Holds(t) {
			return false
		}
	}
	return true
}

// instantiate builds the fact a consequent pattern denotes under b. It fails
// when a subject or predicate would not be an identifier.
func (b binding) instantiate(p domain.Pattern) (domain.Fact, bool) {
	s, ok := b.ground(p.Subject)
	if !ok || !s.IsRef() {
		return domain.Fact{}, false
	}
	pr, ok := b.ground(p.Predicate)
	if !ok || !pr.IsRef() {
		return domain.Fact{}, false
	}
	o, ok := b.ground(p.Object)
	if !ok {
		return domain.Fact{}, false
	}
	return domain.NewFact(s.Lexical, pr.Lexical, o), true
}

func (b binding) ground(pt domain.PatternTerm) (domain.Term, bool) {
	if pt.IsTemplate() {
		return b.mint(pt.Template)
	}
	return b.resolve(pt)
}

// mint expands a template such as "ex:Destination_{c}_{a}" with the local
// names of the bound identifiers.
func (b binding) mint(tmpl string) (domain.Term, bool) {
	var sb strings.Builder
	s := tmpl
	for {
		i := strings.IndexByte(s, '{')
		if i < 0 {
			sb.WriteString(s)
			break
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return domain.Term{}, false
		}
		t, ok := b[s[i+1:i+j]]
		if !ok {
			return domain.Term{}, false
		}
		sb.WriteString(s[:i])
		sb.WriteString(domain.LocalName(t.Lexical))
		s = s[i+j+1:]
	}
	return domain.NewRef(sb.String()), true
}
