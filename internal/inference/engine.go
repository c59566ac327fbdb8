// Package inference runs forward-chaining derivation rules to a fixpoint and
// detects contradictions between facts.
package inference

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// DefaultMaxIterations bounds the number of derivation passes.
const DefaultMaxIterations = 10

// ErrIterationBound is returned when derivation does not reach a fixpoint
// within the configured number of passes.
var ErrIterationBound = errors.New("inference iteration bound exceeded")

// Result is the outcome of a derivation run.
type Result struct {
	// Derived holds facts not present in the input, in canonical order.
	Derived    []domain.DerivedFact
	Iterations int
}

// Graph returns the derived facts as a graph.
func (r Result) Graph() *domain.Graph {
	g := domain.NewGraph()
	for _, d := range r.Derived {
		g.Add(d.Fact)
	}
	return g
}

// Engine applies a fixed rule set. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	rules          []domain.InferenceRule
	contradictions []domain.ContradictionRule
	maxIterations  int
}

func NewEngine(rs *domain.RuleSet, maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Engine{
		rules:          rs.Rules,
		contradictions: rs.Contradictions,
		maxIterations:  maxIterations,
	}
}

func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// Derive computes every fact the rules entail from g that g does not already
// hold. Each pass evaluates all rules against the facts known at the start of
// the pass, so the result is independent of rule and fact order. Iterations
// counts passes including the final one that added nothing.
func (e *Engine) Derive(g *domain.Graph) (Result, error) {
	return e.derive(g, nil)
}

// DeriveExcluding is Derive with the facts of blocked never derived. Nothing
// that depends on a blocked fact is derived either, unless some other
// derivation reaches it.
func (e *Engine) DeriveExcluding(g, blocked *domain.Graph) (Result, error) {
	return e.derive(g, blocked)
}

func (e *Engine) derive(g, blocked *domain.Graph) (Result, error) {
	current := g.Clone()
	derived := make(map[domain.Fact][]string)

	for pass := 1; pass <= e.maxIterations; pass++ {
		idx := current.Index()
		fresh := make(map[domain.Fact][]string)

		for _, rule := range e.rules {
			for _, f := range e.fire(rule, idx) {
				if current.Contains(f) || (blocked != nil && blocked.Contains(f)) {
					continue
				}
				if ids := fresh[f]; len(ids) > 0 && ids[len(ids)-1] == rule.ID {
					continue
				}
				fresh[f] = append(fresh[f], rule.ID)
			}
		}

		if len(fresh) == 0 {
			return Result{Derived: sortDerived(derived), Iterations: pass}, nil
		}
		for f, ids := range fresh {
			current.Add(f)
			derived[f] = ids
		}
	}

	return Result{Derived: sortDerived(derived), Iterations: e.maxIterations},
		errors.WithHint(
			errors.Wrapf(ErrIterationBound, "no fixpoint after %d passes (%d facts derived)", e.maxIterations, len(derived)),
			"check the rule set for rules that mint new identifiers without bound, or raise INFERENCE_MAX_ITERATIONS",
		)
}

// Closure returns g together with everything derivable from it.
func (e *Engine) Closure(g *domain.Graph) (*domain.Graph, Result, error) {
	res, err := e.Derive(g)
	if err != nil {
		return nil, res, err
	}
	return g.Union(res.Graph()), res, nil
}

// sortDerived orders facts canonically. The rule ids of each fact are every
// rule that produced it in the pass it first appeared, sorted.
func sortDerived(m map[domain.Fact][]string) []domain.DerivedFact {
	out := make([]domain.DerivedFact, 0, len(m))
	for f, ids := range m {
		ids = slices.Clone(ids)
		slices.Sort(ids)
		out = append(out, domain.DerivedFact{Fact: f, RuleIDs: slices.Compact(ids)})
	}
	slices.SortFunc(out, func(a, b domain.DerivedFact) int {
		return a.Fact.Compare(b.Fact)
	})
	return out
}

// fire returns the consequents of rule for every binding over idx.
func (e *Engine) fire(rule domain.InferenceRule, idx *domain.Index) []domain.Fact {
	var out []domain.Fact
	for _, b := range match(rule.When, idx, binding{}) {
		if !b.satisfies(rule.Where) {
			continue
		}
		for _, p := range rule.Then {
			if f, ok := b.instantiate(p); ok {
				out = append(out, f)
			}
		}
	}
	return out
}
