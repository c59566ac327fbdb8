package inference

import (
	"fmt"
	"slices"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// FindContradictions reports every pair of facts in g that a contradiction
// rule declares mutually exclusive. Each pair is reported once per rule, in
// canonical order. Run it over a closure to see contradictions that only
// appear once derived facts are added.
func (e *Engine) FindContradictions(g *domain.Graph) []domain.Contradiction {
	return e.FindContradictionsIndex(g.Index())
}

func (e *Engine) FindContradictionsIndex(idx *domain.Index) []domain.Contradiction {
	out := []domain.Contradiction{}
	for _, rule := range e.contradictions {
		switch r := rule.(type) {
		case domain.DisjointTypes:
			for _, s := range idx.SubjectsOfType(r.ClassA) {
				if idx.HasType(s, r.ClassB) {
					out = append(out, domain.NewContradiction(
						domain.TypeFact(s, r.ClassA),
						domain.TypeFact(s, r.ClassB),
						r.ID,
						fmt.Sprintf("%s cannot be both %s and %s", s, r.ClassA, r.ClassB),
					))
				}
			}

		case domain.FunctionalProperty:
			facts := idx.ByPredicate(r.Property)
			for i := 0; i < len(facts); i++ {
				for j := i + 1; j < len(facts) && facts[j].Subject == facts[i].Subject; j++ {
					out = append(out, domain.NewContradiction(
						facts[i],
						facts[j],
						r.ID,
						fmt.Sprintf("%s has conflicting values for %s: %s and %s",
							facts[i].Subject, r.Property, facts[i].Object, facts[j].Object),
					))
				}
			}

		case domain.ExclusiveValues:
			for _, f := range idx.ByPredicate(r.Left.Property) {
				if f.Object != r.Left.Value {
					continue
				}
				other := domain.NewFact(f.Subject, r.Right.Property, r.Right.Value)
				if slices.Contains(idx.Values(f.Subject, r.Right.Property), r.Right.Value) {
					out = append(out, domain.NewContradiction(
						f,
						other,
						r.ID,
						fmt.Sprintf("%s cannot have both %s %s and %s %s",
							f.Subject, r.Left.Property, r.Left.Value, r.Right.Property, r.Right.Value),
					))
				}
			}
		}
	}

	slices.SortFunc(out, domain.Contradiction.Compare)
	return slices.Compact(out)
}
