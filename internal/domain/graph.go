package domain

import "slices"

// Graph is a set of facts. The zero value is not usable; use NewGraph.
// A nil *Graph reads as empty.
type Graph struct {
	facts map[Fact]struct{}
}

func NewGraph(facts ...Fact) *Graph {
	g := &Graph{facts: make(map[Fact]struct{}, len(facts))}
	g.Add(facts...)
	return g
}

// Add inserts facts and returns how many were not already present.
func (g *Graph) Add(facts ...Fact) int {
	added := 0
	for _, f := range facts {
		if _, ok := g.facts[f]; ok {
			continue
		}
		g.facts[f] = struct{}{}
		added++
	}
	return added
}

func (g *Graph) Contains(f Fact) bool {
	if g == nil {
		return false
	}
	_, ok := g.facts[f]
	return ok
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.facts)
}

// Facts returns the facts in canonical order.
func (g *Graph) Facts() []Fact {
	if g == nil {
		return nil
	}
	out := make([]Fact, 0, len(g.facts))
	for f := range g.facts {
		out = append(out, f)
	}
	slices.SortFunc(out, Fact.Compare)
	return out
}

func (g *Graph) Clone() *Graph {
	c := &Graph{facts: make(map[Fact]struct{}, g.Len())}
	if g != nil {
		for f := range g.facts {
			c.facts[f] = struct{}{}
		}
	}
	return c
}

// Union returns a new graph holding the facts of g and all others.
func (g *Graph) Union(others ...*Graph) *Graph {
	u := g.Clone()
	for _, o := range others {
		if o == nil {
			continue
		}
		for f := range o.facts {
			u.facts[f] = struct{}{}
		}
	}
	return u
}

// Minus returns the facts of g that are not in o.
func (g *Graph) Minus(o *Graph) *Graph {
	d := NewGraph()
	if g == nil {
		return d
	}
	for f := range g.facts {
		if !o.Contains(f) {
			d.facts[f] = struct{}{}
		}
	}
	return d
}

func (g *Graph) Equal(o *Graph) bool {
	if g.Len() != o.Len() {
		return false
	}
	if g == nil {
		return true
	}
	for f := range g.facts {
		if !o.Contains(f) {
			return false
		}
	}
	return true
}

// Subjects returns the set of subjects that appear in g.
func (g *Graph) Subjects() map[string]struct{} {
	out := make(map[string]struct{})
	if g == nil {
		return out
	}
	for f := range g.facts {
		out[f.Subject] = struct{}{}
	}
	return out
}

// Index is a read-only lookup structure over a graph snapshot.
type Index struct {
	facts       []Fact
	bySubject   map[string][]Fact
	byPredicate map[string][]Fact
	values      map[subjectProperty][]Term
	types       map[string]map[string]struct{}
}

type subjectProperty struct {
	subject   string
	predicate string
}

// NewIndex builds an index over the given facts. Per-key slices keep
// canonical order so that every scan over the index is deterministic.
func NewIndex(facts []Fact) *Index {
	sorted := slices.Clone(facts)
	slices.SortFunc(sorted, Fact.Compare)
	sorted = slices.Compact(sorted)

	idx := &Index{
		facts:       sorted,
		bySubject:   make(map[string][]Fact),
		byPredicate: make(map[string][]Fact),
		values:      make(map[subjectProperty][]Term),
		types:       make(map[string]map[string]struct{}),
	}
	for _, f := range sorted {
		idx.bySubject[f.Subject] = append(idx.bySubject[f.Subject], f)
		idx.byPredicate[f.Predicate] = append(idx.byPredicate[f.Predicate], f)
		key := subjectProperty{f.Subject, f.Predicate}
		idx.values[key] = append(idx.values[key], f.Object)
		if f.Predicate == TypePredicate && f.Object.IsRef() {
			if idx.types[f.Subject] == nil {
				idx.types[f.Subject] = make(map[string]struct{})
			}
			idx.types[f.Subject][f.Object.Lexical] = struct{}{}
		}
	}
	return idx
}

func (g *Graph) Index() *Index {
	return NewIndex(g.Facts())
}

func (idx *Index) Len() int { return len(idx.facts) }

// Facts returns every indexed fact in canonical order.
func (idx *Index) Facts() []Fact { return idx.facts }

func (idx *Index) BySubject(subject string) []Fact {
	return idx.bySubject[subject]
}

func (idx *Index) ByPredicate(predicate string) []Fact {
	return idx.byPredicate[predicate]
}

// Values returns the objects of (subject, predicate, *) in canonical order.
func (idx *Index) Values(subject, predicate string) []Term {
	return idx.values[subjectProperty{subject, predicate}]
}

func (idx *Index) HasType(subject, class string) bool {
	_, ok := idx.types[subject][class]
	return ok
}

// SubjectsOfType returns every subject typed class, sorted.
func (idx *Index) SubjectsOfType(class string) []string {
	var out []string
	for _, f := range idx.byPredicate[TypePredicate] {
		if f.Object.IsRef() && f.Object.Lexical == class {
			out = append(out, f.Subject)
		}
	}
	return out
}

// Subjects returns every subject in the index, sorted.
func (idx *Index) Subjects() []string {
	out := make([]string, 0, len(idx.bySubject))
	for s := range idx.bySubject {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
