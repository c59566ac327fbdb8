package store

import (
	"context"
	"slices"
	"sync"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// MemoryStore keeps every graph and the provenance ledger in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[domain.GraphID]*domain.Graph
	ledger []domain.ProvenanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[domain.GraphID]*domain.Graph)}
}

func (s *MemoryStore) ReadAll(ctx context.Context, graph domain.GraphID) ([]domain.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphs[graph].Facts(), nil
}

func (s *MemoryStore) Count(ctx context.Context, graph domain.GraphID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphs[graph].Len(), nil
}

func (s *MemoryStore) Add(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteAdd, Facts: facts})
}

func (s *MemoryStore) Replace(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteReplace, Facts: facts})
}

// Apply validates the whole batch before changing anything, so a rejected
// batch leaves every graph untouched.
func (s *MemoryStore) Apply(ctx context.Context, writes ...domain.GraphWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateWrites(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		g := s.graphs[w.Graph]
		if w.Mode == domain.WriteReplace || g == nil {
			g = domain.NewGraph()
			s.graphs[w.Graph] = g
		}
		g.Add(w.Facts...)
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) AppendProvenance(ctx context.Context, records []domain.ProvenanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateProvenance(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Seq = int64(len(s.ledger)) + 1
		r.RuleIDs = slices.Clone(r.RuleIDs)
		s.ledger = append(s.ledger, r)
	}
	return nil
}

func (s *MemoryStore) ListProvenance(ctx context.Context, filter domain.ProvenanceFilter) ([]domain.ProvenanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ProvenanceRecord{}
	for _, r := range s.ledger {
		if !filter.Matches(r) {
			continue
		}
		r.RuleIDs = slices.Clone(r.RuleIDs)
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
