package store

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// ProducerRegistry holds producer credentials in memory. Keys are stored as
// hashes only.
type ProducerRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Producer
	byHash map[string]*domain.Producer
}

func NewProducerRegistry() *ProducerRegistry {
	return &ProducerRegistry{
		byID:   make(map[string]*domain.Producer),
		byHash: make(map[string]*domain.Producer),
	}
}

// Register adds or replaces a producer.
func (s *ProducerRegistry) Register(ctx context.Context, p *domain.Producer) error {
	if p == nil || p.ID == "" {
		return errors.New("producer id is required")
	}
	if p.APIKeyHash == "" {
		return errors.Newf("producer %s has no api key hash", p.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if other, ok := s.byHash[p.APIKeyHash]; ok && other.ID != p.ID {
		return errors.Newf("api key of producer %s is already registered to %s", p.ID, other.ID)
	}
	if old, ok := s.byID[p.ID]; ok {
		delete(s.byHash, old.APIKeyHash)
	}
	stored := *p
	stored.Permissions = slices.Clone(p.Permissions)
	s.byID[p.ID] = &stored
	s.byHash[p.APIKeyHash] = &stored
	return nil
}

func (s *ProducerRegistry) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Producer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byHash[apiKeyHash]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *ProducerRegistry) GetByID(ctx context.Context, id string) (*domain.Producer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *ProducerRegistry) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
