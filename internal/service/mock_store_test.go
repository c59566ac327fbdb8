package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

// MockFactStore mocks the FactStore interface.
type MockFactStore struct {
	mock.Mock
}

func (m *MockFactStore) ReadAll(ctx context.Context, graph domain.GraphID) ([]domain.Fact, error) {
	args := m.Called(ctx, graph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fact), args.Error(1)
}

func (m *MockFactStore) Count(ctx context.Context, graph domain.GraphID) (int, error) {
	args := m.Called(ctx, graph)
	return args.Int(0), args.Error(1)
}

func (m *MockFactStore) Add(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	args := m.Called(ctx, graph, facts)
	return args.Error(0)
}

func (m *MockFactStore) Replace(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	args := m.Called(ctx, graph, facts)
	return args.Error(0)
}

func (m *MockFactStore) Apply(ctx context.Context, writes ...domain.GraphWrite) error {
	args := m.Called(ctx, writes)
	return args.Error(0)
}

func (m *MockFactStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
