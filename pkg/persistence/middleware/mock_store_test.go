package middleware_test

import (
	"context"
	"sync"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// MockStore keeps the exact pointers it is given so tests can inspect what reached the backend.
type MockStore struct {
	mu   sync.Mutex
	data map[string]*domain.Checkpoint
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Checkpoint),
	}
}

func (s *MockStore) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[threadID] = cp.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrThreadNotFound
	}
	return cp.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.Checkpointer = (*MockStore)(nil)
