package store

import (
	"context"
	"sync"

	"github.com/buildgrid/ngexec/internal/process"
)

// MockStore implements Store for testing.
type MockStore struct {
	mu            sync.Mutex
	MaterializeFn func(ctx context.Context, d process.Digest, dir string) error
	Materialized  []process.Digest
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Materialize(ctx context.Context, d process.Digest, dir string) error {
	m.mu.Lock()
	m.Materialized = append(m.Materialized, d)
	fn := m.MaterializeFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, d, dir)
	}
	return nil
}

// Calls reports how many materializations were requested.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Materialized)
}
