package memory

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/retrieval"
)

// MemoryStore implements ports.MemoryStore in memory.
// Search ranks entries by the share of query terms found in their values.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]domain.MemoryItem
	now   func() time.Time
}

// NewMemoryStore creates an empty long-term memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[string]domain.MemoryItem),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func namespaceKey(ns []string) string {
	return strings.Join(ns, "\x1f")
}

// Upsert stores value under key, replacing any previous value.
func (m *MemoryStore) Upsert(ctx context.Context, namespace []string, key string, value map[string]any) error {
	if len(namespace) == 0 || key == "" {
		return fmt.Errorf("memory: namespace and key are required")
	}
	nk := namespaceKey(namespace)

	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.items[nk]
	if !ok {
		bucket = make(map[string]domain.MemoryItem)
		m.items[nk] = bucket
	}
	bucket[key] = domain.MemoryItem{
		Namespace: append([]string(nil), namespace...),
		Key:       key,
		Value:     maps.Clone(value),
		UpdatedAt: m.now(),
	}
	return nil
}

// Search returns the best matching items. An empty query returns the most recent ones.
func (m *MemoryStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]domain.MemoryItem, error) {
	m.mu.RLock()
	bucket := m.items[namespaceKey(namespace)]
	candidates := make([]domain.MemoryItem, 0, len(bucket))
	for _, item := range bucket {
		candidates = append(candidates, item)
	}
	m.mu.RUnlock()

	return retrieval.RankMemories(candidates, query, limit), nil
}
