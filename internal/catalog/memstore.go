package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/sales-api/internal/common"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]Product)}
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("product %q: %w", id, common.ErrInvalidID)
	}
	return parsed.String(), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (Product, error) {
	key, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[key]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", key, common.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) FindByIDs(_ context.Context, ids []string) (map[string]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		key, err := parseID(id)
		if err != nil {
			continue
		}
		if p, ok := m.products[key]; ok {
			out[key] = p
		}
	}
	return out, nil
}

func (m *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	key, err := parseID(id)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	_, ok := m.products[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]Product, int, error) {
	m.mu.RLock()
	matched := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		matched = append(matched, p)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	return page(matched, filter.Offset, filter.Limit), total, nil
}

func (m *MemoryStore) Insert(_ context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.products[p.ID]; exists {
		return Product{}, fmt.Errorf("product %s already exists", p.ID)
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *MemoryStore) Update(_ context.Context, p Product) (Product, error) {
	key, err := parseID(p.ID)
	if err != nil {
		return Product{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[key]; !ok {
		return Product{}, fmt.Errorf("product %s: %w", key, common.ErrNotFound)
	}
	m.products[key] = p
	return p, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (Product, error) {
	key, err := parseID(id)
	if err != nil {
		return Product{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[key]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", key, common.ErrNotFound)
	}
	delete(m.products, key)
	return p, nil
}

func page(items []Product, offset, limit int) []Product {
	if offset >= len(items) {
		return []Product{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
