package sale

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/common"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sales    map[string]Sale
	byNumber map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sales:    make(map[string]Sale),
		byNumber: make(map[string]string),
	}
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("sale %q: %w", id, common.ErrInvalidID)
	}
	return parsed.String(), nil
}

func (m *MemoryStore) Insert(_ context.Context, s Sale) (Sale, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s = s.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byNumber[s.SaleNumber]; taken {
		return Sale{}, fmt.Errorf("sale number %s: %w", s.SaleNumber, ErrDuplicateSaleNumber)
	}
	m.sales[s.ID] = s
	m.byNumber[s.SaleNumber] = s.ID
	return s.Clone(), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (Sale, error) {
	key, err := parseID(id)
	if err != nil {
		return Sale{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[key]
	if !ok {
		return Sale{}, fmt.Errorf("sale %s: %w", key, common.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, s Sale) (Sale, error) {
	key, err := parseID(id)
	if err != nil {
		return Sale{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sales[key]
	if !ok {
		return Sale{}, fmt.Errorf("sale %s: %w", key, common.ErrNotFound)
	}
	s = s.Clone()
	s.ID = key
	if s.SaleNumber != current.SaleNumber {
		if _, taken := m.byNumber[s.SaleNumber]; taken {
			return Sale{}, fmt.Errorf("sale number %s: %w", s.SaleNumber, ErrDuplicateSaleNumber)
		}
		delete(m.byNumber, current.SaleNumber)
		m.byNumber[s.SaleNumber] = key
	}
	m.sales[key] = s
	return s.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (Sale, error) {
	key, err := parseID(id)
	if err != nil {
		return Sale{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[key]
	if !ok {
		return Sale{}, fmt.Errorf("sale %s: %w", key, common.ErrNotFound)
	}
	delete(m.sales, key)
	delete(m.byNumber, s.SaleNumber)
	return s, nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter, opts ListOptions) ([]Sale, int, error) {
	m.mu.RLock()
	matched := make([]Sale, 0, len(m.sales))
	for _, s := range m.sales {
		if matches(s, filter) {
			matched = append(matched, s.Clone())
		}
	}
	m.mu.RUnlock()

	sortSales(matched, opts.Sort)
	total := len(matched)
	if opts.Offset >= total {
		return []Sale{}, total, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) AggregateCompleted(_ context.Context, created Range) (Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg := Aggregate{Sum: decimal.Zero, Avg: decimal.Zero}
	for _, s := range m.sales {
		if !matches(s, Filter{Status: StatusCompleted, Created: created}) {
			continue
		}
		agg.Count++
		agg.Sum = agg.Sum.Add(s.Total)
	}
	if agg.Count > 0 {
		agg.Avg = agg.Sum.Div(decimal.NewFromInt(int64(agg.Count)))
	}
	return agg, nil
}

func matches(s Sale, f Filter) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.PaymentMethod != "" && s.PaymentMethod != f.PaymentMethod {
		return false
	}
	return f.Created.Contains(s.CreatedAt)
}

func sortSales(items []Sale, order Sort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case SortCreatedAsc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case SortTotalDesc:
			if !a.Total.Equal(b.Total) {
				return a.Total.GreaterThan(b.Total)
			}
		case SortTotalAsc:
			if !a.Total.Equal(b.Total) {
				return a.Total.LessThan(b.Total)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
}
