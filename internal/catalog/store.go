package catalog

import "context"

// ListFilter narrows product listings. A zero Limit returns every match.
type ListFilter struct {
	Category Category
	Offset   int
	Limit    int
}

// Store persists products. Implementations return common.ErrNotFound for
// absent records and common.ErrInvalidID for malformed identifiers.
type Store interface {
	FindByID(ctx context.Context, id string) (Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]Product, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Insert(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) (Product, error)
}
