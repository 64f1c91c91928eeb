package sale

import (
	"context"
	"errors"

	"github.com/noah-isme/sales-api/internal/pricing"
)

// ErrDuplicateSaleNumber reports a saleNumber uniqueness violation.
var ErrDuplicateSaleNumber = errors.New("duplicate sale number")

// Sort orders sale listings.
type Sort string

const (
	SortCreatedDesc Sort = "createdAt:desc"
	SortCreatedAsc  Sort = "createdAt:asc"
	SortTotalDesc   Sort = "total:desc"
	SortTotalAsc    Sort = "total:asc"
)

// ParseSort normalises a sort expression, defaulting to newest first.
func ParseSort(raw string) (Sort, bool) {
	switch Sort(raw) {
	case "":
		return SortCreatedDesc, true
	case SortCreatedDesc, SortCreatedAsc, SortTotalDesc, SortTotalAsc:
		return Sort(raw), true
	}
	return SortCreatedDesc, false
}

// Filter narrows sale listings. Zero fields do not filter.
type Filter struct {
	Status        Status
	PaymentMethod PaymentMethod
	Created       Range
}

// ListOptions pages and orders a listing. A zero Limit returns every match.
type ListOptions struct {
	Offset int
	Limit  int
	Sort   Sort
}

// Aggregate summarises completed sales.
type Aggregate struct {
	Count int
	Sum   pricing.Money
	Avg   pricing.Money
}

// Store persists sales. Implementations return common.ErrInvalidID for malformed
// ids, common.ErrNotFound for absent sales and ErrDuplicateSaleNumber when a
// sale number is already taken.
type Store interface {
	Insert(ctx context.Context, s Sale) (Sale, error)
	FindByID(ctx context.Context, id string) (Sale, error)
	Update(ctx context.Context, id string, s Sale) (Sale, error)
	Delete(ctx context.Context, id string) (Sale, error)
	List(ctx context.Context, filter Filter, opts ListOptions) ([]Sale, int, error)
	AggregateCompleted(ctx context.Context, created Range) (Aggregate, error)
}
