package pricing_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/pricing"
)

type countingCatalog struct {
	*catalog.MemoryStore
	calls atomic.Int32
}

func (c *countingCatalog) FindByID(ctx context.Context, id string) (catalog.Product, error) {
	c.calls.Add(1)
	return c.MemoryStore.FindByID(ctx, id)
}

func seed(t *testing.T, store *catalog.MemoryStore, price string) catalog.Product {
	t.Helper()
	p, err := store.Insert(context.Background(), catalog.Product{
		Title:    "Item",
		Price:    decimal.RequireFromString(price),
		Category: catalog.CategoryOther,
	})
	require.NoError(t, err)
	return p
}

func TestResolveLineItemsPreservesOrderAndSnapshotsPrice(t *testing.T) {
	store := catalog.NewMemoryStore()
	a := seed(t, store, "12.50")
	b := seed(t, store, "3")
	c := seed(t, store, "0")
	cat := &countingCatalog{MemoryStore: store}
	resolver := pricing.Resolver{Catalog: cat, MaxConcurrency: 2}

	lines, err := resolver.ResolveLineItems(context.Background(), []pricing.Request{
		{ProductID: c.ID, Quantity: 1},
		{ProductID: a.ID, Quantity: 4},
		{ProductID: b.ID, Quantity: 1000},
		{ProductID: a.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 4)
	require.Equal(t, []string{c.ID, a.ID, b.ID, a.ID}, []string{lines[0].ProductID, lines[1].ProductID, lines[2].ProductID, lines[3].ProductID})
	require.Equal(t, 4, lines[1].Quantity)
	require.Equal(t, 1000, lines[2].Quantity)
	require.True(t, lines[1].UnitPrice.Equal(decimal.RequireFromString("12.50")))
	require.EqualValues(t, 4, cat.calls.Load())

	a.Price = decimal.RequireFromString("20")
	_, err = store.Update(context.Background(), a)
	require.NoError(t, err)
	require.True(t, lines[1].UnitPrice.Equal(decimal.RequireFromString("12.50")))
}

func TestResolveLineItemsFailsWholeCallOnMissingProduct(t *testing.T) {
	store := catalog.NewMemoryStore()
	a := seed(t, store, "5")
	missing := uuid.NewString()
	resolver := pricing.Resolver{Catalog: store}

	lines, err := resolver.ResolveLineItems(context.Background(), []pricing.Request{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: missing, Quantity: 2},
	})
	require.Nil(t, lines)
	var pnf *pricing.ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	require.Equal(t, missing, pnf.ProductID)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)
}

func TestResolveLineItemsRequiresCatalog(t *testing.T) {
	_, err := pricing.Resolver{}.ResolveLineItems(context.Background(), nil)
	require.Error(t, err)
}
