package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
)

func moneyPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
func strPtr(v string) *string { return &v }

type countingStore struct {
	*catalog.MemoryStore
	finds int
}

func (c *countingStore) FindByID(ctx context.Context, id string) (catalog.Product, error) {
	c.finds++
	return c.MemoryStore.FindByID(ctx, id)
}

func newService(t *testing.T, store catalog.Store, cache *catalog.Cache, images catalog.ImageRemover) *catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        store,
		Cache:        cache,
		Images:       images,
		DefaultLimit: 10,
		MaxLimit:     50,
		Now:          func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func validInput() catalog.CreateInput {
	return catalog.CreateInput{
		Title:       "  wireless mouse ",
		Price:       moneyPtr("19.99"),
		Description: "Ergonomic two-button mouse",
		Category:    " Electronics ",
	}
}

func TestCreateNormalizesTitleAndCategory(t *testing.T) {
	svc := newService(t, catalog.NewMemoryStore(), nil, nil)

	p, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "Wireless mouse", p.Title)
	require.Equal(t, catalog.CategoryElectronics, p.Category)
	require.Equal(t, "19.99", p.Price.String())
	require.NotEmpty(t, p.ID)
}

func TestCreateRejectsInvalidFields(t *testing.T) {
	svc := newService(t, catalog.NewMemoryStore(), nil, nil)
	in := validInput()
	in.Title = "ab"
	in.Price = moneyPtr("-1")
	in.Category = "weapons"

	_, err := svc.Create(context.Background(), in)
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "price")
	require.Contains(t, fields, "category")
}

func TestGetDistinguishesInvalidIDFromNotFound(t *testing.T) {
	svc := newService(t, catalog.NewMemoryStore(), nil, nil)

	_, err := svc.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, common.ErrInvalidID)

	_, err = svc.Get(context.Background(), "9b2f8a0e-3a6c-4d4e-8f7e-0a1b2c3d4e5f")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetUsesCacheAndUpdateInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingStore{MemoryStore: catalog.NewMemoryStore()}
	svc := newService(t, store, catalog.NewCache(client, time.Minute), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, store.finds)

	_, err = svc.Update(ctx, created.ID, catalog.UpdateInput{Price: moneyPtr("25")})
	require.NoError(t, err)
	finds := store.finds

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "25", got.Price.String())
	require.Equal(t, finds+1, store.finds)
}

func TestUpdateRemovesReplacedImageBestEffort(t *testing.T) {
	var removed []string
	images := catalog.ImageRemoverFunc(func(_ context.Context, storageID string) error {
		removed = append(removed, storageID)
		return errors.New("storage offline")
	})
	svc := newService(t, catalog.NewMemoryStore(), nil, images)
	ctx := context.Background()

	in := validInput()
	in.Image = &catalog.ImageInput{URL: "https://cdn.test/a.png", StorageID: "products/a"}
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, catalog.UpdateInput{
		Title: strPtr("gaming mouse"),
		Image: &catalog.ImageInput{URL: "https://cdn.test/b.png", StorageID: "products/b"},
	})
	require.NoError(t, err)
	require.Equal(t, "Gaming mouse", updated.Title)
	require.Equal(t, "products/b", updated.Image.StorageID)
	require.Equal(t, []string{"products/a"}, removed)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)
	require.Equal(t, []string{"products/a", "products/b"}, removed)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByCategoryPaginates(t *testing.T) {
	store := catalog.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.Insert(ctx, catalog.Product{
			Title:     "Book",
			Category:  catalog.CategoryBooks,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, catalog.Product{Title: "Ball", Category: catalog.CategorySports, CreatedAt: base})
	require.NoError(t, err)

	svc := newService(t, store, nil, nil)
	page, err := svc.ListByCategory(ctx, "BOOKS", 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, 3, page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)
	require.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))

	_, err = svc.ListByCategory(ctx, "weapons", 1, 2)
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
}
