package sale_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/pricing"
	"github.com/noah-isme/sales-api/internal/sale"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureEmitter struct {
	mu     sync.Mutex
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: uuid.MustParse(aggregateID)}, nil
}

type fixture struct {
	products *catalog.MemoryStore
	sales    *sale.MemoryStore
	svc      *sale.Service
	clock    *clock
	events   *captureEmitter
}

func newFixture(t *testing.T, numbers sale.NumberGenerator) *fixture {
	t.Helper()
	f := &fixture{
		products: catalog.NewMemoryStore(),
		sales:    sale.NewMemoryStore(),
		clock:    &clock{now: time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)},
		events:   &captureEmitter{},
	}
	svc, err := sale.NewService(sale.ServiceConfig{
		Store:        f.sales,
		Resolver:     pricing.Resolver{Catalog: f.products},
		Products:     f.products,
		Numbers:      numbers,
		Events:       f.events,
		DefaultLimit: 10,
		MaxLimit:     100,
		Now:          f.clock.Now,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) product(t *testing.T, title, price string) catalog.Product {
	t.Helper()
	p, err := f.products.Insert(context.Background(), catalog.Product{
		Title:    title,
		Price:    dec(price),
		Category: catalog.CategoryHome,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) setPrice(t *testing.T, p catalog.Product, price string) {
	t.Helper()
	p.Price = dec(price)
	_, err := f.products.Update(context.Background(), p)
	require.NoError(t, err)
}

func assertAggregates(t *testing.T, s sale.Sale) {
	t.Helper()
	sum := decimal.Zero
	for _, l := range s.Lines {
		require.True(t, l.Subtotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
		sum = sum.Add(l.Subtotal)
	}
	require.True(t, s.Subtotal.Equal(sum), "subtotal %s != %s", s.Subtotal, sum)
	require.True(t, s.Total.Equal(s.Subtotal.Add(s.Tax)), "total %s != subtotal+tax", s.Total)
}

func TestCreateSaleDefaultsAndAggregates(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	lamp := f.product(t, "Lamp", "25.50")
	mug := f.product(t, "Mug", "4")

	created, err := f.svc.CreateSale(context.Background(), sale.CreateRequest{
		Items: []pricing.Request{{ProductID: lamp.ID, Quantity: 2}, {ProductID: mug.ID, Quantity: 3}},
		Tax:   dec("5"),
	})
	require.NoError(t, err)
	require.Equal(t, sale.StatusPending, created.Status)
	require.Equal(t, sale.PaymentCash, created.PaymentMethod)
	require.Regexp(t, `^SALE-20240313-\d{5}$`, created.SaleNumber)
	require.True(t, created.Subtotal.Equal(dec("63")))
	require.True(t, created.Total.Equal(dec("68")))
	require.Equal(t, 5, created.TotalItems())
	require.Equal(t, "Lamp", created.Products[lamp.ID].Title)
	assertAggregates(t, created)
	require.Equal(t, []string{events.TopicSaleCreated}, f.events.topics)
}

func TestCreateSaleKeepsDiscountOutOfTotal(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Chair", "100")
	discount := dec("30")

	created, err := f.svc.CreateSale(context.Background(), sale.CreateRequest{
		Items:    []pricing.Request{{ProductID: p.ID, Quantity: 1}},
		Tax:      dec("11"),
		Discount: &discount,
	})
	require.NoError(t, err)
	require.True(t, created.Discount.Equal(dec("30")))
	require.True(t, created.Total.Equal(dec("111")))
}

func TestCreateSaleMissingProductLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Chair", "100")

	_, err := f.svc.CreateSale(context.Background(), sale.CreateRequest{
		Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}, {ProductID: uuid.NewString(), Quantity: 1}},
	})
	var pnf *pricing.ProductNotFoundError
	require.ErrorAs(t, err, &pnf)

	_, total, err := f.sales.List(context.Background(), sale.Filter{}, sale.ListOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, f.events.topics)
}

func TestUpdateSaleRecomputesAfterQuantityChange(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Pen", "1.25")
	ctx := context.Background()

	created, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)

	tax := dec("0.75")
	f.clock.Advance(time.Minute)
	updated, err := f.svc.UpdateSale(ctx, created.ID, sale.UpdateRequest{
		Items: []pricing.Request{{ProductID: p.ID, Quantity: 8}},
		Tax:   &tax,
	})
	require.NoError(t, err)
	require.Equal(t, created.SaleNumber, updated.SaleNumber)
	require.True(t, updated.Subtotal.Equal(dec("10")))
	require.True(t, updated.Total.Equal(dec("10.75")))
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	assertAggregates(t, updated)

	stored, err := f.sales.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assertAggregates(t, stored)
}

func TestPriceSnapshotsAreHistorical(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Kettle", "10")
	ctx := context.Background()

	first, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	f.setPrice(t, p, "15")
	second, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	require.True(t, first.Lines[0].UnitPrice.Equal(dec("10")))
	require.True(t, second.Lines[0].UnitPrice.Equal(dec("15")))

	f.setPrice(t, p, "20")
	repriced, err := f.svc.UpdateSale(ctx, second.ID, sale.UpdateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 2}}})
	require.NoError(t, err)
	require.True(t, repriced.Lines[0].UnitPrice.Equal(dec("20")))

	reloaded, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Lines[0].UnitPrice.Equal(dec("10")))
	require.True(t, reloaded.Total.Equal(dec("10")))
	require.True(t, reloaded.Products[p.ID].Price.Equal(dec("20")))
}

func TestUpdateWithoutItemsKeepsUnitPrices(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Towel", "8")
	ctx := context.Background()

	created, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 3}}})
	require.NoError(t, err)
	f.setPrice(t, p, "9")

	updated, err := f.svc.UpdateStatus(ctx, created.ID, sale.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, sale.StatusCompleted, updated.Status)
	require.True(t, updated.Lines[0].UnitPrice.Equal(dec("8")))
	require.True(t, updated.Total.Equal(dec("24")))
	require.Equal(t, []string{events.TopicSaleCreated, events.TopicSaleStatusChanged}, f.events.topics)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Soap", "2")
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		s, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: i + 1}}})
		require.NoError(t, err)
		ids = append(ids, s.ID)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(ctx, sale.ListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, 3, first.Pagination.TotalItems)
	require.Equal(t, 2, first.Pagination.TotalPages)
	require.Equal(t, ids[2], first.Items[0].ID)
	require.Equal(t, ids[1], first.Items[1].ID)

	second, err := f.svc.List(ctx, sale.ListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, ids[0], second.Items[0].ID)
	require.Equal(t, "Soap", second.Items[0].Products[p.ID].Title)
}

func TestDuplicateSaleNumberIsNotRetried(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{Rand: func(int) int { return 7 }})
	p := f.product(t, "Cup", "3")
	ctx := context.Background()

	first, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	require.Equal(t, "SALE-20240313-00007", first.SaleNumber)

	_, err = f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.ErrorIs(t, err, sale.ErrDuplicateSaleNumber)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "DUPLICATE_SALE_NUMBER", appErr.Code)

	_, err = f.svc.CreateSale(ctx, sale.CreateRequest{SaleNumber: "SALE-20240313-00007", Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.ErrorIs(t, err, sale.ErrDuplicateSaleNumber)
}

func TestLookupErrorsAreDistinguished(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "12345")
	require.ErrorIs(t, err, common.ErrInvalidID)
	require.NotErrorIs(t, err, common.ErrNotFound)

	_, err = f.svc.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.svc.UpdateSale(ctx, uuid.NewString(), sale.UpdateRequest{})
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.svc.Delete(ctx, uuid.NewString())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteReturnsSaleAndKeepsProducts(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Plate", "6")
	ctx := context.Background()

	created, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	deleted, err := f.svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.SaleNumber, deleted.SaleNumber)

	exists, err := f.products.Exists(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = f.svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestExpansionToleratesDeletedProduct(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	p := f.product(t, "Vase", "12")
	ctx := context.Background()

	created, err := f.svc.CreateSale(ctx, sale.CreateRequest{Items: []pricing.Request{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	_, err = f.products.Delete(ctx, p.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotContains(t, got.Products, p.ID)
	require.True(t, got.Lines[0].UnitPrice.Equal(dec("12")))
}

func TestParseListQuery(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})

	q, err := f.svc.ParseListQuery(url.Values{
		"page":          {"2"},
		"limit":         {"500"},
		"status":        {"Completed"},
		"paymentMethod": {"card"},
		"period":        {"thisMonth"},
		"sort":          {"total:asc"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, q.Page)
	require.Equal(t, 100, q.Limit)
	require.Equal(t, sale.StatusCompleted, q.Filter.Status)
	require.Equal(t, sale.PaymentCard, q.Filter.PaymentMethod)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), q.Filter.Created.From)
	require.Equal(t, sale.SortTotalAsc, q.Sort)

	_, err = f.svc.ParseListQuery(url.Values{"status": {"refunded"}, "period": {"someday"}, "page": {"0"}})
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 3)
}

func TestConcurrentCreatesProduceConsistentSales(t *testing.T) {
	f := newFixture(t, sale.NumberGenerator{})
	a := f.product(t, "A", "1.10")
	b := f.product(t, "B", "2.20")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateSale(ctx, sale.CreateRequest{
				SaleNumber: "SALE-20240313-" + decimal.NewFromInt(int64(10000+i)).String(),
				Items:      []pricing.Request{{ProductID: a.ID, Quantity: i + 1}, {ProductID: b.ID, Quantity: 1}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, total, err := f.sales.List(ctx, sale.Filter{}, sale.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 20, total)
	for _, s := range all {
		assertAggregates(t, s)
	}
}
