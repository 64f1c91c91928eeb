package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/obs"
	"github.com/noah-isme/sales-api/internal/pricing"
)

// LineResolver snapshots product prices into lines.
type LineResolver interface {
	ResolveLineItems(ctx context.Context, reqs []pricing.Request) ([]pricing.Line, error)
}

// ProductReader loads products for read-time expansion.
type ProductReader interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// CreateRequest is an already validated sale creation request.
type CreateRequest struct {
	SaleNumber    string
	Items         []pricing.Request
	Tax           pricing.Money
	Discount      *pricing.Money
	Status        Status
	PaymentMethod PaymentMethod
}

// UpdateRequest is an already validated partial update. Nil fields are kept;
// a non-nil Items replaces every line and re-prices it.
type UpdateRequest struct {
	Items         []pricing.Request
	Tax           *pricing.Money
	Discount      *pricing.Money
	Status        *Status
	PaymentMethod *PaymentMethod
}

// ListQuery selects one page of sales.
type ListQuery struct {
	Page   int
	Limit  int
	Filter Filter
	Sort   Sort
}

// Page is one page of sales with pagination metadata.
type Page struct {
	Items      []Sale
	Pagination common.Pagination
}

// Service runs the sale create/update paths and read-side expansion.
type Service struct {
	store        Store
	resolver     LineResolver
	products     ProductReader
	numbers      NumberGenerator
	events       events.Emitter
	logger       *zerolog.Logger
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Resolver     LineResolver
	Products     ProductReader
	Numbers      NumberGenerator
	Events       events.Emitter
	Logger       *zerolog.Logger
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("sale: store is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("sale: resolver is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	numbers := cfg.Numbers
	if numbers.Now == nil {
		numbers.Now = now
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 10
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:        cfg.Store,
		resolver:     cfg.Resolver,
		products:     cfg.Products,
		numbers:      numbers,
		events:       cfg.Events,
		logger:       logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
	}, nil
}

// CreateSale resolves prices, fills defaults, derives aggregates and inserts the sale.
func (s *Service) CreateSale(ctx context.Context, req CreateRequest) (created Sale, err error) {
	defer func() { obs.RecordSaleOperation("create", err) }()

	lines, err := s.resolver.ResolveLineItems(ctx, req.Items)
	if err != nil {
		return Sale{}, err
	}
	now := s.now().UTC()
	sale := Sale{
		ID:            uuid.NewString(),
		SaleNumber:    strings.TrimSpace(req.SaleNumber),
		Lines:         lines,
		Tax:           req.Tax,
		Discount:      req.Discount,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sale.SaleNumber == "" {
		sale.SaleNumber = s.numbers.Next()
	}
	if sale.Status == "" {
		sale.Status = StatusPending
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = PaymentCash
	}
	sale.Recompute()

	created, err = s.store.Insert(ctx, sale)
	if err != nil {
		return Sale{}, saleError(err)
	}
	obs.RecordSaleCreated(string(created.Status), string(created.PaymentMethod))
	s.emit(ctx, events.TopicSaleCreated, created)
	if err := s.expand(ctx, &created); err != nil {
		return Sale{}, err
	}
	return created, nil
}

// UpdateSale applies a partial update. Replaced lines are priced afresh; the
// aggregates are always recomputed and never taken from the caller.
func (s *Service) UpdateSale(ctx context.Context, id string, req UpdateRequest) (updated Sale, err error) {
	defer func() { obs.RecordSaleOperation("update", err) }()

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Sale{}, saleError(err)
	}
	next := current.Clone()
	if req.Items != nil {
		lines, err := s.resolver.ResolveLineItems(ctx, req.Items)
		if err != nil {
			return Sale{}, err
		}
		next.Lines = lines
	}
	if req.Tax != nil {
		next.Tax = *req.Tax
	}
	if req.Discount != nil {
		d := *req.Discount
		next.Discount = &d
	}
	if req.Status != nil {
		next.Status = *req.Status
	}
	if req.PaymentMethod != nil {
		next.PaymentMethod = *req.PaymentMethod
	}
	next.UpdatedAt = s.now().UTC()
	next.Recompute()

	updated, err = s.store.Update(ctx, current.ID, next)
	if err != nil {
		return Sale{}, saleError(err)
	}
	topic := events.TopicSaleUpdated
	if updated.Status != current.Status {
		topic = events.TopicSaleStatusChanged
	}
	s.emit(ctx, topic, updated)
	if err := s.expand(ctx, &updated); err != nil {
		return Sale{}, err
	}
	return updated, nil
}

// UpdateStatus changes only the status of a sale.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Sale, error) {
	return s.UpdateSale(ctx, id, UpdateRequest{Status: &status})
}

// Get returns one sale with product snapshots attached.
func (s *Service) Get(ctx context.Context, id string) (Sale, error) {
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Sale{}, saleError(err)
	}
	if err := s.expand(ctx, &found); err != nil {
		return Sale{}, err
	}
	return found, nil
}

// Delete removes a sale and returns it. Products are untouched.
func (s *Service) Delete(ctx context.Context, id string) (deleted Sale, err error) {
	defer func() { obs.RecordSaleOperation("delete", err) }()

	deleted, err = s.store.Delete(ctx, id)
	if err != nil {
		return Sale{}, saleError(err)
	}
	s.emit(ctx, events.TopicSaleDeleted, deleted)
	if err := s.expand(ctx, &deleted); err != nil {
		return Sale{}, err
	}
	return deleted, nil
}

// List returns one page of sales ordered per the query.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = s.defaultLimit
	}
	if q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	p := common.Pagination{Page: q.Page, PerPage: q.Limit}
	items, total, err := s.store.List(ctx, q.Filter, ListOptions{Offset: p.Offset(), Limit: q.Limit, Sort: q.Sort})
	if err != nil {
		return Page{}, saleError(fmt.Errorf("list sales: %w", err))
	}
	ptrs := make([]*Sale, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := s.expand(ctx, ptrs...); err != nil {
		return Page{}, err
	}
	return Page{Items: items, Pagination: common.NewPagination(q.Page, q.Limit, total)}, nil
}

// ParseListQuery turns query parameters into a ListQuery.
func (s *Service) ParseListQuery(values url.Values) (ListQuery, error) {
	q := ListQuery{Page: 1, Limit: s.defaultLimit, Sort: SortCreatedDesc}
	var fields []common.FieldError

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			fields = append(fields, common.FieldError{Field: "page", Message: "must be a positive integer"})
		} else {
			q.Page = page
		}
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			fields = append(fields, common.FieldError{Field: "limit", Message: "must be a positive integer"})
		} else {
			q.Limit = min(limit, s.maxLimit)
		}
	}
	if v := strings.TrimSpace(values.Get("status")); v != "" {
		status, ok := ParseStatus(v)
		if !ok {
			fields = append(fields, common.FieldError{Field: "status", Message: "must be one of: pending, completed, cancelled"})
		}
		q.Filter.Status = status
	}
	if v := strings.TrimSpace(values.Get("paymentMethod")); v != "" {
		method, ok := ParsePaymentMethod(v)
		if !ok {
			fields = append(fields, common.FieldError{Field: "paymentMethod", Message: "must be one of: cash, card, transfer, other"})
		}
		q.Filter.PaymentMethod = method
	}
	period, err := ParsePeriod(values.Get("period"))
	if err != nil {
		fields = append(fields, common.FieldError{Field: "period", Message: "must be one of: thisDay, thisWeek, thisMonth, thisYear"})
	}
	q.Filter.Created = PeriodRange(period, s.now())
	sortBy, ok := ParseSort(strings.TrimSpace(values.Get("sort")))
	if !ok {
		fields = append(fields, common.FieldError{Field: "sort", Message: "must be one of: createdAt:desc, createdAt:asc, total:desc, total:asc"})
	}
	q.Sort = sortBy

	if len(fields) > 0 {
		return q, &common.ValidationError{Fields: fields}
	}
	return q, nil
}

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(raw))); st {
	case StatusPending, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// ParsePaymentMethod validates a payment method name.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch pm := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); pm {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return pm, true
	}
	return "", false
}

func (s *Service) expand(ctx context.Context, sales ...*Sale) error {
	if s.products == nil || len(sales) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, sale := range sales {
		for _, l := range sale.Lines {
			if _, ok := seen[l.ProductID]; ok {
				continue
			}
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return common.StoreError(fmt.Errorf("expand sale products: %w", err))
	}
	for _, sale := range sales {
		sale.Products = make(map[string]ProductSnapshot, len(sale.Lines))
		for _, l := range sale.Lines {
			if p, ok := found[l.ProductID]; ok {
				sale.Products[l.ProductID] = ProductSnapshot{ID: p.ID, Title: p.Title, Price: p.Price, Category: p.Category}
			}
		}
	}
	return nil
}

func (s *Service) emit(ctx context.Context, topic string, sale Sale) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"saleNumber": sale.SaleNumber,
		"status":     sale.Status,
		"total":      sale.Total,
	}
	if _, err := s.events.Emit(ctx, topic, sale.ID, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Str("sale_id", sale.ID).Msg("emit sale event")
	}
}

func saleError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicateSaleNumber):
		return &common.AppError{Code: "DUPLICATE_SALE_NUMBER", Message: "duplicate sale number", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, common.ErrNotFound):
		return &common.AppError{Code: "NOT_FOUND", Message: "sale not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, common.ErrInvalidID):
		return &common.AppError{Code: "INVALID_ID", Message: "invalid sale id", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return common.StoreError(err)
}
