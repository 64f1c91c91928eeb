package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/events"
	"github.com/noah-isme/sales-api/internal/obs"
)

// ImageInput is the payload form of an image reference.
type ImageInput struct {
	URL       string `json:"url" validate:"required,url"`
	StorageID string `json:"storageId" validate:"required,max=255"`
}

// CreateInput is the accepted shape of a new product.
type CreateInput struct {
	Title       string           `json:"title" validate:"required,min=3,max=100"`
	Price       *decimal.Decimal `json:"price" validate:"required,min=0"`
	Description string           `json:"description" validate:"required,min=10,max=1000"`
	Category    string           `json:"category" validate:"required,oneof=electronics clothing books home sports beauty toys food automotive other"`
	Image       *ImageInput      `json:"image,omitempty" validate:"omitnil"`
}

// UpdateInput carries the fields a product update may change. Nil fields are kept.
type UpdateInput struct {
	Title       *string          `json:"title,omitempty" validate:"omitnil,min=3,max=100"`
	Price       *decimal.Decimal `json:"price,omitempty" validate:"omitnil,min=0"`
	Description *string          `json:"description,omitempty" validate:"omitnil,min=10,max=1000"`
	Category    *string          `json:"category,omitempty" validate:"omitnil,oneof=electronics clothing books home sports beauty toys food automotive other"`
	Image       *ImageInput      `json:"image,omitempty" validate:"omitnil"`
	RemoveImage bool             `json:"removeImage,omitempty"`
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
}

func (in *UpdateInput) normalize() {
	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		in.Title = &v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		in.Description = &v
	}
	if in.Category != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Category))
		in.Category = &v
	}
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items      []Product
	Pagination common.Pagination
}

// Service implements product CRUD with read caching and best-effort image cleanup.
type Service struct {
	store        Store
	cache        *Cache
	images       ImageRemover
	events       events.Emitter
	logger       *zerolog.Logger
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Images       ImageRemover
	Events       events.Emitter
	Logger       *zerolog.Logger
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
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
	images := cfg.Images
	if images == nil {
		images = NopImageRemover{}
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		images:       images,
		events:       cfg.Events,
		logger:       logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
	}, nil
}

// Limits exposes the default and maximum page sizes.
func (s *Service) Limits() (defaultLimit, maxLimit int) {
	return s.defaultLimit, s.maxLimit
}

// List returns a page of products, newest first.
func (s *Service) List(ctx context.Context, page, limit int) (ProductPage, error) {
	return s.list(ctx, "", page, limit)
}

// ListByCategory returns a page of products in one category.
func (s *Service) ListByCategory(ctx context.Context, raw string, page, limit int) (ProductPage, error) {
	category, ok := ParseCategory(raw)
	if !ok {
		return ProductPage{}, common.NewValidationError("category", "must be one of: "+categoryList())
	}
	return s.list(ctx, category, page, limit)
}

func (s *Service) list(ctx context.Context, category Category, page, limit int) (ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	p := common.Pagination{Page: page, PerPage: limit}
	items, total, err := s.store.List(ctx, ListFilter{Category: category, Offset: p.Offset(), Limit: limit})
	if err != nil {
		return ProductPage{}, common.StoreError(fmt.Errorf("list products: %w", err))
	}
	return ProductPage{Items: items, Pagination: common.NewPagination(page, limit, total)}, nil
}

// Get returns a single product, served from cache when possible.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	key := productCacheKey(id)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Product{}, productError(err)
	}
	if err := s.cache.SetJSON(ctx, key, p); err != nil {
		s.logger.Debug().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	in.normalize()
	if err := common.Validate(in); err != nil {
		return Product{}, err
	}
	now := s.now().UTC()
	p := Product{
		ID:          uuid.NewString(),
		Title:       NormalizeTitle(in.Title),
		Price:       *in.Price,
		Description: in.Description,
		Category:    Category(in.Category),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Image != nil {
		p.Image = &Image{URL: in.Image.URL, StorageID: in.Image.StorageID}
	}
	created, err := s.store.Insert(ctx, p)
	if err != nil {
		return Product{}, common.StoreError(fmt.Errorf("insert product: %w", err))
	}
	return created, nil
}

// Update applies a partial update. A replaced or removed image is deleted best-effort.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Product, error) {
	in.normalize()
	if err := common.Validate(in); err != nil {
		return Product{}, err
	}
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Product{}, productError(err)
	}
	next := current
	if in.Title != nil {
		next.Title = NormalizeTitle(*in.Title)
	}
	if in.Price != nil {
		next.Price = *in.Price
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.Category != nil {
		next.Category = Category(*in.Category)
	}
	var stale *Image
	switch {
	case in.Image != nil:
		next.Image = &Image{URL: in.Image.URL, StorageID: in.Image.StorageID}
		if current.Image != nil && current.Image.StorageID != in.Image.StorageID {
			stale = current.Image
		}
	case in.RemoveImage:
		next.Image = nil
		stale = current.Image
	}
	next.UpdatedAt = s.now().UTC()

	updated, err := s.store.Update(ctx, next)
	if err != nil {
		return Product{}, productError(err)
	}
	s.invalidate(ctx, updated.ID)
	if stale != nil {
		s.removeImage(ctx, updated.ID, stale.StorageID)
	}
	s.emit(ctx, events.TopicProductUpdated, updated)
	return updated, nil
}

// Delete removes a product. Sales referencing it keep their line snapshots.
func (s *Service) Delete(ctx context.Context, id string) (Product, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return Product{}, productError(err)
	}
	s.invalidate(ctx, deleted.ID)
	if deleted.Image != nil {
		s.removeImage(ctx, deleted.ID, deleted.Image.StorageID)
	}
	s.emit(ctx, events.TopicProductDeleted, deleted)
	return deleted, nil
}

func (s *Service) removeImage(ctx context.Context, productID, storageID string) {
	if storageID == "" {
		return
	}
	err := s.images.RemoveImage(ctx, storageID)
	obs.RecordImageCleanup(err)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("product_id", productID).
			Str("storage_id", storageID).
			Msg("image cleanup failed")
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, productCacheKey(id)); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) emit(ctx context.Context, topic string, p Product) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, p.ID, map[string]any{"title": p.Title, "price": p.Price}); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Str("product_id", p.ID).Msg("emit product event")
	}
}

func productError(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
	}
	if errors.Is(err, common.ErrInvalidID) {
		return &common.AppError{Code: "INVALID_ID", Message: "invalid product id", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return common.StoreError(err)
}

func categoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
