package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/obs"
)

// Request asks for quantity units of one product.
type Request struct {
	ProductID string
	Quantity  int
}

// ProductNotFoundError reports a referenced product that does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Catalog is the read side of the product store used for price lookups.
type Catalog interface {
	FindByID(ctx context.Context, id string) (catalog.Product, error)
}

// Resolver snapshots current product prices into sale lines.
type Resolver struct {
	Catalog Catalog
	// MaxConcurrency caps parallel lookups per call; zero means one goroutine per line.
	MaxConcurrency int
}

// ResolveLineItems looks every requested product up concurrently and returns one
// line per request in request order, carrying the product's current price.
// If any product is missing the call fails with ProductNotFoundError and no lines
// are returned. Lookups are plain reads; concurrent price changes are not pinned.
func (r Resolver) ResolveLineItems(ctx context.Context, reqs []Request) (lines []Line, err error) {
	if r.Catalog == nil {
		return nil, errors.New("pricing: catalog is required")
	}
	ctx, span := otel.Tracer("pricing").Start(ctx, "pricing.ResolveLineItems")
	span.SetAttributes(attribute.Int("pricing.lines", len(reqs)))
	start := time.Now()
	defer func() {
		obs.ObservePriceResolution(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	out := make([]Line, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if r.MaxConcurrency > 0 {
		g.SetLimit(r.MaxConcurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			p, err := r.Catalog.FindByID(gctx, req.ProductID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return productNotFound(req.ProductID)
				}
				return err
			}
			out[i] = Line{
				ProductID: p.ID,
				Quantity:  req.Quantity,
				UnitPrice: p.Price,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func productNotFound(id string) error {
	return &common.AppError{
		Code:       "PRODUCT_NOT_FOUND",
		Message:    fmt.Sprintf("product %s not found", id),
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        &ProductNotFoundError{ProductID: id},
		Details:    map[string]any{"productId": id},
	}
}
