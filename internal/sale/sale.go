// Package sale holds the sale aggregate, its persistence contract and the
// create/update paths that price sales through the pricing package.
package sale

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/sales-api/internal/catalog"
	"github.com/noah-isme/sales-api/internal/pricing"
)

// Status is the lifecycle state of a sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// ProductSnapshot is the display-only view of a referenced product attached on read.
type ProductSnapshot struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Price    pricing.Money    `json:"price"`
	Category catalog.Category `json:"category"`
}

// Sale is the root aggregate. Subtotal and Total are derived from Lines by
// pricing.ComputeAggregates immediately before every persist.
type Sale struct {
	ID            string
	SaleNumber    string
	Lines         []pricing.Line
	Subtotal      pricing.Money
	Tax           pricing.Money
	Discount      *pricing.Money
	Total         pricing.Money
	Status        Status
	PaymentMethod PaymentMethod
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Products maps product id to its current display fields. Never persisted.
	Products map[string]ProductSnapshot
}

// TotalItems sums the quantities of all lines.
func (s Sale) TotalItems() int {
	return pricing.TotalItems(s.Lines)
}

// Recompute refreshes line subtotals and the sale aggregates.
func (s *Sale) Recompute() {
	totals := pricing.ComputeAggregates(s.Lines, s.Tax, s.Discount)
	s.Subtotal = totals.Subtotal
	s.Total = totals.Total
}

// Clone returns a deep copy so stores never share line slices with callers.
func (s Sale) Clone() Sale {
	out := s
	out.Lines = append([]pricing.Line(nil), s.Lines...)
	if s.Discount != nil {
		d := *s.Discount
		out.Discount = &d
	}
	out.Products = nil
	return out
}

type lineJSON struct {
	ProductID string           `json:"productId"`
	Product   *ProductSnapshot `json:"product"`
	Quantity  int              `json:"quantity"`
	UnitPrice pricing.Money    `json:"unitPrice"`
	Subtotal  pricing.Money    `json:"subtotal"`
}

type saleJSON struct {
	ID            string         `json:"id"`
	SaleNumber    string         `json:"saleNumber"`
	Products      []lineJSON     `json:"products"`
	Subtotal      pricing.Money  `json:"subtotal"`
	Tax           pricing.Money  `json:"tax"`
	Discount      *pricing.Money `json:"discount,omitempty"`
	Total         pricing.Money  `json:"total"`
	TotalItems    int            `json:"totalItems"`
	Status        Status         `json:"status"`
	PaymentMethod PaymentMethod  `json:"paymentMethod"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// MarshalJSON renders the public shape, with each line carrying its product snapshot.
func (s Sale) MarshalJSON() ([]byte, error) {
	lines := make([]lineJSON, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = lineJSON{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		}
		if snap, ok := s.Products[l.ProductID]; ok {
			lines[i].Product = &snap
		}
	}
	return json.Marshal(saleJSON{
		ID:            s.ID,
		SaleNumber:    s.SaleNumber,
		Products:      lines,
		Subtotal:      s.Subtotal,
		Tax:           s.Tax,
		Discount:      s.Discount,
		Total:         s.Total,
		TotalItems:    s.TotalItems(),
		Status:        s.Status,
		PaymentMethod: s.PaymentMethod,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	})
}
