package sale

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/common"
	"github.com/noah-isme/sales-api/internal/pricing"
)

// LinePayload is one requested line as received on the wire.
type LinePayload struct {
	Product  string `json:"product" validate:"required,uuid"`
	Quantity *int   `json:"quantity" validate:"required,min=1,max=1000"`
}

// CreatePayload is the raw body of POST /sales. Derived fields are not accepted.
type CreatePayload struct {
	SaleNumber    string         `json:"saleNumber,omitempty" validate:"omitempty,max=40"`
	Products      []LinePayload  `json:"products" validate:"required,min=1,dive"`
	Tax           *pricing.Money `json:"tax,omitempty" validate:"omitnil,min=0"`
	Discount      *pricing.Money `json:"discount,omitempty" validate:"omitnil,min=0"`
	Status        string         `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
	PaymentMethod string         `json:"paymentMethod,omitempty" validate:"omitempty,oneof=cash card transfer other"`
}

// UpdatePayload is the raw body of PUT /sales/{id}.
type UpdatePayload struct {
	Products      []LinePayload  `json:"products,omitempty" validate:"omitempty,min=1,dive"`
	Tax           *pricing.Money `json:"tax,omitempty" validate:"omitnil,min=0"`
	Discount      *pricing.Money `json:"discount,omitempty" validate:"omitnil,min=0"`
	Status        *string        `json:"status,omitempty" validate:"omitnil,oneof=pending completed cancelled"`
	PaymentMethod *string        `json:"paymentMethod,omitempty" validate:"omitnil,oneof=cash card transfer other"`
}

// StatusPayload is the raw body of PATCH /sales/{id}/status.
type StatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending completed cancelled"`
}

func normalizeLines(lines []LinePayload) {
	for i := range lines {
		lines[i].Product = strings.ToLower(strings.TrimSpace(lines[i].Product))
	}
}

func (p *CreatePayload) normalize() {
	normalizeLines(p.Products)
	p.SaleNumber = strings.TrimSpace(p.SaleNumber)
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.PaymentMethod = strings.ToLower(strings.TrimSpace(p.PaymentMethod))
}

func (p *UpdatePayload) normalize() {
	normalizeLines(p.Products)
	if p.Status != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Status))
		p.Status = &v
	}
	if p.PaymentMethod != nil {
		v := strings.ToLower(strings.TrimSpace(*p.PaymentMethod))
		p.PaymentMethod = &v
	}
}

// Request validates the payload and converts it into a CreateRequest.
func (p CreatePayload) Request() (CreateRequest, error) {
	p.normalize()
	if err := common.Validate(p); err != nil {
		return CreateRequest{}, err
	}
	req := CreateRequest{
		SaleNumber:    p.SaleNumber,
		Items:         lineRequests(p.Products),
		Tax:           decimal.Zero,
		Discount:      moneyPtr(p.Discount),
		Status:        Status(p.Status),
		PaymentMethod: PaymentMethod(p.PaymentMethod),
	}
	if p.Tax != nil {
		req.Tax = *p.Tax
	}
	return req, nil
}

// Request validates the payload and converts it into an UpdateRequest.
func (p UpdatePayload) Request() (UpdateRequest, error) {
	p.normalize()
	if err := common.Validate(p); err != nil {
		return UpdateRequest{}, err
	}
	req := UpdateRequest{
		Tax:      moneyPtr(p.Tax),
		Discount: moneyPtr(p.Discount),
	}
	if p.Products != nil {
		req.Items = lineRequests(p.Products)
	}
	if p.Status != nil {
		st := Status(*p.Status)
		req.Status = &st
	}
	if p.PaymentMethod != nil {
		pm := PaymentMethod(*p.PaymentMethod)
		req.PaymentMethod = &pm
	}
	return req, nil
}

// Parse validates the payload and returns the requested status.
func (p StatusPayload) Parse() (Status, error) {
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if err := common.Validate(p); err != nil {
		return "", err
	}
	return Status(p.Status), nil
}

func lineRequests(lines []LinePayload) []pricing.Request {
	out := make([]pricing.Request, len(lines))
	for i, l := range lines {
		out[i] = pricing.Request{ProductID: l.Product, Quantity: *l.Quantity}
	}
	return out
}

func moneyPtr(v *pricing.Money) *pricing.Money {
	if v == nil {
		return nil
	}
	m := *v
	return &m
}
