package pricing

import "github.com/shopspring/decimal"

// Money is an exact decimal amount in the store currency.
type Money = decimal.Decimal

// Line is a priced sale line. UnitPrice is the product price captured when
// the line was resolved and is never re-derived afterwards.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
	Subtotal  Money  `json:"subtotal"`
}

// Totals are the derived aggregates of a sale.
type Totals struct {
	Subtotal Money
	Total    Money
}

// ComputeAggregates sets every line subtotal to quantity × unitPrice and returns
// subtotal = Σ line subtotals and total = subtotal + tax. The discount is carried
// by the sale but does not reduce the total. Calling it again on the same lines
// yields the same result.
func ComputeAggregates(lines []Line, tax Money, discount *Money) Totals {
	subtotal := decimal.Zero
	for i := range lines {
		lines[i].Subtotal = lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		subtotal = subtotal.Add(lines[i].Subtotal)
	}
	return Totals{
		Subtotal: subtotal,
		Total:    subtotal.Add(tax),
	}
}

// TotalItems sums line quantities.
func TotalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
