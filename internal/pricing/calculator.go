// Package pricing derives order totals from line items.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/hotslice/internal/models"
)

// ErrInvalidItems is returned for empty item lists or non-positive quantities and prices.
var ErrInvalidItems = errors.New("invalid order items")

// Line is the pricing view of an order item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown holds the derived monetary fields of an order.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// Calculator is a pure function of its configuration and input.
type Calculator struct {
	deliveryFee decimal.Decimal
	taxRate     decimal.Decimal
}

// NewCalculator builds a calculator with a flat delivery fee and a tax rate
// expressed as a fraction (0.06 for 6%).
func NewCalculator(deliveryFee, taxRate decimal.Decimal) *Calculator {
	return &Calculator{
		deliveryFee: deliveryFee.RoundBank(2),
		taxRate:     taxRate,
	}
}

// Calculate returns the subtotal, delivery fee, tax and total for the lines.
// All amounts are rounded half-to-even to two decimals and Total is always
// exactly Subtotal + DeliveryFee + TaxAmount.
func (c *Calculator) Calculate(lines []Line, orderType models.OrderType) (Breakdown, error) {
	if len(lines) == 0 {
		return Breakdown{}, fmt.Errorf("%w: at least one item is required", ErrInvalidItems)
	}
	if !orderType.Valid() {
		return Breakdown{}, fmt.Errorf("%w: unknown order type", ErrInvalidItems)
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Breakdown{}, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidItems, i, line.Quantity)
		}
		if !line.UnitPrice.IsPositive() {
			return Breakdown{}, fmt.Errorf("%w: item %d has price %s", ErrInvalidItems, i, line.UnitPrice)
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.RoundBank(2)

	fee := decimal.Zero
	if orderType == models.OrderTypeDelivery {
		fee = c.deliveryFee
	}

	tax := subtotal.Add(fee).Mul(c.taxRate).RoundBank(2)

	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		TaxAmount:   tax,
		Total:       subtotal.Add(fee).Add(tax),
	}, nil
}

// LinesFromItems adapts order items for Calculate.
func LinesFromItems(items []models.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return lines
}

// Apply recomputes the monetary fields of o from its items.
func (c *Calculator) Apply(o *models.Order) error {
	b, err := c.Calculate(LinesFromItems(o.Items), o.Type)
	if err != nil {
		return err
	}
	o.Subtotal = b.Subtotal
	o.DeliveryFee = b.DeliveryFee
	o.TaxAmount = b.TaxAmount
	o.Total = b.Total
	return nil
}
