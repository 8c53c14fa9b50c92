// Package pricing computes authoritative order totals from a priced cart.
package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-pos/internal/models"
	"ms-pos/internal/order/discount"

	"github.com/shopspring/decimal"
)

// BelowMinimumError is the only pricing failure that aborts an admission.
type BelowMinimumError struct {
	Threshold float64
	Message   string
}

func (e *BelowMinimumError) Error() string {
	return e.Message
}

// Quote is the priced view of a cart.
type Quote struct {
	Subtotal       float64
	DiscountAmount float64
	PromoCode      string
	Total          float64
	Promo          discount.Result
}

// Subtotal sums unit price (base plus modifier deltas) times quantity. No rounding.
func Subtotal(items []models.OrderItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		unit := decimal.NewFromFloat(it.Price)
		for _, m := range it.Modifiers {
			unit = unit.Add(decimal.NewFromFloat(m.PriceDelta))
		}
		sum = sum.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	f, _ := sum.Float64()
	return f
}

// CheckDeliveryMinimum enforces the delivery minimum for delivery orders when
// delivery is enabled.
func CheckDeliveryMinimum(d models.DeliverySettings, orderType models.OrderType, zone string, subtotal float64) error {
	if orderType != models.OrderTypeDelivery || !d.Enabled {
		return nil
	}

	threshold := d.MinOrderAmount
	if zone == models.ZoneOutOfCity {
		threshold = d.MinOrderAmountOutOfCity
	}
	if threshold <= 0 || subtotal >= threshold {
		return nil
	}

	tmpl := d.MinOrderMessage
	if tmpl == "" {
		tmpl = models.DefaultMinOrderMessage
	}
	return &BelowMinimumError{
		Threshold: threshold,
		Message:   strings.ReplaceAll(tmpl, "{amount}", strconv.FormatFloat(threshold, 'f', -1, 64)),
	}
}

// Price builds a Quote. promo may be nil when no code was submitted or the code
// does not exist; submitted reports whether a code was submitted at all.
func Price(items []models.OrderItem, d models.DeliverySettings, orderType models.OrderType, zone string, promo *models.PromoCode, submitted bool, now time.Time) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, fmt.Errorf("pricing: cart is empty")
	}

	subtotal := Subtotal(items)
	if err := CheckDeliveryMinimum(d, orderType, zone, subtotal); err != nil {
		return Quote{}, err
	}

	q := Quote{Subtotal: subtotal, Total: subtotal}
	if !submitted {
		return q, nil
	}

	q.Promo = discount.Apply(promo, subtotal, now)
	if q.Promo.Applied {
		q.DiscountAmount = q.Promo.Amount
		q.PromoCode = q.Promo.Code
		q.Total = Total(subtotal, q.DiscountAmount)
	}
	return q, nil
}

// WithoutDiscount drops any applied promo, keeping the subtotal.
func (q Quote) WithoutDiscount() Quote {
	return Quote{Subtotal: q.Subtotal, Total: q.Subtotal, Promo: discount.Result{
		Rejection: &discount.Rejection{Reason: discount.ReasonUsageExceeded, Message: "Ліміт використання вичерпано"},
	}}
}

// Total returns subtotal - discount, never below zero.
func Total(subtotal, discountAmount float64) float64 {
	t := decimal.NewFromFloat(subtotal).Sub(decimal.NewFromFloat(discountAmount))
	if t.IsNegative() {
		return 0
	}
	f, _ := t.Float64()
	return f
}
