package discount

import (
	"fmt"
	"strconv"
	"time"

	"ms-pos/internal/models"

	"github.com/shopspring/decimal"
)

// Reason identifies why a promo code was not applied.
type Reason string

const (
	ReasonNotFound      Reason = "promo_not_found"
	ReasonInactive      Reason = "promo_inactive"
	ReasonNotYetValid   Reason = "promo_not_yet_valid"
	ReasonExpired       Reason = "promo_expired"
	ReasonUsageExceeded Reason = "promo_usage_exceeded"
	ReasonMinimumNotMet Reason = "promo_minimum_not_met"
)

// Rejection is a soft failure: the order proceeds without a discount.
type Rejection struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Result is the outcome of applying a promo to a subtotal.
type Result struct {
	Applied   bool
	Code      string
	Amount    float64
	Rejection *Rejection
}

// Validate runs the checks in order and returns the first failure, or nil when the
// promo can be redeemed against subtotal at now.
func Validate(promo *models.PromoCode, subtotal float64, now time.Time) *Rejection {
	if promo == nil {
		return &Rejection{Reason: ReasonNotFound, Message: "Промокод не знайдено"}
	}
	if !promo.IsActive {
		return &Rejection{Reason: ReasonInactive, Message: "Промокод неактивний"}
	}
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return &Rejection{Reason: ReasonNotYetValid, Message: "Промокод ще не активний"}
	}
	if promo.ValidTo != nil && now.After(*promo.ValidTo) {
		return &Rejection{Reason: ReasonExpired, Message: "Термін дії промокоду закінчився"}
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return &Rejection{Reason: ReasonUsageExceeded, Message: "Ліміт використання вичерпано"}
	}
	if subtotal < promo.MinOrderAmount {
		return &Rejection{
			Reason:  ReasonMinimumNotMet,
			Message: fmt.Sprintf("Мінімальна сума замовлення: %s грн", strconv.FormatFloat(promo.MinOrderAmount, 'f', -1, 64)),
		}
	}
	return nil
}

// Amount computes the discount for a promo that already passed Validate.
// Percentage discounts round half-to-even at two decimals; fixed discounts are capped
// at the subtotal.
func Amount(promo models.PromoCode, subtotal float64) float64 {
	sub := decimal.NewFromFloat(subtotal)
	value := decimal.NewFromFloat(promo.DiscountValue)

	var amount decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercentage:
		amount = sub.Mul(value).Div(decimal.NewFromInt(100)).RoundBank(2)
	default:
		amount = decimal.Min(value, sub)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(sub) {
		amount = sub
	}
	f, _ := amount.Float64()
	return f
}

// Apply validates promo and computes its discount in one step.
func Apply(promo *models.PromoCode, subtotal float64, now time.Time) Result {
	if rej := Validate(promo, subtotal, now); rej != nil {
		return Result{Rejection: rej}
	}
	return Result{
		Applied: true,
		Code:    promo.Code,
		Amount:  Amount(*promo, subtotal),
	}
}

// Preview answers a validate-only request without consuming a use.
func Preview(code string, promo *models.PromoCode, orderTotal float64, now time.Time) models.PromoPreview {
	res := Apply(promo, orderTotal, now)
	preview := models.PromoPreview{
		Code:     models.NormalizeCode(code),
		NewTotal: orderTotal,
	}
	if !res.Applied {
		preview.Reason = string(res.Rejection.Reason)
		preview.Message = res.Rejection.Message
		return preview
	}

	preview.Valid = true
	preview.Code = promo.Code
	preview.DiscountType = promo.DiscountType
	preview.DiscountValue = promo.DiscountValue
	preview.DiscountAmount = res.Amount
	preview.NewTotal = subtract(orderTotal, res.Amount)
	return preview
}

func subtract(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return f
}
