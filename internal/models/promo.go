package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (d DiscountType) Valid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

func ParseDiscountType(s string) (DiscountType, error) {
	d := DiscountType(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid discount type %q", s)
	}
	return d, nil
}

type PromoCode struct {
	bun.BaseModel `bun:"table:promo_codes"`

	Code           string       `bun:"code,pk" json:"code"`
	DiscountType   DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue  float64      `bun:"discount_value,notnull" json:"discount_value"`
	ValidFrom      *time.Time   `bun:"valid_from" json:"valid_from,omitempty"`
	ValidTo        *time.Time   `bun:"valid_to" json:"valid_to,omitempty"`
	UsageLimit     *int         `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount     int          `bun:"usage_count,notnull" json:"usage_count"`
	MinOrderAmount float64      `bun:"min_order_amount,notnull" json:"min_order_amount"`
	IsActive       bool         `bun:"is_active,notnull" json:"is_active"`
	CreatedAt      time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// NormalizeCode upper-cases and trims a promo code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromoCodeRequest is the admin payload for create and update.
type PromoCodeRequest struct {
	Code           string     `json:"code" validate:"required,max=64"`
	DiscountType   string     `json:"discount_type" validate:"required"`
	DiscountValue  float64    `json:"discount_value" validate:"gt=0"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
	UsageLimit     *int       `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	MinOrderAmount float64    `json:"min_order_amount" validate:"gte=0"`
	IsActive       *bool      `json:"is_active,omitempty"`
}

// PromoPreview answers a validate-only request.
type PromoPreview struct {
	Valid          bool         `json:"valid"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type,omitempty"`
	DiscountValue  float64      `json:"discount_value,omitempty"`
	DiscountAmount float64      `json:"discount_amount"`
	NewTotal       float64      `json:"new_total"`
	Reason         string       `json:"reason,omitempty"`
	Message        string       `json:"message,omitempty"`
}
