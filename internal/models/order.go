package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "new"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists the main chain in order, followed by cancelled.
var OrderStatuses = []OrderStatus{StatusNew, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return status, nil
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentPending || p == PaymentPaid
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid payment status %q", s)
	}
	return p, nil
}

type OrderType string

const (
	OrderTypeDineIn      OrderType = "dine_in"
	OrderTypeTakeaway    OrderType = "takeaway"
	OrderTypeDelivery    OrderType = "delivery"
	OrderTypeSelfService OrderType = "self_service"
)

var OrderTypes = []OrderType{OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery, OrderTypeSelfService}

func (t OrderType) Valid() bool {
	for _, v := range OrderTypes {
		if t == v {
			return true
		}
	}
	return false
}

func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid order type %q", s)
	}
	return t, nil
}

// ZoneOutOfCity selects the out-of-city delivery minimum. Any other zone uses the standard one.
const ZoneOutOfCity = "out_of_city"

type ItemModifier struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name"`
	PriceDelta float64 `json:"price_delta"`
}

type ComboChild struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type OrderItem struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	Quantity  int            `json:"quantity"`
	Price     float64        `json:"price"`
	Modifiers []ItemModifier `json:"modifiers,omitempty"`
	IsCombo   bool           `json:"is_combo,omitempty"`
	Children  []ComboChild   `json:"combo_items,omitempty"`
}

// UnitPrice is the base price plus every modifier delta.
func (i OrderItem) UnitPrice() float64 {
	p := i.Price
	for _, m := range i.Modifiers {
		p += m.PriceDelta
	}
	return p
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID             string        `bun:"id,pk" json:"id"`
	OrderNumber    string        `bun:"order_number,notnull,unique" json:"order_number"`
	Items          []OrderItem   `bun:"items,type:jsonb" json:"items"`
	Subtotal       float64       `bun:"subtotal,notnull" json:"subtotal"`
	DiscountAmount float64       `bun:"discount_amount,notnull" json:"discount_amount"`
	PromoCode      string        `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	Total          float64       `bun:"total,notnull" json:"total"`
	Status         OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentStatus  PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	OrderType      OrderType     `bun:"order_type,notnull" json:"order_type"`
	TableNumber    *int          `bun:"table_number" json:"table_number,omitempty"`
	CustomerName   string        `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CustomerPhone  string        `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	DeliveryZone   string        `bun:"delivery_zone,nullzero" json:"delivery_zone,omitempty"`
	DeliveryAddr   string        `bun:"delivery_address,nullzero" json:"delivery_address,omitempty"`
	Notes          string        `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt      time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrderRequest is the cart submitted by a client.
type OrderRequest struct {
	OrderType     string         `json:"order_type" validate:"required"`
	Items         []OrderItemReq `json:"items" validate:"required,min=1,dive"`
	TableNumber   *int           `json:"table_number,omitempty" validate:"omitempty,min=1"`
	CustomerName  string         `json:"customer_name,omitempty" validate:"max=120"`
	CustomerPhone string         `json:"customer_phone,omitempty" validate:"max=32"`
	DeliveryZone  string         `json:"delivery_zone,omitempty" validate:"max=64"`
	DeliveryAddr  string         `json:"delivery_address,omitempty" validate:"max=255"`
	PromoCode     string         `json:"promo_code,omitempty" validate:"max=64"`
	Notes         string         `json:"notes,omitempty" validate:"max=1000"`
}

type OrderItemReq struct {
	ProductID string         `json:"product_id" validate:"required"`
	Name      string         `json:"name" validate:"required"`
	Quantity  int            `json:"quantity" validate:"min=1"`
	Price     float64        `json:"price" validate:"gte=0"`
	Modifiers []ItemModifier `json:"modifiers,omitempty"`
	IsCombo   bool           `json:"is_combo,omitempty"`
	Children  []ComboChild   `json:"combo_items,omitempty"`
}

// OrderFilter narrows FindOrders. Zero Limit means the store default.
type OrderFilter struct {
	Status OrderStatus
	Since  time.Time
	Limit  int
}
