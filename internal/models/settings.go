package models

import (
	"sort"
	"time"

	"github.com/uptrace/bun"
)

const DefaultMinOrderMessage = "Мінімальна сума для доставки: {amount} грн"

type DeliverySettings struct {
	Enabled                 bool    `json:"enabled"`
	MinOrderAmount          float64 `json:"min_order_amount" validate:"gte=0"`
	MinOrderAmountOutOfCity float64 `json:"min_order_amount_out_of_city" validate:"gte=0"`
	MinOrderMessage         string  `json:"min_order_message" validate:"max=500"`
}

type OrderTypeOption struct {
	ID        OrderType `json:"id"`
	Label     string    `json:"label"`
	Enabled   bool      `json:"enabled"`
	SortOrder int       `json:"sort_order"`
}

type RestaurantSettings struct {
	Name    string `json:"name" validate:"max=120"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=255"`
}

// Settings is the singleton runtime configuration. A value handed out by the
// settings store is a snapshot and must not be mutated.
type Settings struct {
	Restaurant RestaurantSettings `json:"restaurant"`
	Delivery   DeliverySettings   `json:"delivery"`
	OrderTypes []OrderTypeOption  `json:"order_types"`
}

func DefaultSettings() Settings {
	return Settings{
		Delivery: DeliverySettings{
			MinOrderMessage: DefaultMinOrderMessage,
		},
		OrderTypes: []OrderTypeOption{
			{ID: OrderTypeDineIn, Label: "В закладі", Enabled: true, SortOrder: 0},
			{ID: OrderTypeTakeaway, Label: "З собою", Enabled: true, SortOrder: 1},
			{ID: OrderTypeDelivery, Label: "Доставка", Enabled: true, SortOrder: 2},
			{ID: OrderTypeSelfService, Label: "Самообслуговування", Enabled: true, SortOrder: 3},
		},
	}
}

// Clone returns a deep copy so callers can mutate it before publishing a new snapshot.
func (s Settings) Clone() Settings {
	c := s
	c.OrderTypes = append([]OrderTypeOption(nil), s.OrderTypes...)
	return c
}

// OrderTypeEnabled reports whether t is offered. Types missing from the list are enabled.
func (s Settings) OrderTypeEnabled(t OrderType) bool {
	for _, o := range s.OrderTypes {
		if o.ID == t {
			return o.Enabled
		}
	}
	return true
}

func (s *Settings) SortOrderTypes() {
	sort.SliceStable(s.OrderTypes, func(i, j int) bool {
		return s.OrderTypes[i].SortOrder < s.OrderTypes[j].SortOrder
	})
}

// SettingsRecord is the persisted form of Settings.
type SettingsRecord struct {
	bun.BaseModel `bun:"table:settings"`

	ID        string    `bun:"id,pk"`
	Data      Settings  `bun:"data,type:jsonb"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
