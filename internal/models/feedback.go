package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Feedback struct {
	bun.BaseModel `bun:"table:feedbacks"`

	ID           string    `bun:"id,pk" json:"id"`
	Rating       int       `bun:"rating,notnull" json:"rating"`
	Comment      string    `bun:"comment,nullzero" json:"comment,omitempty"`
	OrderNumber  string    `bun:"order_number,nullzero" json:"order_number,omitempty"`
	CustomerName string    `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

type FeedbackRequest struct {
	Rating       int    `json:"rating"`
	Comment      string `json:"comment,omitempty" validate:"max=2000"`
	OrderNumber  string `json:"order_number,omitempty" validate:"max=32"`
	CustomerName string `json:"customer_name,omitempty" validate:"max=120"`
}
