package models

const (
	EventNewOrder     = "new_order"
	EventOrderUpdated = "order_updated"
)

type NewOrderEvent struct {
	Type  string `json:"type"`
	Order Order  `json:"order"`
}

type OrderUpdatedEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"order_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
}

// OrderNotification is handed to the external messaging collaborator.
type OrderNotification struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	Order       *Order `json:"order,omitempty"`
}
