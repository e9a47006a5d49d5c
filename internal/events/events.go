package events

import "time"

// Event types carried on the orders exchange. Consumers (admin
// dashboard, analytics) are external to this service.
const (
	TypeOrderCreated       = "orders.created"
	TypeOrderStatusChanged = "orders.status_changed"
)

type OrderCreatedEvent struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	ListingID  string    `json:"listing_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	From      string    `json:"from_status"`
	To        string    `json:"to_status"`
	ChangedAt time.Time `json:"changed_at"`
}
