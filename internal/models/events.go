package models

import "time"

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderDispatched = "ORDER_DISPATCHED"
	EventTypeOrderAccepted   = "ORDER_ACCEPTED"
	EventTypeOrderShipped    = "ORDER_SHIPPED"
	EventTypeOrderDelivered  = "ORDER_DELIVERED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypeShiftSettled    = "SHIFT_SETTLED"
	EventTypePayoutRequested = "PAYOUT_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is placed and stock reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerID  int64  `json:"customer_id"`
	VendorID    int64  `json:"vendor_id"`
	TotalAmount int64  `json:"total_amount"`
}

// OrderDispatchedEvent published when a courier is bound to an order
type OrderDispatchedEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	CourierID int64 `json:"courier_id"`
}

// OrderStatusEvent published on ACCEPTED and SHIPPED transitions
type OrderStatusEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	CourierID  int64  `json:"courier_id"`
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
}

// OrderDeliveredEvent published on the terminal DELIVERED transition
type OrderDeliveredEvent struct {
	BaseEvent
	OrderID     int64 `json:"order_id"`
	CourierID   int64 `json:"courier_id"`
	CustomerID  int64 `json:"customer_id"`
	TotalAmount int64 `json:"total_amount"`
}

// OrderCancelledEvent published when a courier releases an order
// back to the dispatch pool
type OrderCancelledEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	Reason     string `json:"reason"`
}

// ShiftSettledEvent published after a settlement batch completes
type ShiftSettledEvent struct {
	BaseEvent
	Shift        string `json:"shift"`
	SettledCount int    `json:"settled_count"`
	FailedCount  int    `json:"failed_count"`
}

// PayoutRequestedEvent published when funds are locked for payout
type PayoutRequestedEvent struct {
	BaseEvent
	PayoutID int64  `json:"payout_id"`
	PartyID  string `json:"party_id"`
	Amount   int64  `json:"amount"`
}
