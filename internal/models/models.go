package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product represents a catalog product. Stock is either the scalar
// counter or, when Variations is non-empty, tracked per variation.
type Product struct {
	ID         int64         `db:"id" json:"id"`
	VendorID   int64         `db:"vendor_id" json:"vendor_id"`
	Name       string        `db:"name" json:"name"`
	ImageURL   string        `db:"image_url" json:"image_url,omitempty"`
	Price      int64         `db:"price" json:"price"`
	SalePrice  int64         `db:"sale_price" json:"sale_price,omitempty"`
	Stock      int           `db:"stock" json:"stock"`
	Variations VariationList `db:"variations" json:"variations,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// EffectivePrice returns the sale price when one is set.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}

// Variation is a priced, stocked sub-unit of a product (size, color).
type Variation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	SalePrice int64  `json:"sale_price,omitempty"`
	Stock     int    `json:"stock"`
}

// EffectivePrice returns the sale price when one is set.
func (v *Variation) EffectivePrice() int64 {
	if v.SalePrice > 0 {
		return v.SalePrice
	}
	return v.Price
}

// VariationList is stored as a JSONB column so the whole list is
// rewritten atomically inside the order transaction.
type VariationList []Variation

// Value implements driver.Valuer.
func (vl VariationList) Value() (driver.Value, error) {
	if len(vl) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(vl)
}

// Scan implements sql.Scanner.
func (vl *VariationList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*vl = nil
		return nil
	case []byte:
		return json.Unmarshal(v, vl)
	case string:
		return json.Unmarshal([]byte(v), vl)
	default:
		return fmt.Errorf("unsupported variations column type %T", src)
	}
}

// Order represents a customer order. Orders are never deleted;
// cancellation mutates status only.
type Order struct {
	ID          int64      `db:"id" json:"id"`
	OrderNumber string     `db:"order_number" json:"order_number"`
	CustomerID  int64      `db:"customer_id" json:"customer_id"`
	VendorID    int64      `db:"vendor_id" json:"vendor_id"`
	Subtotal    int64      `db:"subtotal" json:"subtotal"`
	DeliveryFee int64      `db:"delivery_fee" json:"delivery_fee"`
	TotalAmount int64      `db:"total_amount" json:"total_amount"`
	Status      Status     `db:"status" json:"status"`
	CourierID   *int64     `db:"courier_id" json:"courier_id,omitempty"`
	ConfirmCode string     `db:"confirm_code" json:"-"`
	CourierLat  *float64   `db:"courier_lat" json:"courier_lat,omitempty"`
	CourierLng  *float64   `db:"courier_lng" json:"courier_lng,omitempty"`
	Recipient   string     `db:"recipient" json:"recipient"`
	Address     string     `db:"address" json:"address"`
	IdemKey     string     `db:"idempotency_key" json:"idempotency_key,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// OrderItem is a line item with catalog data snapshotted at order time,
// so later catalog edits never change a placed order.
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	VariationID *string `db:"variation_id" json:"variation_id,omitempty"`
	Name        string  `db:"name" json:"name"`
	ImageURL    string  `db:"image_url" json:"image_url,omitempty"`
	UnitPrice   int64   `db:"unit_price" json:"unit_price"`
	Quantity    int     `db:"quantity" json:"quantity"`
	VendorID    int64   `db:"vendor_id" json:"vendor_id"`
}

// Courier statuses.
const (
	CourierOnline  = "ONLINE"
	CourierBusy    = "BUSY"
	CourierOffline = "OFFLINE"
)

// Courier tracks a rider's availability and last known position.
// CurrentOrderID is non-nil iff Status is BUSY.
type Courier struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Status         string    `db:"status" json:"status"`
	Lat            float64   `db:"lat" json:"lat"`
	Lng            float64   `db:"lng" json:"lng"`
	Geohash        string    `db:"geohash" json:"geohash"`
	CurrentOrderID *int64    `db:"current_order_id" json:"current_order_id,omitempty"`
	Shift          string    `db:"shift" json:"shift"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourierSummary is a nearby-search result with the true
// great-circle distance from the query point.
type CourierSummary struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKm float64 `json:"distance_km"`
}

// Wallet holds a party's balance and funds locked for payout.
// PartyID is namespaced, e.g. "vendor:12", "courier:7", or the
// configured house account.
type Wallet struct {
	PartyID        string    `db:"party_id" json:"party_id"`
	Balance        int64     `db:"balance" json:"balance"`
	PendingPayouts int64     `db:"pending_payouts" json:"pending_payouts"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Ledger transaction types. Credits add to the balance, debits subtract.
const (
	TxTypeDeposit    = "DEPOSIT"
	TxTypeEarning    = "EARNING"
	TxTypeRefund     = "REFUND"
	TxTypeWithdrawal = "WITHDRAWAL"
	TxTypePayment    = "PAYMENT"
)

// SignedAmount returns the balance delta for a ledger entry of the
// given type, or an error for an unknown type.
func SignedAmount(txType string, amount int64) (int64, error) {
	switch txType {
	case TxTypeDeposit, TxTypeEarning, TxTypeRefund:
		return amount, nil
	case TxTypeWithdrawal, TxTypePayment:
		return -amount, nil
	default:
		return 0, fmt.Errorf("unknown ledger transaction type %q", txType)
	}
}

// LedgerTransaction is an immutable monetary entry against a wallet.
// Never updated or deleted after creation.
type LedgerTransaction struct {
	ID              int64     `db:"id" json:"id"`
	PartyID         string    `db:"party_id" json:"party_id"`
	Amount          int64     `db:"amount" json:"amount"`
	Type            string    `db:"type" json:"type"`
	PreviousBalance int64     `db:"previous_balance" json:"previous_balance"`
	NewBalance      int64     `db:"new_balance" json:"new_balance"`
	Reference       string    `db:"reference" json:"reference,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Payout statuses.
const (
	PayoutStatusPending   = "PENDING"
	PayoutStatusCompleted = "COMPLETED"
	PayoutStatusFailed    = "FAILED"
)

// PayoutRequest locks funds for an external payout until resolved.
type PayoutRequest struct {
	ID          int64     `db:"id" json:"id"`
	PartyID     string    `db:"party_id" json:"party_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Destination string    `db:"destination" json:"destination"`
	Status      string    `db:"status" json:"status"`
	Reference   string    `db:"reference" json:"reference,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OutboxEvent is a domain event written in the same transaction as the
// state change it describes, relayed to the broker by a worker.
type OutboxEvent struct {
	ID          int64      `db:"id" json:"id"`
	EventID     string     `db:"event_id" json:"event_id"`
	EventType   string     `db:"event_type" json:"event_type"`
	Payload     []byte     `db:"payload" json:"payload"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}
