package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"

	"github.com/google/uuid"
)

// Datastore is the storage surface the services run against. The sqlx
// store implements it; tests substitute an in-memory fake.
type Datastore interface {
	RunTx(ctx context.Context, fn func(tx store.Tx) error) error

	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)

	GetCourierByID(ctx context.Context, id int64) (*models.Courier, error)
	CouriersInRange(ctx context.Context, start, end string) ([]models.Courier, error)
	CouriersByShift(ctx context.Context, shift string) ([]models.Courier, error)

	GetWallet(ctx context.Context, partyID string) (*models.Wallet, error)
	GetLedgerHistory(ctx context.Context, partyID string, limit int) ([]models.LedgerTransaction, error)
	GetPayoutByID(ctx context.Context, id int64) (*models.PayoutRequest, error)
}

// VendorParty returns the wallet party id for a merchant.
func VendorParty(vendorID int64) string {
	return fmt.Sprintf("vendor:%d", vendorID)
}

// CourierParty returns the wallet party id for a courier.
func CourierParty(courierID int64) string {
	return fmt.Sprintf("courier:%d", courierID)
}

// newOrderNumber builds a human-readable order number. The random
// suffix comes from crypto/rand: order numbers are guessed at by
// support tooling and must not collide within a day.
func newOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FD-%s-%06d", now.Format("20060102"), n.Int64()), nil
}

// newConfirmCode builds the numeric handover PIN the courier must
// collect from the recipient. It doubles as an authorization secret,
// hence crypto/rand.
func newConfirmCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// writeOutbox serializes a lifecycle event and records it in the
// transaction's outbox. The relay worker publishes it after commit.
func writeOutbox(ctx context.Context, tx store.Tx, eventID, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to marshal event", err)
	}
	return tx.InsertOutboxEvent(ctx, eventID, eventType, payload)
}

// baseEvent stamps the common event envelope.
func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
