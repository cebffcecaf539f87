package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// txMaxAttempts bounds optimistic-conflict retries before surfacing
// Aborted to the caller.
const txMaxAttempts = 5

// Tx is the typed read/write set available inside one atomic
// transaction. Get methods return (nil, nil) when the row is absent;
// services attach the typed error. Every compound operation in the
// engine is expressed against this interface, never ad-hoc locks.
type Tx interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	UpdateProductStock(ctx context.Context, id int64, stock int) error
	UpdateProductVariations(ctx context.Context, id int64, variations models.VariationList) error

	InsertOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdemKey(ctx context.Context, key string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.Status) error
	SetOrderDispatch(ctx context.Context, id int64, status models.Status, courierID *int64) error
	MarkOrderDelivered(ctx context.Context, id int64, at time.Time) error
	SetOrderCourierPosition(ctx context.Context, id int64, lat, lng float64) error

	GetCourier(ctx context.Context, id int64) (*models.Courier, error)
	UpdateCourierLocation(ctx context.Context, id int64, lat, lng float64, geohash, status string) error
	SetCourierAssignment(ctx context.Context, id int64, status string, currentOrderID *int64) error

	GetWallet(ctx context.Context, partyID string) (*models.Wallet, error)
	UpsertWallet(ctx context.Context, partyID string, balance, pendingPayouts int64) error
	InsertLedgerTransaction(ctx context.Context, entry *models.LedgerTransaction) error
	InsertPayout(ctx context.Context, payout *models.PayoutRequest) error
	GetPayout(ctx context.Context, id int64) (*models.PayoutRequest, error)
	UpdatePayoutStatus(ctx context.Context, id int64, status string) error

	InsertOutboxEvent(ctx context.Context, eventID, eventType string, payload []byte) error
}

// Store is the Postgres-backed storage substrate.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to the database and verifies the connection.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RunTx executes fn inside a SERIALIZABLE transaction. The read and
// write sets are validated together at commit; on a detected conflict
// the whole body is re-run against fresh reads. fn must therefore be
// free of external side effects. Exhausted retries surface as Aborted.
func (s *Store) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error

	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err := s.runTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}

	return apperr.Wrap(apperr.KindAborted, "transaction conflict retries exhausted", lastErr)
}

func (s *Store) runTxOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return err
		}
		return apperr.Wrap(apperr.KindInternal, "failed to commit transaction", err)
	}
	return nil
}

// isSerializationFailure matches the Postgres conflict classes that are
// safe to retry: serialization_failure and deadlock_detected.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// sqlTx adapts a sqlx transaction to the Tx interface. Method
// implementations live alongside their aggregate's plain queries.
type sqlTx struct {
	tx *sqlx.Tx
}
