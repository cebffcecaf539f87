package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
)

// GetOrderByID retrieves an order outside any transaction.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all line items for an order.
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrdersByCustomerID retrieves a customer's orders, newest first.
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, customer_id, vendor_id, subtotal, delivery_fee,
			total_amount, status, confirm_code, recipient, address, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.CustomerID, order.VendorID, order.Subtotal,
		order.DeliveryFee, order.TotalAmount, order.Status, order.ConfirmCode,
		order.Recipient, order.Address, order.IdemKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

func (t *sqlTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, variation_id, name, image_url,
			unit_price, quantity, vendor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return t.tx.QueryRowxContext(ctx, query,
		item.OrderID, item.ProductID, item.VariationID, item.Name, item.ImageURL,
		item.UnitPrice, item.Quantity, item.VendorID,
	).Scan(&item.ID)
}

func (t *sqlTx) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *sqlTx) GetOrderByIdemKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *sqlTx) UpdateOrderStatus(ctx context.Context, id int64, status models.Status) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	return err
}

func (t *sqlTx) SetOrderDispatch(ctx context.Context, id int64, status models.Status, courierID *int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, courier_id = $2, updated_at = NOW() WHERE id = $3",
		status, courierID, id)
	return err
}

func (t *sqlTx) MarkOrderDelivered(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, delivered_at = $2, updated_at = NOW() WHERE id = $3",
		models.StatusDelivered, at, id)
	return err
}

func (t *sqlTx) SetOrderCourierPosition(ctx context.Context, id int64, lat, lng float64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET courier_lat = $1, courier_lng = $2 WHERE id = $3", lat, lng, id)
	return err
}
