package store

import (
	"context"
	"database/sql"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
)

// GetCourierByID retrieves a courier outside any transaction.
func (s *Store) GetCourierByID(ctx context.Context, id int64) (*models.Courier, error) {
	var courier models.Courier
	err := s.db.GetContext(ctx, &courier, "SELECT * FROM couriers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &courier, nil
}

// CouriersInRange returns ONLINE couriers whose stored geohash falls in
// the half-open [start, end) range. One call per cover bound; slight
// staleness is acceptable, so this read is not transactional.
func (s *Store) CouriersInRange(ctx context.Context, start, end string) ([]models.Courier, error) {
	var couriers []models.Courier
	err := s.db.SelectContext(ctx, &couriers,
		"SELECT * FROM couriers WHERE status = $1 AND geohash >= $2 AND geohash < $3",
		models.CourierOnline, start, end)
	return couriers, err
}

// CouriersByShift returns every courier tagged to a settlement shift.
func (s *Store) CouriersByShift(ctx context.Context, shift string) ([]models.Courier, error) {
	var couriers []models.Courier
	err := s.db.SelectContext(ctx, &couriers,
		"SELECT * FROM couriers WHERE shift = $1 ORDER BY id", shift)
	return couriers, err
}

func (t *sqlTx) GetCourier(ctx context.Context, id int64) (*models.Courier, error) {
	var courier models.Courier
	err := t.tx.GetContext(ctx, &courier, "SELECT * FROM couriers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &courier, nil
}

func (t *sqlTx) UpdateCourierLocation(ctx context.Context, id int64, lat, lng float64, geohash, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE couriers SET lat = $1, lng = $2, geohash = $3, status = $4, updated_at = NOW() WHERE id = $5",
		lat, lng, geohash, status, id)
	return err
}

func (t *sqlTx) SetCourierAssignment(ctx context.Context, id int64, status string, currentOrderID *int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE couriers SET status = $1, current_order_id = $2, updated_at = NOW() WHERE id = $3",
		status, currentOrderID, id)
	return err
}
