package store

import (
	"context"
	"database/sql"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
)

// GetProductByID retrieves a product outside any transaction.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (t *sqlTx) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (t *sqlTx) UpdateProductStock(ctx context.Context, id int64, stock int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = $1 WHERE id = $2", stock, id)
	return err
}

// UpdateProductVariations rewrites the whole variations list. The list
// is one JSONB value so a per-variation stock change is still a single
// atomic write within the transaction.
func (t *sqlTx) UpdateProductVariations(ctx context.Context, id int64, variations models.VariationList) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET variations = $1 WHERE id = $2", variations, id)
	return err
}
