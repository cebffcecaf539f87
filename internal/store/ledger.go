package store

import (
	"context"
	"database/sql"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
)

// GetWallet retrieves a wallet outside any transaction.
func (s *Store) GetWallet(ctx context.Context, partyID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE party_id = $1", partyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetLedgerHistory returns a party's ledger entries, newest first.
func (s *Store) GetLedgerHistory(ctx context.Context, partyID string, limit int) ([]models.LedgerTransaction, error) {
	var entries []models.LedgerTransaction
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM ledger_transactions WHERE party_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		partyID, limit)
	return entries, err
}

// GetPayoutByID retrieves a payout request outside any transaction.
func (s *Store) GetPayoutByID(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := s.db.GetContext(ctx, &payout, "SELECT * FROM payout_requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (t *sqlTx) GetWallet(ctx context.Context, partyID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := t.tx.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE party_id = $1", partyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (t *sqlTx) UpsertWallet(ctx context.Context, partyID string, balance, pendingPayouts int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallets (party_id, balance, pending_payouts, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (party_id)
		DO UPDATE SET balance = $2, pending_payouts = $3, updated_at = NOW()`,
		partyID, balance, pendingPayouts)
	return err
}

// InsertLedgerTransaction appends an immutable ledger entry. There is
// deliberately no update or delete counterpart.
func (t *sqlTx) InsertLedgerTransaction(ctx context.Context, entry *models.LedgerTransaction) error {
	query := `
		INSERT INTO ledger_transactions (party_id, amount, type, previous_balance,
			new_balance, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		entry.PartyID, entry.Amount, entry.Type, entry.PreviousBalance,
		entry.NewBalance, entry.Reference,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (t *sqlTx) InsertPayout(ctx context.Context, payout *models.PayoutRequest) error {
	query := `
		INSERT INTO payout_requests (party_id, amount, destination, status, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return t.tx.QueryRowxContext(ctx, query,
		payout.PartyID, payout.Amount, payout.Destination, payout.Status, payout.Reference,
	).Scan(&payout.ID, &payout.CreatedAt, &payout.UpdatedAt)
}

func (t *sqlTx) GetPayout(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := t.tx.GetContext(ctx, &payout, "SELECT * FROM payout_requests WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (t *sqlTx) UpdatePayoutStatus(ctx context.Context, id int64, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE payout_requests SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	return err
}
