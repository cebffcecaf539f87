package service

import (
	"context"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService maintains per-party wallet balances through immutable
// ledger entries. A wallet's balance is the sum of its signed entries
// minus funds moved to pending payouts.
type LedgerService struct {
	store  Datastore
	logger *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store Datastore) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// GetBalance returns a party's wallet, zero-valued when the party has
// never been credited.
func (s *LedgerService) GetBalance(ctx context.Context, partyID string) (*models.Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, partyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read wallet", err)
	}
	if wallet == nil {
		return &models.Wallet{PartyID: partyID}, nil
	}
	return wallet, nil
}

// GetHistory returns a party's ledger entries, newest first.
func (s *LedgerService) GetHistory(ctx context.Context, partyID string, limit int) ([]models.LedgerTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.store.GetLedgerHistory(ctx, partyID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read ledger history", err)
	}
	return entries, nil
}

// CreateTransaction applies one signed ledger entry to a wallet.
// Debits exceeding the balance are rejected without mutating it.
func (s *LedgerService) CreateTransaction(ctx context.Context, partyID string, amount int64, txType, reference string) (*models.LedgerTransaction, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CreateTransaction")
	defer span.End()

	var entry *models.LedgerTransaction
	err := s.store.RunTx(ctx, func(tx store.Tx) error {
		var err error
		entry, err = applyLedger(ctx, tx, partyID, amount, txType, reference)
		return err
	})
	if err != nil {
		util.LedgerRejectedTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}

	util.LedgerTransactionsTotal.WithLabelValues(txType).Inc()
	s.logger.Info("Ledger transaction written",
		zap.String("party_id", partyID),
		zap.String("type", txType),
		zap.Int64("amount", amount),
		zap.Int64("new_balance", entry.NewBalance))
	return entry, nil
}

// applyLedger writes one immutable ledger entry and moves the wallet
// balance by the signed delta. It runs inside the caller's transaction
// so delivery credit fan-out is atomic with the order-state write.
func applyLedger(ctx context.Context, tx store.Tx, partyID string, amount int64, txType, reference string) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "amount must be positive")
	}
	signed, err := models.SignedAmount(txType, amount)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "invalid ledger transaction type", err)
	}

	wallet, err := tx.GetWallet(ctx, partyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read wallet", err)
	}
	if wallet == nil {
		wallet = &models.Wallet{PartyID: partyID}
	}

	if signed < 0 && wallet.Balance < amount {
		return nil, apperr.Newf(apperr.KindFailedPrecondition,
			"insufficient funds: balance=%d, requested=%d", wallet.Balance, amount)
	}

	// Entries carry the signed delta so a wallet balance is always
	// the sum of its entry amounts.
	entry := &models.LedgerTransaction{
		PartyID:         partyID,
		Amount:          signed,
		Type:            txType,
		PreviousBalance: wallet.Balance,
		NewBalance:      wallet.Balance + signed,
		Reference:       reference,
	}
	if err := tx.InsertLedgerTransaction(ctx, entry); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to write ledger entry", err)
	}
	if err := tx.UpsertWallet(ctx, partyID, entry.NewBalance, wallet.PendingPayouts); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update wallet", err)
	}
	return entry, nil
}

// RequestPayout atomically moves funds from balance to pendingPayouts
// and records a PENDING payout, so the same funds cannot be requested
// twice.
func (s *LedgerService) RequestPayout(ctx context.Context, partyID string, amount int64, destination string) (*models.PayoutRequest, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RequestPayout")
	defer span.End()

	if amount <= 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "amount must be positive")
	}

	var payout *models.PayoutRequest
	err := s.store.RunTx(ctx, func(tx store.Tx) error {
		wallet, err := tx.GetWallet(ctx, partyID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read wallet", err)
		}
		if wallet == nil || wallet.Balance < amount {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"insufficient funds for payout: requested=%d", amount)
		}

		if err := tx.UpsertWallet(ctx, partyID,
			wallet.Balance-amount, wallet.PendingPayouts+amount); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to lock payout funds", err)
		}

		payout = &models.PayoutRequest{
			PartyID:     partyID,
			Amount:      amount,
			Destination: destination,
			Status:      models.PayoutStatusPending,
			Reference:   uuid.New().String(),
		}
		if err := tx.InsertPayout(ctx, payout); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to create payout request", err)
		}

		event := &models.PayoutRequestedEvent{
			BaseEvent: baseEvent(models.EventTypePayoutRequested),
			PayoutID:  payout.ID,
			PartyID:   partyID,
			Amount:    amount,
		}
		return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
	})
	if err != nil {
		return nil, err
	}

	util.PayoutRequestsTotal.Inc()
	s.logger.Info("Payout requested",
		zap.String("party_id", partyID),
		zap.Int64("amount", amount),
		zap.Int64("payout_id", payout.ID))
	return payout, nil
}

// ResolvePayout settles a pending payout: COMPLETED releases the lock,
// FAILED returns the funds to the balance with a REFUND entry.
func (s *LedgerService) ResolvePayout(ctx context.Context, payoutID int64, succeeded bool) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.ResolvePayout")
	defer span.End()

	return s.store.RunTx(ctx, func(tx store.Tx) error {
		payout, err := tx.GetPayout(ctx, payoutID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read payout", err)
		}
		if payout == nil {
			return apperr.Newf(apperr.KindNotFound, "payout %d not found", payoutID)
		}
		if payout.Status != models.PayoutStatusPending {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"payout %d already resolved", payoutID)
		}

		wallet, err := tx.GetWallet(ctx, payout.PartyID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read wallet", err)
		}
		if wallet == nil {
			return apperr.Newf(apperr.KindInternal, "wallet missing for payout %d", payoutID)
		}

		if succeeded {
			if err := tx.UpsertWallet(ctx, payout.PartyID,
				wallet.Balance, wallet.PendingPayouts-payout.Amount); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to release payout lock", err)
			}
			return tx.UpdatePayoutStatus(ctx, payoutID, models.PayoutStatusCompleted)
		}

		entry := &models.LedgerTransaction{
			PartyID:         payout.PartyID,
			Amount:          payout.Amount,
			Type:            models.TxTypeRefund,
			PreviousBalance: wallet.Balance,
			NewBalance:      wallet.Balance + payout.Amount,
			Reference:       payout.Reference,
		}
		if err := tx.InsertLedgerTransaction(ctx, entry); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to write refund entry", err)
		}
		if err := tx.UpsertWallet(ctx, payout.PartyID,
			entry.NewBalance, wallet.PendingPayouts-payout.Amount); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to return payout funds", err)
		}
		return tx.UpdatePayoutStatus(ctx, payoutID, models.PayoutStatusFailed)
	})
}
