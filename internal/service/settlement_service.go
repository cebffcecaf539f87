package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PayoutRail is the external payout dispatch. Settlement calls it
// strictly after the WITHDRAWAL transaction commits, so a retried
// transaction can never dispatch money twice.
type PayoutRail interface {
	Dispatch(ctx context.Context, partyID string, amount int64, destination string) error
}

// LoggingRail is the mocked payout rail: it records the dispatch and
// reports success.
type LoggingRail struct {
	logger *zap.Logger
}

// NewLoggingRail creates the mock payout rail.
func NewLoggingRail() *LoggingRail {
	return &LoggingRail{logger: util.GetLogger()}
}

// Dispatch logs the payout and succeeds.
func (r *LoggingRail) Dispatch(ctx context.Context, partyID string, amount int64, destination string) error {
	r.logger.Info("Payout dispatched",
		zap.String("party_id", partyID),
		zap.Int64("amount", amount),
		zap.String("destination", destination))
	return nil
}

// SettlementService converts accumulated courier balances into
// withdrawal entries and external payouts on a per-shift batch.
type SettlementService struct {
	store  Datastore
	rail   PayoutRail
	logger *zap.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(store Datastore, rail PayoutRail) *SettlementService {
	return &SettlementService{
		store:  store,
		rail:   rail,
		logger: util.GetLogger(),
	}
}

// SettlementResult summarizes one batch run.
type SettlementResult struct {
	Shift        string `json:"shift"`
	SettledCount int    `json:"settled_count"`
	FailedCount  int    `json:"failed_count"`
	SkippedCount int    `json:"skipped_count"`
}

// RunShiftSettlement settles every courier tagged to the shift whose
// balance is positive. Couriers are processed sequentially; a failure
// is logged and the loop continues. There is no cross-courier
// atomicity and no rollback of earlier successes.
func (s *SettlementService) RunShiftSettlement(ctx context.Context, shift string) (*SettlementResult, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.RunShiftSettlement")
	defer span.End()

	if shift == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "shift name is required")
	}

	couriers, err := s.store.CouriersByShift(ctx, shift)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list shift couriers", err)
	}

	util.SettlementRunsTotal.Inc()
	result := &SettlementResult{Shift: shift}
	reference := fmt.Sprintf("settlement:%s:%s", shift, uuid.New().String())

	for _, courier := range couriers {
		if err := s.settleCourier(ctx, courier.ID, reference); err != nil {
			if apperr.Is(err, apperr.KindFailedPrecondition) {
				result.SkippedCount++
				continue
			}
			util.SettlementFailuresTotal.Inc()
			result.FailedCount++
			s.logger.Error("Courier settlement failed",
				zap.Int64("courier_id", courier.ID),
				zap.String("shift", shift),
				zap.Error(err))
			continue
		}
		result.SettledCount++
	}

	event := &models.ShiftSettledEvent{
		BaseEvent:    baseEvent(models.EventTypeShiftSettled),
		Shift:        shift,
		SettledCount: result.SettledCount,
		FailedCount:  result.FailedCount,
	}
	err = s.store.RunTx(ctx, func(tx store.Tx) error {
		return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
	})
	if err != nil {
		s.logger.Warn("Failed to record shift settled event", zap.Error(err))
	}

	s.logger.Info("Shift settlement completed",
		zap.String("shift", shift),
		zap.Int("settled", result.SettledCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("skipped", result.SkippedCount))
	return result, nil
}

// settleCourier withdraws the courier's full balance and dispatches
// the payout. The rail call happens after commit; a rail failure is
// reported but the withdrawal stands, to be reconciled by the payout
// resolution flow.
func (s *SettlementService) settleCourier(ctx context.Context, courierID int64, reference string) error {
	party := CourierParty(courierID)

	var withdrawn int64
	err := s.store.RunTx(ctx, func(tx store.Tx) error {
		wallet, err := tx.GetWallet(ctx, party)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read wallet", err)
		}
		if wallet == nil || wallet.Balance <= 0 {
			return apperr.New(apperr.KindFailedPrecondition, "nothing to settle")
		}

		withdrawn = wallet.Balance
		_, err = applyLedger(ctx, tx, party, withdrawn, models.TxTypeWithdrawal, reference)
		return err
	})
	if err != nil {
		return err
	}

	util.LedgerTransactionsTotal.WithLabelValues(models.TxTypeWithdrawal).Inc()
	if err := s.rail.Dispatch(ctx, party, withdrawn, party); err != nil {
		return apperr.Wrap(apperr.KindInternal, "payout rail dispatch failed", err)
	}
	return nil
}

// ShiftForTime names the settlement shift containing t given the day
// shift boundaries, for the scheduled batch runner.
func ShiftForTime(t time.Time, dayStartHour, dayEndHour int) string {
	h := t.Hour()
	if h >= dayStartHour && h < dayEndHour {
		return "day"
	}
	return "night"
}
