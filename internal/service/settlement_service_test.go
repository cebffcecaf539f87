package service

import (
	"context"
	"testing"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedShiftCourier(f *fakeStore, id int64, shift string, balance int64) {
	f.couriers[id] = &models.Courier{
		ID:     id,
		Name:   "Courier",
		Status: models.CourierOnline,
		Shift:  shift,
	}
	if balance > 0 {
		f.wallets[CourierParty(id)] = &models.Wallet{
			PartyID: CourierParty(id),
			Balance: balance,
		}
	}
}

func TestRunShiftSettlement(t *testing.T) {
	f := newFakeStore()
	seedShiftCourier(f, 1, "day", 1000)
	seedShiftCourier(f, 2, "day", 0)
	seedShiftCourier(f, 3, "day", 700)
	seedShiftCourier(f, 4, "night", 900)

	rail := &failParties{fail: map[string]bool{"courier:3": true}}
	svc := NewSettlementService(f, rail)

	result, err := svc.RunShiftSettlement(context.Background(), "day")
	require.NoError(t, err)

	assert.Equal(t, 1, result.SettledCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 1, result.SkippedCount)

	assert.Equal(t, int64(0), f.wallets["courier:1"].Balance)
	entries := f.ledgerFor("courier:1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.TxTypeWithdrawal, entries[0].Type)
	assert.Equal(t, int64(-1000), entries[0].Amount)

	// A rail failure after commit leaves the withdrawal standing for
	// reconciliation; the other shift is never touched.
	assert.Equal(t, int64(0), f.wallets["courier:3"].Balance)
	assert.Equal(t, int64(900), f.wallets["courier:4"].Balance)
	assert.Equal(t, []string{"courier:1"}, rail.sent)
	assert.Contains(t, f.outboxTypes(), models.EventTypeShiftSettled)
}

func TestRunShiftSettlementIdempotentWhenEmpty(t *testing.T) {
	f := newFakeStore()
	seedShiftCourier(f, 1, "day", 500)
	svc := NewSettlementService(f, &failParties{})

	first, err := svc.RunShiftSettlement(context.Background(), "day")
	require.NoError(t, err)
	assert.Equal(t, 1, first.SettledCount)

	// A second run finds nothing to withdraw.
	second, err := svc.RunShiftSettlement(context.Background(), "day")
	require.NoError(t, err)
	assert.Equal(t, 0, second.SettledCount)
	assert.Equal(t, 1, second.SkippedCount)
	assert.Len(t, f.ledgerFor("courier:1"), 1)
}

func TestRunShiftSettlementRequiresShift(t *testing.T) {
	svc := NewSettlementService(newFakeStore(), &failParties{})
	_, err := svc.RunShiftSettlement(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestShiftForTime(t *testing.T) {
	day := time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC)
	night := time.Date(2026, 8, 31, 22, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 8, 31, 5, 59, 0, 0, time.UTC)

	assert.Equal(t, "day", ShiftForTime(day, 6, 18))
	assert.Equal(t, "night", ShiftForTime(night, 6, 18))
	assert.Equal(t, "night", ShiftForTime(earlyMorning, 6, 18))
}
