package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusDispatched, true},
		{StatusDispatched, StatusAccepted, true},
		{StatusAccepted, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusDispatched, StatusCancelled, true},
		{StatusCancelled, StatusPending, true},
		{StatusPending, StatusDelivered, false},
		{StatusDispatched, StatusDelivered, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusDelivered, StatusDelivered, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusDelivered))
	assert.False(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusPending))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusShipped, NormalizeStatus(StatusPickedUp))
	assert.Equal(t, StatusAccepted, NormalizeStatus(StatusAccepted))
}

func TestSignedAmount(t *testing.T) {
	for _, txType := range []string{TxTypeDeposit, TxTypeEarning, TxTypeRefund} {
		signed, err := SignedAmount(txType, 100)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), signed)
	}
	for _, txType := range []string{TxTypeWithdrawal, TxTypePayment} {
		signed, err := SignedAmount(txType, 100)
		assert.NoError(t, err)
		assert.Equal(t, int64(-100), signed)
	}
	_, err := SignedAmount("GIFT", 100)
	assert.Error(t, err)
}
