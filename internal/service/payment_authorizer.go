package service

import (
	"context"
	"math/rand"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"
)

// PaymentAuthorizer decides whether a payment is authorized for the
// given amount. The order transaction commits only on approval. A real
// gateway integration replaces SimulatedAuthorizer behind this seam.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, customerID int64, amount int64, method string) error
}

// SimulatedAuthorizer declines a configurable fraction of payments as
// a proxy for gateway rejection.
type SimulatedAuthorizer struct {
	DeclineRate float64
}

// NewSimulatedAuthorizer creates an authorizer with the given decline rate.
func NewSimulatedAuthorizer(declineRate float64) *SimulatedAuthorizer {
	return &SimulatedAuthorizer{DeclineRate: declineRate}
}

// Authorize fails with Aborted at the configured rate.
func (a *SimulatedAuthorizer) Authorize(ctx context.Context, customerID int64, amount int64, method string) error {
	if rand.Float64() < a.DeclineRate {
		util.PaymentDeclinedTotal.Inc()
		return apperr.New(apperr.KindAborted, "payment authorization declined")
	}
	return nil
}
