package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	PaymentDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_declined_total",
		Help: "Total number of payment authorizations declined",
	})

	DispatchAssignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_assigned_total",
		Help: "Total number of orders bound to a courier",
	})

	DispatchConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_conflicts_total",
		Help: "Total number of assignment attempts on an already assigned order",
	})

	OrdersDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_delivered_total",
		Help: "Total number of orders delivered",
	})

	OrdersReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_released_total",
		Help: "Total number of orders released back to the dispatch pool",
	})

	NearbyQueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearby_query_latency_seconds",
		Help:    "Latency of nearby courier searches",
		Buckets: prometheus.DefBuckets,
	})

	LedgerTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Total number of ledger transactions written",
	}, []string{"type"})

	LedgerRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejected_total",
		Help: "Total number of rejected ledger operations",
	}, []string{"reason"})

	PayoutRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_requests_total",
		Help: "Total number of payout requests created",
	})

	SettlementRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_runs_total",
		Help: "Total number of shift settlement batches run",
	})

	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_failures_total",
		Help: "Total number of per-courier settlement failures",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Total number of outbox events relayed to the broker",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
