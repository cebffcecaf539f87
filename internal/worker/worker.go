package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/broker"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/service"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"go.uber.org/zap"
)

// OutboxSource reads and acknowledges pending outbox rows.
type OutboxSource interface {
	FetchUnpublishedEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id int64) error
}

// EventSink publishes an outbox row to the broker.
type EventSink interface {
	PublishOutbox(ctx context.Context, event *models.OutboxEvent) error
}

// OutboxRelay drains committed outbox rows to Kafka. Rows are marked
// published only after the broker accepts them, so delivery is
// at-least-once and consumers must dedupe by event_id.
type OutboxRelay struct {
	source   OutboxSource
	sink     EventSink
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// NewOutboxRelay creates a relay polling at the given interval.
func NewOutboxRelay(source OutboxSource, sink EventSink, interval time.Duration) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelay{
		source:   source,
		sink:     sink,
		interval: interval,
		batch:    100,
		logger:   util.GetLogger(),
	}
}

// Run polls until the context is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("Outbox drain failed", zap.Error(err))
			}
		}
	}
}

func (r *OutboxRelay) drainOnce(ctx context.Context) error {
	events, err := r.source.FetchUnpublishedEvents(ctx, r.batch)
	if err != nil {
		return err
	}
	for i := range events {
		event := &events[i]
		if err := r.sink.PublishOutbox(ctx, event); err != nil {
			// Stop the batch; the row stays pending and is retried
			// on the next tick.
			return err
		}
		if err := r.source.MarkEventPublished(ctx, event.ID); err != nil {
			return err
		}
		util.OutboxPublishedTotal.Inc()
	}
	return nil
}

// NotificationWorker consumes order lifecycle events and fans out
// customer notifications. The real push/SMS integration is mocked as
// structured log lines. Events are deduped by event_id because the
// relay delivers at-least-once.
const seenCapacity = 10000

type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger

	// Bounded dedupe window: oldest ids are evicted first. An event
	// replayed after falling out of the window notifies again, which
	// is acceptable for at-least-once notifications.
	mu       sync.Mutex
	seen     map[string]struct{}
	seenFIFO []string
	capacity int
}

// NewNotificationWorker wires the dedupe and notification hooks onto
// a consumer.
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		logger:   util.GetLogger(),
		seen:     map[string]struct{}{},
		capacity: seenCapacity,
	}

	w.handler.OnStatus(func(ctx context.Context, e *models.OrderStatusEvent) error {
		if w.duplicate(e.EventID) {
			return nil
		}
		w.logger.Info("Notify customer: order status changed",
			zap.Int64("order_id", e.OrderID),
			zap.Int64("customer_id", e.CustomerID),
			zap.String("status", e.Status))
		return nil
	})
	w.handler.OnDelivered(func(ctx context.Context, e *models.OrderDeliveredEvent) error {
		if w.duplicate(e.EventID) {
			return nil
		}
		w.logger.Info("Notify customer: order delivered",
			zap.Int64("order_id", e.OrderID),
			zap.Int64("customer_id", e.CustomerID),
			zap.Int64("total_amount", e.TotalAmount))
		return nil
	})
	w.handler.OnCancelled(func(ctx context.Context, e *models.OrderCancelledEvent) error {
		if w.duplicate(e.EventID) {
			return nil
		}
		w.logger.Info("Notify customer: order back in dispatch pool",
			zap.Int64("order_id", e.OrderID),
			zap.Int64("customer_id", e.CustomerID),
			zap.String("reason", e.Reason))
		return nil
	})
	return w
}

// Run consumes until the context is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

func (w *NotificationWorker) duplicate(eventID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[eventID]; ok {
		return true
	}
	w.seen[eventID] = struct{}{}
	w.seenFIFO = append(w.seenFIFO, eventID)
	if len(w.seenFIFO) > w.capacity {
		delete(w.seen, w.seenFIFO[0])
		w.seenFIFO = w.seenFIFO[1:]
	}
	return false
}

// SettlementWorker triggers the shift settlement batch on a fixed
// schedule, settling the shift that contains the tick time.
type SettlementWorker struct {
	settlement   *service.SettlementService
	interval     time.Duration
	dayStartHour int
	dayEndHour   int
	logger       *zap.Logger
}

// NewSettlementWorker creates the scheduled batch runner.
func NewSettlementWorker(settlement *service.SettlementService, interval time.Duration, dayStartHour, dayEndHour int) *SettlementWorker {
	return &SettlementWorker{
		settlement:   settlement,
		interval:     interval,
		dayStartHour: dayStartHour,
		dayEndHour:   dayEndHour,
		logger:       util.GetLogger(),
	}
}

// Run fires settlement batches until the context is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			shift := service.ShiftForTime(now, w.dayStartHour, w.dayEndHour)
			result, err := w.settlement.RunShiftSettlement(ctx, shift)
			if err != nil {
				w.logger.Error("Scheduled settlement failed",
					zap.String("shift", shift), zap.Error(err))
				continue
			}
			w.logger.Info("Scheduled settlement run",
				zap.String("shift", result.Shift),
				zap.Int("settled", result.SettledCount),
				zap.Int("failed", result.FailedCount),
				zap.Int("skipped", result.SkippedCount))
		}
	}
}
