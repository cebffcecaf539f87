package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/config"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/geo"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LiveTracker is the best-effort fast path backing dispatch: claim
// hints and live position mirrors. It is display-only; the storage
// transaction stays authoritative for every state change.
type LiveTracker interface {
	ClaimOrder(ctx context.Context, orderID, courierID int64) (bool, error)
	ReleaseClaim(ctx context.Context, orderID int64) error
	MirrorCourierPosition(ctx context.Context, courierID int64, lat, lng float64, status string) error
	MirrorOrderPosition(ctx context.Context, orderID int64, lat, lng float64) error
}

// DispatchService tracks courier availability, matches couriers to
// orders, and advances orders through the fulfillment state machine.
type DispatchService struct {
	store    Datastore
	tracker  LiveTracker
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(store Datastore, tracker LiveTracker, business config.BusinessConfig) *DispatchService {
	return &DispatchService{
		store:    store,
		tracker:  tracker,
		business: business,
		logger:   util.GetLogger(),
	}
}

// UpdateCourierLocation records a courier's position, geohash, and
// availability, and patches the live position onto the courier's
// active order for tracking consumers. The Redis mirror runs after the
// transaction and never blocks it.
func (s *DispatchService) UpdateCourierLocation(ctx context.Context, courierID int64, lat, lng float64, status string) error {
	ctx, span := util.StartSpan(ctx, "DispatchService.UpdateCourierLocation")
	defer span.End()

	switch status {
	case models.CourierOnline, models.CourierBusy, models.CourierOffline:
	default:
		return apperr.Newf(apperr.KindInvalidArgument, "unknown courier status %q", status)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperr.Newf(apperr.KindInvalidArgument, "coordinates out of range: %v,%v", lat, lng)
	}

	hash := geo.Encode(lat, lng)
	var (
		activeOrderID *int64
		persisted     string
	)

	err := s.store.RunTx(ctx, func(tx store.Tx) error {
		courier, err := tx.GetCourier(ctx, courierID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read courier", err)
		}
		if courier == nil {
			return apperr.Newf(apperr.KindNotFound, "courier %d not found", courierID)
		}

		// A courier with an active order stays BUSY regardless of the
		// reported status; currentOrderId is non-null iff BUSY.
		effective := status
		if courier.CurrentOrderID != nil {
			effective = models.CourierBusy
		}
		persisted = effective

		if err := tx.UpdateCourierLocation(ctx, courierID, lat, lng, hash, effective); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to update courier location", err)
		}

		if courier.CurrentOrderID != nil {
			activeOrderID = courier.CurrentOrderID
			if err := tx.SetOrderCourierPosition(ctx, *courier.CurrentOrderID, lat, lng); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to patch order position", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The mirror shows the status the transaction persisted, not the
	// reported one.
	if mirrorErr := s.tracker.MirrorCourierPosition(ctx, courierID, lat, lng, persisted); mirrorErr != nil {
		s.logger.Warn("Courier tracking mirror failed",
			zap.Int64("courier_id", courierID), zap.Error(mirrorErr))
	}
	if activeOrderID != nil {
		if mirrorErr := s.tracker.MirrorOrderPosition(ctx, *activeOrderID, lat, lng); mirrorErr != nil {
			s.logger.Warn("Order tracking mirror failed",
				zap.Int64("order_id", *activeOrderID), zap.Error(mirrorErr))
		}
	}
	return nil
}

// FindNearbyCouriers returns ONLINE couriers within radiusKm of the
// point, sorted ascending by true great-circle distance. The geohash
// cover over-matches at cell boundaries, so every candidate is
// re-checked against the real distance before it may be returned.
func (s *DispatchService) FindNearbyCouriers(ctx context.Context, lat, lng, radiusKm float64) ([]models.CourierSummary, error) {
	ctx, span := util.StartSpan(ctx, "DispatchService.FindNearbyCouriers")
	defer span.End()

	start := time.Now()
	defer func() {
		util.NearbyQueryLatency.Observe(time.Since(start).Seconds())
	}()

	if radiusKm <= 0 {
		radiusKm = s.business.DefaultRadiusKm
	}

	ranges := geo.CoverRadius(lat, lng, radiusKm)

	var mu sync.Mutex
	candidates := make(map[int64]models.Courier)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			couriers, err := s.store.CouriersInRange(gctx, r.Start, r.End)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, c := range couriers {
				candidates[c.ID] = c
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "nearby courier query failed", err)
	}

	summaries := make([]models.CourierSummary, 0, len(candidates))
	for _, c := range candidates {
		d := geo.DistanceKm(lat, lng, c.Lat, c.Lng)
		if d > radiusKm {
			continue
		}
		summaries = append(summaries, models.CourierSummary{
			ID:         c.ID,
			Name:       c.Name,
			Lat:        c.Lat,
			Lng:        c.Lng,
			DistanceKm: d,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].DistanceKm < summaries[j].DistanceKm
	})
	return summaries, nil
}

// AssignJob binds a courier to an order. The check-then-set runs in
// one transaction, so two dispatchers can never double-book an order;
// the Redis claim only lets the loser skip a doomed transaction.
func (s *DispatchService) AssignJob(ctx context.Context, orderID, courierID int64) error {
	ctx, span := util.StartSpan(ctx, "DispatchService.AssignJob")
	defer span.End()

	claimed, err := s.tracker.ClaimOrder(ctx, orderID, courierID)
	if err != nil {
		s.logger.Warn("Dispatch claim unavailable, relying on transaction",
			zap.Int64("order_id", orderID), zap.Error(err))
	} else if !claimed {
		util.DispatchConflictsTotal.Inc()
		return apperr.Newf(apperr.KindFailedPrecondition, "order %d already assigned", orderID)
	}
	defer func() {
		if relErr := s.tracker.ReleaseClaim(context.WithoutCancel(ctx), orderID); relErr != nil {
			s.logger.Warn("Failed to release dispatch claim",
				zap.Int64("order_id", orderID), zap.Error(relErr))
		}
	}()

	err = s.store.RunTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read order", err)
		}
		if order == nil {
			return apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
		}
		if order.CourierID != nil {
			return apperr.Newf(apperr.KindFailedPrecondition, "order %d already assigned", orderID)
		}
		if !models.CanTransition(order.Status, models.StatusDispatched) {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"order %d not dispatchable from %s", orderID, order.Status)
		}

		courier, err := tx.GetCourier(ctx, courierID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read courier", err)
		}
		if courier == nil {
			return apperr.Newf(apperr.KindNotFound, "courier %d not found", courierID)
		}
		if courier.CurrentOrderID != nil {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"courier %d already has an active order", courierID)
		}

		if err := tx.SetOrderDispatch(ctx, orderID, models.StatusDispatched, &courierID); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to dispatch order", err)
		}
		if err := tx.SetCourierAssignment(ctx, courierID, models.CourierBusy, &orderID); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to mark courier busy", err)
		}

		event := &models.OrderDispatchedEvent{
			BaseEvent: baseEvent(models.EventTypeOrderDispatched),
			OrderID:   orderID,
			CourierID: courierID,
		}
		return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
	})
	if err != nil {
		if apperr.Is(err, apperr.KindFailedPrecondition) {
			util.DispatchConflictsTotal.Inc()
		}
		return err
	}

	util.DispatchAssignedTotal.Inc()
	s.logger.Info("Order dispatched",
		zap.Int64("order_id", orderID), zap.Int64("courier_id", courierID))
	return nil
}

// UpdateJobStatus advances an order through the state machine on
// behalf of its assigned courier.
func (s *DispatchService) UpdateJobStatus(ctx context.Context, orderID, courierID int64, newStatus models.Status) error {
	ctx, span := util.StartSpan(ctx, "DispatchService.UpdateJobStatus")
	defer span.End()

	target := models.NormalizeStatus(newStatus)
	switch target {
	case models.StatusAccepted, models.StatusShipped, models.StatusDelivered, models.StatusCancelled:
	default:
		return apperr.Newf(apperr.KindInvalidArgument, "unsupported job status %q", newStatus)
	}

	return s.store.RunTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to read order", err)
		}
		if order == nil {
			return apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
		}
		if order.CourierID == nil || *order.CourierID != courierID {
			return apperr.Newf(apperr.KindForbidden,
				"courier %d does not own order %d", courierID, orderID)
		}
		if models.IsTerminal(order.Status) {
			return apperr.Newf(apperr.KindFailedPrecondition,
				"order %d is in terminal state %s", orderID, order.Status)
		}
		if !models.CanTransition(order.Status, target) {
			return apperr.Newf(apperr.KindInvalidArgument,
				"transition %s -> %s is not defined", order.Status, target)
		}

		switch target {
		case models.StatusCancelled:
			return s.releaseOrder(ctx, tx, order, courierID)
		case models.StatusDelivered:
			return s.completeDelivery(ctx, tx, order, courierID)
		default:
			if err := tx.UpdateOrderStatus(ctx, orderID, target); err != nil {
				return apperr.Wrap(apperr.KindInternal, "failed to update order status", err)
			}
			eventType := models.EventTypeOrderAccepted
			if target == models.StatusShipped {
				eventType = models.EventTypeOrderShipped
			}
			event := &models.OrderStatusEvent{
				BaseEvent:  baseEvent(eventType),
				OrderID:    orderID,
				CourierID:  courierID,
				CustomerID: order.CustomerID,
				Status:     string(target),
			}
			return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
		}
	})
}

// releaseOrder returns a cancelled order to the dispatch pool and
// frees the courier. Re-entry into the pool resets the order to
// PENDING with no courier, exactly as before dispatch.
func (s *DispatchService) releaseOrder(ctx context.Context, tx store.Tx, order *models.Order, courierID int64) error {
	if err := tx.SetOrderDispatch(ctx, order.ID, models.StatusPending, nil); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to release order", err)
	}
	if err := tx.SetCourierAssignment(ctx, courierID, models.CourierOnline, nil); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to free courier", err)
	}

	util.OrdersReleasedTotal.Inc()
	event := &models.OrderCancelledEvent{
		BaseEvent:  baseEvent(models.EventTypeOrderCancelled),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     "courier_cancelled",
	}
	return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
}

// completeDelivery performs the terminal transition: free the courier,
// stamp the order, and credit courier, merchant, and platform in the
// same transaction. The transition check above makes this idempotent:
// a repeated DELIVERED fails before any credit is written.
func (s *DispatchService) completeDelivery(ctx context.Context, tx store.Tx, order *models.Order, courierID int64) error {
	if err := tx.MarkOrderDelivered(ctx, order.ID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark order delivered", err)
	}
	if err := tx.SetCourierAssignment(ctx, courierID, models.CourierOnline, nil); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to free courier", err)
	}

	platformFee := order.Subtotal * int64(s.business.CommissionPercent) / 100
	merchantShare := order.Subtotal - platformFee
	courierEarning := order.DeliveryFee

	credits := []struct {
		party  string
		amount int64
	}{
		{CourierParty(courierID), courierEarning},
		{VendorParty(order.VendorID), merchantShare},
		{s.business.HouseWalletID, platformFee},
	}
	for _, c := range credits {
		if c.amount <= 0 {
			continue
		}
		if _, err := applyLedger(ctx, tx, c.party, c.amount, models.TxTypeEarning, order.OrderNumber); err != nil {
			return err
		}
		util.LedgerTransactionsTotal.WithLabelValues(models.TxTypeEarning).Inc()
	}

	util.OrdersDeliveredTotal.Inc()
	event := &models.OrderDeliveredEvent{
		BaseEvent:   baseEvent(models.EventTypeOrderDelivered),
		OrderID:     order.ID,
		CourierID:   courierID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
	}
	return writeOutbox(ctx, tx, event.EventID, event.EventType, event)
}

// GetCourier returns a courier's public profile.
func (s *DispatchService) GetCourier(ctx context.Context, courierID int64) (*models.Courier, error) {
	courier, err := s.store.GetCourierByID(ctx, courierID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to read courier", err)
	}
	if courier == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "courier %d not found", courierID)
	}
	return courier, nil
}
