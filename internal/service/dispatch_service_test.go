package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cyrongau/fudaydiye-local-app-sub002/config"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/apperr"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/geo"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hargeisa city center.
const (
	testLat = 9.5624
	testLng = 44.0770
)

func testBusiness() config.BusinessConfig {
	return config.BusinessConfig{
		HouseWalletID:     "platform:house",
		CommissionPercent: 10,
		DefaultRadiusKm:   5,
	}
}

func newDispatchEnv() (*fakeStore, *fakeTracker, *DispatchService) {
	f := newFakeStore()
	tr := newFakeTracker()
	return f, tr, NewDispatchService(f, tr, testBusiness())
}

func seedCourier(f *fakeStore, id int64, status string, lat, lng float64) {
	f.couriers[id] = &models.Courier{
		ID:      id,
		Name:    "Courier",
		Status:  status,
		Lat:     lat,
		Lng:     lng,
		Geohash: geo.Encode(lat, lng),
		Shift:   "day",
	}
}

func seedDispatchableOrder(f *fakeStore, id int64) {
	f.orders[id] = &models.Order{
		ID:          id,
		OrderNumber: "FD-20260831-000001",
		CustomerID:  42,
		VendorID:    7,
		Subtotal:    10000,
		DeliveryFee: 500,
		TotalAmount: 10500,
		Status:      models.StatusPending,
	}
}

func TestUpdateCourierLocation(t *testing.T) {
	f, tr, svc := newDispatchEnv()
	seedCourier(f, 1, models.CourierOffline, 0, 0)

	err := svc.UpdateCourierLocation(context.Background(), 1, testLat, testLng, models.CourierOnline)
	require.NoError(t, err)

	c := f.couriers[1]
	assert.Equal(t, models.CourierOnline, c.Status)
	assert.Equal(t, testLat, c.Lat)
	assert.Equal(t, geo.Encode(testLat, testLng), c.Geohash)
	assert.Equal(t, 1, tr.mirrors["courier"])
}

func TestUpdateCourierLocationWithActiveJob(t *testing.T) {
	f, tr, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	f.orders[10].Status = models.StatusShipped
	f.orders[10].CourierID = ptr(int64(1))
	seedCourier(f, 1, models.CourierBusy, 0, 0)
	f.couriers[1].CurrentOrderID = ptr(int64(10))

	// A courier carrying a job stays BUSY even if the app reports ONLINE.
	err := svc.UpdateCourierLocation(context.Background(), 1, testLat, testLng, models.CourierOnline)
	require.NoError(t, err)

	assert.Equal(t, models.CourierBusy, f.couriers[1].Status)
	assert.Equal(t, models.CourierBusy, tr.mirroredStatus, "mirror reflects the persisted status")
	require.NotNil(t, f.orders[10].CourierLat)
	assert.Equal(t, testLat, *f.orders[10].CourierLat)
	assert.Equal(t, testLng, *f.orders[10].CourierLng)
	assert.Equal(t, 1, tr.mirrors["order"])
}

func TestUpdateCourierLocationInvalidStatus(t *testing.T) {
	_, _, svc := newDispatchEnv()
	err := svc.UpdateCourierLocation(context.Background(), 1, testLat, testLng, "NAPPING")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestUpdateCourierLocationCoordinateBounds(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)

	// The origin is a valid coordinate.
	require.NoError(t, svc.UpdateCourierLocation(context.Background(), 1, 0, 0, models.CourierOnline))
	assert.Equal(t, 0.0, f.couriers[1].Lat)

	err := svc.UpdateCourierLocation(context.Background(), 1, 95, testLng, models.CourierOnline)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	err = svc.UpdateCourierLocation(context.Background(), 1, testLat, 181, models.CourierOnline)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestFindNearbyCouriers(t *testing.T) {
	f, _, svc := newDispatchEnv()

	// Latitude offsets: one degree of latitude is ~111.195 km.
	near := testLat + 0.5/111.195    // ~0.5 km
	mid := testLat + 3.2/111.195     // ~3.2 km
	outside := testLat + 6.0/111.195 // ~6.0 km, beyond the 5 km radius

	seedCourier(f, 1, models.CourierOnline, mid, testLng)
	seedCourier(f, 2, models.CourierOnline, near, testLng)
	seedCourier(f, 3, models.CourierOnline, outside, testLng)
	seedCourier(f, 4, models.CourierOffline, near, testLng)
	seedCourier(f, 5, models.CourierBusy, near, testLng)

	got, err := svc.FindNearbyCouriers(context.Background(), testLat, testLng, 0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID, "results sorted by distance")
	assert.Equal(t, int64(1), got[1].ID)
	assert.InDelta(t, 0.5, got[0].DistanceKm, 0.05)
	assert.InDelta(t, 3.2, got[1].DistanceKm, 0.05)
}

func TestAssignJob(t *testing.T) {
	f, tr, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)

	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))

	order := f.orders[10]
	assert.Equal(t, models.StatusDispatched, order.Status)
	require.NotNil(t, order.CourierID)
	assert.Equal(t, int64(1), *order.CourierID)

	courier := f.couriers[1]
	assert.Equal(t, models.CourierBusy, courier.Status)
	require.NotNil(t, courier.CurrentOrderID)
	assert.Equal(t, int64(10), *courier.CurrentOrderID)

	assert.Equal(t, []string{models.EventTypeOrderDispatched}, f.outboxTypes())
	assert.Empty(t, tr.claims, "claim released after commit")
}

func TestAssignJobAlreadyAssigned(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	seedCourier(f, 2, models.CourierOnline, testLat, testLng)

	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))

	err := svc.AssignJob(context.Background(), 10, 2)
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))
	assert.Equal(t, int64(1), *f.orders[10].CourierID)
}

func TestAssignJobBusyCourier(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierBusy, testLat, testLng)
	f.couriers[1].CurrentOrderID = ptr(int64(99))

	err := svc.AssignJob(context.Background(), 10, 1)
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))
	assert.Nil(t, f.orders[10].CourierID)
}

func TestAssignJobConcurrent(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	seedCourier(f, 2, models.CourierOnline, testLat, testLng)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, courierID := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, courierID int64) {
			defer wg.Done()
			errs[i] = svc.AssignJob(context.Background(), 10, courierID)
		}(i, courierID)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))
		}
	}
	assert.Equal(t, 1, wins, "exactly one courier wins the job")
	require.NotNil(t, f.orders[10].CourierID)
}

func TestUpdateJobStatusForbidden(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	seedCourier(f, 2, models.CourierOnline, testLat, testLng)
	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))

	err := svc.UpdateJobStatus(context.Background(), 10, 2, models.StatusAccepted)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, models.StatusDispatched, f.orders[10].Status)
}

func TestUpdateJobStatusInvalidTransition(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))

	// DISPATCHED cannot jump straight to DELIVERED.
	err := svc.UpdateJobStatus(context.Background(), 10, 1, models.StatusDelivered)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestUpdateJobStatusPickedUpNormalized(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))
	require.NoError(t, svc.UpdateJobStatus(context.Background(), 10, 1, models.StatusAccepted))

	require.NoError(t, svc.UpdateJobStatus(context.Background(), 10, 1, models.StatusPickedUp))
	assert.Equal(t, models.StatusShipped, f.orders[10].Status)
}

func TestUpdateJobStatusCancelReleasesOrder(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)
	require.NoError(t, svc.AssignJob(context.Background(), 10, 1))

	require.NoError(t, svc.UpdateJobStatus(context.Background(), 10, 1, models.StatusCancelled))

	assert.Equal(t, models.StatusPending, f.orders[10].Status)
	assert.Nil(t, f.orders[10].CourierID)
	assert.Equal(t, models.CourierOnline, f.couriers[1].Status)
	assert.Nil(t, f.couriers[1].CurrentOrderID)
	assert.Contains(t, f.outboxTypes(), models.EventTypeOrderCancelled)
}

func deliverOrder(t *testing.T, svc *DispatchService, orderID, courierID int64) {
	t.Helper()
	require.NoError(t, svc.AssignJob(context.Background(), orderID, courierID))
	require.NoError(t, svc.UpdateJobStatus(context.Background(), orderID, courierID, models.StatusAccepted))
	require.NoError(t, svc.UpdateJobStatus(context.Background(), orderID, courierID, models.StatusShipped))
	require.NoError(t, svc.UpdateJobStatus(context.Background(), orderID, courierID, models.StatusDelivered))
}

func TestDeliveredSplitsMoneyAndFreesCourier(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10) // subtotal 10000, delivery fee 500, commission 10%
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)

	deliverOrder(t, svc, 10, 1)

	order := f.orders[10]
	assert.Equal(t, models.StatusDelivered, order.Status)
	assert.NotNil(t, order.DeliveredAt)
	require.NotNil(t, order.CourierID, "delivered order keeps its courier for the record")

	assert.Equal(t, models.CourierOnline, f.couriers[1].Status)
	assert.Nil(t, f.couriers[1].CurrentOrderID)

	assert.Equal(t, int64(500), f.wallets["courier:1"].Balance)
	assert.Equal(t, int64(9000), f.wallets["vendor:7"].Balance)
	assert.Equal(t, int64(1000), f.wallets["platform:house"].Balance)

	entries := f.ledgerFor("courier:1")
	require.Len(t, entries, 1)
	assert.Equal(t, models.TxTypeEarning, entries[0].Type)
	assert.Equal(t, order.OrderNumber, entries[0].Reference)

	assert.Contains(t, f.outboxTypes(), models.EventTypeOrderDelivered)
}

func TestDeliveredTwiceCreditsOnce(t *testing.T) {
	f, _, svc := newDispatchEnv()
	seedDispatchableOrder(f, 10)
	seedCourier(f, 1, models.CourierOnline, testLat, testLng)

	deliverOrder(t, svc, 10, 1)

	err := svc.UpdateJobStatus(context.Background(), 10, 1, models.StatusDelivered)
	assert.True(t, apperr.Is(err, apperr.KindFailedPrecondition))

	assert.Equal(t, int64(500), f.wallets["courier:1"].Balance)
	assert.Len(t, f.ledgerFor("courier:1"), 1)
}
