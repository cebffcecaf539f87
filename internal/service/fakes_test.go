package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"
	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/store"
)

func ptr[T any](v T) *T { return &v }

var errRailDown = errors.New("payout rail unavailable")

// fakeStore is an in-memory Datastore with real transaction semantics:
// RunTx serializes bodies and rolls the whole state back when the body
// fails, so all-or-nothing behavior is observable in tests.
type fakeStore struct {
	mu sync.Mutex

	products map[int64]*models.Product
	orders   map[int64]*models.Order
	items    []models.OrderItem
	couriers map[int64]*models.Courier
	wallets  map[string]*models.Wallet
	ledger   []models.LedgerTransaction
	payouts  map[int64]*models.PayoutRequest
	outbox   []models.OutboxEvent

	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]*models.Product{},
		orders:   map[int64]*models.Order{},
		couriers: map[int64]*models.Courier{},
		wallets:  map[string]*models.Wallet{},
		payouts:  map[int64]*models.PayoutRequest{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func copyProduct(p *models.Product) *models.Product {
	c := *p
	c.Variations = append(models.VariationList(nil), p.Variations...)
	return &c
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	if o.CourierID != nil {
		c.CourierID = ptr(*o.CourierID)
	}
	if o.CourierLat != nil {
		c.CourierLat = ptr(*o.CourierLat)
	}
	if o.CourierLng != nil {
		c.CourierLng = ptr(*o.CourierLng)
	}
	if o.DeliveredAt != nil {
		c.DeliveredAt = ptr(*o.DeliveredAt)
	}
	return &c
}

func copyCourier(c *models.Courier) *models.Courier {
	cp := *c
	if c.CurrentOrderID != nil {
		cp.CurrentOrderID = ptr(*c.CurrentOrderID)
	}
	return &cp
}

type fakeSnapshot struct {
	products map[int64]*models.Product
	orders   map[int64]*models.Order
	items    []models.OrderItem
	couriers map[int64]*models.Courier
	wallets  map[string]*models.Wallet
	ledger   []models.LedgerTransaction
	payouts  map[int64]*models.PayoutRequest
	outbox   []models.OutboxEvent
	nextID   int64
}

func (f *fakeStore) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		products: map[int64]*models.Product{},
		orders:   map[int64]*models.Order{},
		couriers: map[int64]*models.Courier{},
		wallets:  map[string]*models.Wallet{},
		payouts:  map[int64]*models.PayoutRequest{},
		items:    append([]models.OrderItem(nil), f.items...),
		ledger:   append([]models.LedgerTransaction(nil), f.ledger...),
		outbox:   append([]models.OutboxEvent(nil), f.outbox...),
		nextID:   f.nextID,
	}
	for k, v := range f.products {
		s.products[k] = copyProduct(v)
	}
	for k, v := range f.orders {
		s.orders[k] = copyOrder(v)
	}
	for k, v := range f.couriers {
		s.couriers[k] = copyCourier(v)
	}
	for k, v := range f.wallets {
		w := *v
		s.wallets[k] = &w
	}
	for k, v := range f.payouts {
		p := *v
		s.payouts[k] = &p
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.products = s.products
	f.orders = s.orders
	f.items = s.items
	f.couriers = s.couriers
	f.wallets = s.wallets
	f.ledger = s.ledger
	f.payouts = s.payouts
	f.outbox = s.outbox
	f.nextID = s.nextID
}

func (f *fakeStore) RunTx(ctx context.Context, fn func(tx store.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshot()
	if err := fn(&fakeTx{f: f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// fakeTx exposes the Tx surface over the locked fakeStore.
type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := t.f.products[id]
	if !ok {
		return nil, nil
	}
	return copyProduct(p), nil
}

func (t *fakeTx) UpdateProductStock(ctx context.Context, id int64, stock int) error {
	t.f.products[id].Stock = stock
	return nil
}

func (t *fakeTx) UpdateProductVariations(ctx context.Context, id int64, variations models.VariationList) error {
	t.f.products[id].Variations = append(models.VariationList(nil), variations...)
	return nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *models.Order) error {
	order.ID = t.f.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	t.f.orders[order.ID] = copyOrder(order)
	return nil
}

func (t *fakeTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	item.ID = t.f.id()
	t.f.items = append(t.f.items, *item)
	return nil
}

func (t *fakeTx) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := t.f.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (t *fakeTx) GetOrderByIdemKey(ctx context.Context, key string) (*models.Order, error) {
	for _, o := range t.f.orders {
		if o.IdemKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (t *fakeTx) UpdateOrderStatus(ctx context.Context, id int64, status models.Status) error {
	t.f.orders[id].Status = status
	return nil
}

func (t *fakeTx) SetOrderDispatch(ctx context.Context, id int64, status models.Status, courierID *int64) error {
	o := t.f.orders[id]
	o.Status = status
	o.CourierID = nil
	if courierID != nil {
		o.CourierID = ptr(*courierID)
	}
	return nil
}

func (t *fakeTx) MarkOrderDelivered(ctx context.Context, id int64, at time.Time) error {
	o := t.f.orders[id]
	o.Status = models.StatusDelivered
	o.DeliveredAt = ptr(at)
	return nil
}

func (t *fakeTx) SetOrderCourierPosition(ctx context.Context, id int64, lat, lng float64) error {
	o := t.f.orders[id]
	o.CourierLat = ptr(lat)
	o.CourierLng = ptr(lng)
	return nil
}

func (t *fakeTx) GetCourier(ctx context.Context, id int64) (*models.Courier, error) {
	c, ok := t.f.couriers[id]
	if !ok {
		return nil, nil
	}
	return copyCourier(c), nil
}

func (t *fakeTx) UpdateCourierLocation(ctx context.Context, id int64, lat, lng float64, geohash, status string) error {
	c := t.f.couriers[id]
	c.Lat, c.Lng, c.Geohash, c.Status = lat, lng, geohash, status
	return nil
}

func (t *fakeTx) SetCourierAssignment(ctx context.Context, id int64, status string, currentOrderID *int64) error {
	c := t.f.couriers[id]
	c.Status = status
	c.CurrentOrderID = nil
	if currentOrderID != nil {
		c.CurrentOrderID = ptr(*currentOrderID)
	}
	return nil
}

func (t *fakeTx) GetWallet(ctx context.Context, partyID string) (*models.Wallet, error) {
	w, ok := t.f.wallets[partyID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (t *fakeTx) UpsertWallet(ctx context.Context, partyID string, balance, pendingPayouts int64) error {
	t.f.wallets[partyID] = &models.Wallet{
		PartyID:        partyID,
		Balance:        balance,
		PendingPayouts: pendingPayouts,
		UpdatedAt:      time.Now(),
	}
	return nil
}

func (t *fakeTx) InsertLedgerTransaction(ctx context.Context, entry *models.LedgerTransaction) error {
	entry.ID = t.f.id()
	entry.CreatedAt = time.Now()
	t.f.ledger = append(t.f.ledger, *entry)
	return nil
}

func (t *fakeTx) InsertPayout(ctx context.Context, payout *models.PayoutRequest) error {
	payout.ID = t.f.id()
	payout.CreatedAt = time.Now()
	payout.UpdatedAt = payout.CreatedAt
	cp := *payout
	t.f.payouts[payout.ID] = &cp
	return nil
}

func (t *fakeTx) GetPayout(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	p, ok := t.f.payouts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *fakeTx) UpdatePayoutStatus(ctx context.Context, id int64, status string) error {
	t.f.payouts[id].Status = status
	return nil
}

func (t *fakeTx) InsertOutboxEvent(ctx context.Context, eventID, eventType string, payload []byte) error {
	t.f.outbox = append(t.f.outbox, models.OutboxEvent{
		ID:        t.f.id(),
		EventID:   eventID,
		EventType: eventType,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now(),
	})
	return nil
}

// Datastore read methods.

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f: f}).GetOrder(ctx, id)
}

func (f *fakeStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (f *fakeStore) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			orders = append(orders, *copyOrder(o))
		}
	}
	return orders, nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f: f}).GetProduct(ctx, id)
}

func (f *fakeStore) GetCourierByID(ctx context.Context, id int64) (*models.Courier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f: f}).GetCourier(ctx, id)
}

func (f *fakeStore) CouriersInRange(ctx context.Context, start, end string) ([]models.Courier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var couriers []models.Courier
	for _, c := range f.couriers {
		if c.Status == models.CourierOnline && c.Geohash >= start && c.Geohash < end {
			couriers = append(couriers, *copyCourier(c))
		}
	}
	return couriers, nil
}

func (f *fakeStore) CouriersByShift(ctx context.Context, shift string) ([]models.Courier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var couriers []models.Courier
	for _, c := range f.couriers {
		if c.Shift == shift {
			couriers = append(couriers, *copyCourier(c))
		}
	}
	return couriers, nil
}

func (f *fakeStore) GetWallet(ctx context.Context, partyID string) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f: f}).GetWallet(ctx, partyID)
}

func (f *fakeStore) GetLedgerHistory(ctx context.Context, partyID string, limit int) ([]models.LedgerTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.LedgerTransaction
	for i := len(f.ledger) - 1; i >= 0 && len(entries) < limit; i-- {
		if f.ledger[i].PartyID == partyID {
			entries = append(entries, f.ledger[i])
		}
	}
	return entries, nil
}

func (f *fakeStore) GetPayoutByID(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{f: f}).GetPayout(ctx, id)
}

// ledgerFor filters the ledger by party for assertions.
func (f *fakeStore) ledgerFor(partyID string) []models.LedgerTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []models.LedgerTransaction
	for _, e := range f.ledger {
		if e.PartyID == partyID {
			entries = append(entries, e)
		}
	}
	return entries
}

// outboxTypes lists outbox event types in insertion order.
func (f *fakeStore) outboxTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.outbox {
		types = append(types, e.EventType)
	}
	return types
}

// fakeTracker is an in-memory LiveTracker.
type fakeTracker struct {
	mu             sync.Mutex
	claims         map[int64]int64
	mirrors        map[string]int
	mirroredStatus string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{claims: map[int64]int64{}, mirrors: map[string]int{}}
}

func (t *fakeTracker) ClaimOrder(ctx context.Context, orderID, courierID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if holder, ok := t.claims[orderID]; ok && holder != courierID {
		return false, nil
	}
	t.claims[orderID] = courierID
	return true, nil
}

func (t *fakeTracker) ReleaseClaim(ctx context.Context, orderID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.claims, orderID)
	return nil
}

func (t *fakeTracker) MirrorCourierPosition(ctx context.Context, courierID int64, lat, lng float64, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirrors["courier"]++
	t.mirroredStatus = status
	return nil
}

func (t *fakeTracker) MirrorOrderPosition(ctx context.Context, orderID int64, lat, lng float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirrors["order"]++
	return nil
}

// approveAll authorizes every payment.
type approveAll struct{}

func (approveAll) Authorize(ctx context.Context, customerID int64, amount int64, method string) error {
	return nil
}

// failParties is a PayoutRail that fails for configured parties.
type failParties struct {
	fail map[string]bool
	sent []string
}

func (r *failParties) Dispatch(ctx context.Context, partyID string, amount int64, destination string) error {
	if r.fail[partyID] {
		return errRailDown
	}
	r.sent = append(r.sent, partyID)
	return nil
}
