package order

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyZenaa/pgpbl-jamubae/internal/cart"
	"github.com/MyZenaa/pgpbl-jamubae/internal/domain"
	"github.com/MyZenaa/pgpbl-jamubae/internal/geo"
	"github.com/MyZenaa/pgpbl-jamubae/internal/store/memory"
	apperrors "github.com/MyZenaa/pgpbl-jamubae/pkg/errors"
)

var (
	storeOrigin = geo.Coordinate{Lat: -7.771055, Lng: 110.384504}
	nearbyDest  = geo.Coordinate{Lat: -7.7709, Lng: 110.3779}
)

type statusChange struct {
	orderID string
	from    domain.Status
	to      domain.Status
}

// fakeOrderPublisher records published order events.
type fakeOrderPublisher struct {
	mu      sync.Mutex
	created []string
	updated []string
	changes []statusChange
	deleted []string
}

func (f *fakeOrderPublisher) OrderCreated(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, o.ID)
	return nil
}

func (f *fakeOrderPublisher) OrderUpdated(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, o.ID)
	return nil
}

func (f *fakeOrderPublisher) OrderStatusChanged(_ context.Context, id string, from, to domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, statusChange{orderID: id, from: from, to: to})
	return nil
}

func (f *fakeOrderPublisher) OrderDeleted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

// nopCartPublisher discards cart events in fixtures.
type nopCartPublisher struct{}

func (nopCartPublisher) CartUpdated(context.Context, []domain.LineItem) error { return nil }
func (nopCartPublisher) CartCleared(context.Context) error                    { return nil }

type fixture struct {
	orders *Service
	carts  *cart.Service
	store  *memory.Store
	pub    *fakeOrderPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New(logger)
	t.Cleanup(st.Close)

	carts := cart.NewService(st, nopCartPublisher{}, logger)
	pub := &fakeOrderPublisher{}
	cfg := Config{
		StoreName:         "Toko Jamu Sehat Sentosa",
		Origin:            storeOrigin,
		ShippingRatePerKm: 5000,
	}

	return &fixture{
		orders: NewService(st, carts, pub, cfg, logger),
		carts:  carts,
		store:  st,
		pub:    pub,
	}
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	// Subtotal 25000: 2 x Kunyit Asam 8000 + 1 x Temulawak 9000.
	require.NoError(t, f.carts.Upsert(ctx, cart.UpsertInput{ProductID: "jamu-1", Name: "Kunyit Asam", Price: 8000}))
	require.NoError(t, f.carts.Upsert(ctx, cart.UpsertInput{ProductID: "jamu-1", Name: "Kunyit Asam", Price: 8000}))
	require.NoError(t, f.carts.Upsert(ctx, cart.UpsertInput{ProductID: "jamu-3", Name: "Temulawak", Price: 9000}))
}

func pickupInput() CheckoutInput {
	return CheckoutInput{
		CustomerName:  "Sri Rahayu",
		CustomerPhone: "081234567890",
		Method:        domain.MethodPickup,
	}
}

func deliveryInput() CheckoutInput {
	return CheckoutInput{
		CustomerName:  "Sri Rahayu",
		CustomerPhone: "081234567890",
		Method:        domain.MethodDelivery,
		Address:       "Jl. Kaliurang KM 5",
		Coordinate:    nearbyDest,
	}
}

// --- Checkout validation ---

func TestCheckoutValidationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Name is checked before anything else, even with an empty cart.
	_, err := f.orders.Checkout(ctx, CheckoutInput{})
	assert.ErrorIs(t, err, ErrMissingName)

	_, err = f.orders.Checkout(ctx, CheckoutInput{CustomerName: "Sri"})
	assert.ErrorIs(t, err, ErrMissingPhone)

	_, err = f.orders.Checkout(ctx, pickupInput())
	assert.ErrorIs(t, err, ErrEmptyCart)

	f.fillCart(t)

	in := deliveryInput()
	in.Address = "  "
	_, err = f.orders.Checkout(ctx, in)
	assert.ErrorIs(t, err, ErrMissingAddress)

	in = deliveryInput()
	in.Coordinate = geo.Coordinate{}
	_, err = f.orders.Checkout(ctx, in)
	assert.ErrorIs(t, err, ErrMissingLocation)
}

// --- Checkout ---

func TestCheckoutPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, int64(25000), order.Subtotal)
	assert.Equal(t, int64(25000), order.GrandTotal())
	require.NotNil(t, order.Fulfillment.Pickup)
	assert.Equal(t, "Toko Jamu Sehat Sentosa", order.Fulfillment.Pickup.StoreName)

	// Checkout empties the cart.
	items, err := f.carts.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.Equal(t, []string{order.ID}, f.pub.created)
}

func TestCheckoutDeliveryQuotesShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, deliveryInput())
	require.NoError(t, err)

	require.NotNil(t, order.Fulfillment.Delivery)
	assert.InDelta(t, 0.728, order.Fulfillment.Delivery.DistanceKm, 0.005)
	assert.Equal(t, int64(3639), order.Fulfillment.Delivery.ShippingCost)
	assert.Equal(t, int64(25000), order.Subtotal)
	assert.Equal(t, int64(28639), order.GrandTotal())
}

// --- Get / List ---

func TestGetMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetDefaultsMissingStatusToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An order document written before status tracking existed.
	require.NoError(t, f.store.Set(ctx, "orders/legacy", map[string]any{
		"customer_name": "Sri Rahayu",
		"subtotal":      10000,
	}))

	order, err := f.orders.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, "legacy", order.ID)
}

func TestListReturnsCreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fillCart(t)
	first, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	f.fillCart(t)
	second, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	orders, err := f.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
}

// --- Advance ---

func TestAdvanceWalksTheStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	want := []domain.Status{domain.StatusProcessing, domain.StatusShipped, domain.StatusCompleted}
	for _, expected := range want {
		order, err = f.orders.Advance(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, order.Status)
	}

	// Completed is terminal: advancing again changes nothing and emits no event.
	order, err = f.orders.Advance(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.Len(t, f.pub.changes, 3)
	assert.Equal(t, domain.StatusPending, f.pub.changes[0].from)
	assert.Equal(t, domain.StatusCompleted, f.pub.changes[2].to)
}

// --- Edit ---

func TestEditRecomputesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	edited, err := f.orders.Edit(ctx, order.ID, EditInput{
		CustomerName:  "Sri Rahayu",
		CustomerPhone: "081234567890",
		Items: []domain.LineItem{
			{ID: "jamu-1", Name: "Kunyit Asam", Price: 8000, Quantity: 1},
		},
		Method:     domain.MethodDelivery,
		Address:    "Jl. Kaliurang KM 5",
		Coordinate: nearbyDest,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), edited.Subtotal)
	require.NotNil(t, edited.Fulfillment.Delivery)
	assert.Equal(t, int64(3639), edited.Fulfillment.Delivery.ShippingCost, "quote comes from the coordinate, not the form")
	assert.Equal(t, int64(11639), edited.GrandTotal())

	// The edit survives a re-read.
	got, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11639), got.GrandTotal())
}

func TestEditLockedAfterShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	_, err = f.orders.Advance(ctx, order.ID) // processing
	require.NoError(t, err)
	_, err = f.orders.Advance(ctx, order.ID) // shipped
	require.NoError(t, err)

	_, err = f.orders.Edit(ctx, order.ID, EditInput{
		CustomerName:  "Sri Rahayu",
		CustomerPhone: "081234567890",
		Items:         order.Items,
		Method:        domain.MethodPickup,
	})
	assert.ErrorIs(t, err, ErrOrderLocked)
}

// --- Delete ---

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	require.NoError(t, f.orders.Delete(ctx, order.ID))
	assert.Equal(t, []string{order.ID}, f.pub.deleted)

	err = f.orders.Delete(ctx, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Watch ---

func TestWatchFollowsOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	order, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen []*domain.Order
	)
	sub, err := f.orders.Watch(order.ID, func(o *domain.Order) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = f.orders.Advance(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, f.orders.Delete(ctx, order.ID))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3 && seen[len(seen)-1] == nil
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.StatusPending, seen[0].Status)
	assert.Equal(t, domain.StatusProcessing, seen[1].Status)
}

// --- Reconcile ---

func TestReconcileClearsStaleCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	// Simulate a checkout that crashed before the clear: re-add the lines
	// with timestamps older than the order.
	stale := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.store.Set(ctx, "cart/jamu-1", domain.LineItem{
		ID: "jamu-1", Name: "Kunyit Asam", Price: 8000, Quantity: 2, UpdatedAt: stale,
	}))

	require.NoError(t, f.orders.Reconcile(ctx))

	items, err := f.carts.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "stale lines left by the interrupted checkout are cleared")
}

func TestReconcileKeepsFreshCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)

	_, err := f.orders.Checkout(ctx, pickupInput())
	require.NoError(t, err)

	// A line added after the order is a new shopping session.
	require.NoError(t, f.carts.Upsert(ctx, cart.UpsertInput{ProductID: "jamu-2", Name: "Beras Kencur", Price: 7000}))

	require.NoError(t, f.orders.Reconcile(ctx))

	items, err := f.carts.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestReconcileEmptyCartIsNoOp(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.orders.Reconcile(context.Background()))
}
