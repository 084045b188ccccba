package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

func TestGenerateOrderNumber(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("X", 5*3600))
	number := GenerateOrderNumber(at)

	assert.Regexp(t, regexp.MustCompile(`^HS20260314042653\d{4}$`), number)
}

func TestCreateOrder_PricesAndPersists(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t, pickupInput())

	assert.NotZero(t, o.ID)
	assert.Equal(t, int64(1), o.Version)
	assert.Equal(t, models.StatusReceived, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "33.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "0.00", o.DeliveryFee.StringFixed(2))
	assert.Equal(t, "1.98", o.TaxAmount.StringFixed(2))
	assert.Equal(t, "34.98", o.Total.StringFixed(2))
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Build your own", o.Items[1].Name, "custom line falls back to its build name")

	stored, err := f.store.GetByNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	assert.True(t, stored.Total.Equal(o.Total))

	evs := f.publisher.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OrderCreated, evs[0].event.Type)
	assert.Equal(t, []events.Group{events.Admins, events.OrderNumber(o.OrderNumber)}, evs[0].groups)
}

func TestCreateOrder_RegisteredCustomerGroup(t *testing.T) {
	f := newFixture(t)
	customerID := uuid.New()
	in := pickupInput()
	in.CustomerID = &customerID
	in.CustomerName = ""

	o := f.createOrder(t, in)

	evs := f.publisher.all()
	require.Len(t, evs, 1)
	assert.Contains(t, evs[0].groups, events.Customer(customerID))
	assert.Equal(t, customerID, *o.CustomerID)
}

func TestCreateOrder_DeliveryAddress(t *testing.T) {
	f := newFixture(t)

	in := pickupInput()
	in.Type = models.OrderTypeDelivery
	_, _, err := f.orders.CreateOrder(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "delivery_address", verr.Field)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	in.DeliveryAddress = " 12 Main St "
	o := f.createOrder(t, in)
	assert.Equal(t, "12 Main St", o.DeliveryAddress)
	assert.Equal(t, "5.00", o.DeliveryFee.StringFixed(2))
	assert.Equal(t, "38.00", o.Subtotal.Add(o.DeliveryFee).StringFixed(2))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.DeliveryFee).Add(o.TaxAmount)))

	pickup := pickupInput()
	pickup.DeliveryAddress = "ignored"
	assert.Empty(t, f.createOrder(t, pickup).DeliveryAddress)
}

func TestCreateOrder_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateOrderInput)
		field  string
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }, "items"},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative price", func(in *CreateOrderInput) { in.Items[1].UnitPrice = money("-1") }, "items[1].unit_price"},
		{"zero price", func(in *CreateOrderInput) { in.Items[0].UnitPrice = money("0") }, "items[0].unit_price"},
		{"missing source", func(in *CreateOrderInput) { in.Items[0].Source = models.ItemSource{} }, "items[0].source"},
		{"missing name", func(in *CreateOrderInput) { in.Items[0].Name = " " }, "items[0].name"},
		{"unknown type", func(in *CreateOrderInput) { in.Type = 0 }, "type"},
		{"anonymous guest", func(in *CreateOrderInput) { in.CustomerName = "" }, "customer_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := pickupInput()
			tt.mutate(&in)

			o, created, err := f.orders.CreateOrder(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Nil(t, o)
			assert.False(t, created)
			assert.Empty(t, f.publisher.all())

			count, err := f.store.Count(context.Background(), store.Filter{})
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	in := pickupInput()
	in.IdempotencyKey = uuid.NewString()

	first, created, err := f.orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Len(t, f.publisher.all(), 1)
}

func TestCreateOrder_ConcurrentSameKeyCreatesOnce(t *testing.T) {
	f := newFixture(t)
	in := pickupInput()
	in.IdempotencyKey = uuid.NewString()

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]uint64, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, _, err := f.orders.CreateOrder(context.Background(), in)
			errs[i] = err
			if o != nil {
				ids[i] = o.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, err := f.store.Count(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.publisher.all(), 1)
}

func TestCreateOrder_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, pickupInput())
	taken := f.publisher.all()[0].event.Order.OrderNumber

	calls := 0
	f.orders.numbers = func(time.Time) string {
		calls++
		if calls < 3 {
			return taken
		}
		return fmt.Sprintf("HS-fresh-%d", calls)
	}

	o := f.createOrder(t, pickupInput())
	assert.Equal(t, "HS-fresh-3", o.OrderNumber)
	assert.Equal(t, 3, calls)
}

func TestCreateOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	first := f.createOrder(t, pickupInput())
	f.orders.numbers = func(time.Time) string { return first.OrderNumber }

	_, _, err := f.orders.CreateOrder(context.Background(), pickupInput())
	assert.ErrorIs(t, err, store.ErrDuplicateOrderNumber)
}

func TestReadOrders(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var created []*models.Order
	for i := 0; i < 3; i++ {
		f.orders.now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		created = append(created, f.createOrder(t, pickupInput()))
	}

	got, err := f.orders.GetOrder(context.Background(), created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, created[1].OrderNumber, got.OrderNumber)

	got, err = f.orders.GetOrderByNumber(context.Background(), " "+created[2].OrderNumber+" ")
	require.NoError(t, err)
	assert.Equal(t, created[2].ID, got.ID)

	_, err = f.orders.GetOrder(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	page, total, err := f.orders.ListOrders(context.Background(), store.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, created[2].ID, page[0].ID, "newest first")
	assert.Equal(t, created[1].ID, page[1].ID)
}
