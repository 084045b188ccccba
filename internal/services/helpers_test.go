package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/pricing"
	"github.com/example/hotslice/internal/store"
)

type published struct {
	event  events.Event
	groups []events.Group
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ev events.Event, groups ...events.Group) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{
		event:  events.Event{Type: ev.Type, Order: ev.Order.Clone()},
		groups: append([]events.Group(nil), groups...),
	})
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testCalculator() *pricing.Calculator {
	return pricing.NewCalculator(money("5.00"), money("0.06"))
}

func pickupInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerName:  "Dana",
		CustomerPhone: "+1 555 0100",
		Type:          models.OrderTypePickup,
		Items: []ItemInput{
			{Name: "Margherita", Source: models.Catalog(1), Quantity: 2, UnitPrice: money("12.50")},
			{Source: models.Custom(models.CustomLine{Name: "Build your own", Ingredients: []string{"basil"}}), Quantity: 1, UnitPrice: money("8.00")},
		},
	}
}

type fixture struct {
	store     *store.MemoryStore
	publisher *recordingPublisher
	orders    *OrderService
	engine    *StatusEngine
	payments  *PaymentReconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	pub := &recordingPublisher{}
	return &fixture{
		store:     st,
		publisher: pub,
		orders:    NewOrderService(st, testCalculator(), pub),
		engine:    NewStatusEngine(st, pub),
		payments:  NewPaymentReconciler(st, pub),
	}
}

func (f *fixture) createOrder(t *testing.T, in CreateOrderInput) *models.Order {
	t.Helper()
	o, created, err := f.orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.True(t, created)
	return o
}

func (f *fixture) advance(t *testing.T, id uint64, targets ...models.OrderStatus) *models.Order {
	t.Helper()
	var o *models.Order
	for _, target := range targets {
		var err error
		o, err = f.engine.Transition(context.Background(), TransitionRequest{OrderID: id, Target: target})
		require.NoError(t, err)
	}
	return o
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
