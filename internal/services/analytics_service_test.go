package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 6, 10, hour, minute, 0, 0, time.UTC)
}

func analyticsOrder(created time.Time, typ models.OrderType, status models.OrderStatus, total string, items ...models.OrderItem) *models.Order {
	return &models.Order{
		OrderNumber:   "HS" + created.Format("150405"),
		Type:          typ,
		Status:        status,
		PaymentStatus: models.PaymentPaid,
		Total:         money(total),
		CreatedAt:     created,
		Items:         items,
	}
}

func line(name string, qty int) models.OrderItem {
	return models.OrderItem{Name: name, Source: models.Catalog(1), Quantity: qty, UnitPrice: money("1.00")}
}

func sampleOrders() []*models.Order {
	prepStart, prepDone := at(12, 0), at(12, 20)
	withPrep := analyticsOrder(at(11, 55), models.OrderTypeDelivery, models.StatusCompleted, "20.00",
		line("Margherita", 2), line("Garlic Bread", 1))
	withPrep.PreparationStartedAt, withPrep.PreparationCompletedAt = &prepStart, &prepDone

	return []*models.Order{
		withPrep,
		analyticsOrder(at(12, 30), models.OrderTypePickup, models.StatusCompleted, "10.01",
			line("Margherita", 1), line("Cola", 3)),
		analyticsOrder(at(12, 45), models.OrderTypePickup, models.StatusCompleted, "5.00",
			line("Garlic Bread", 3)),
		analyticsOrder(at(18, 10), models.OrderTypeDelivery, models.StatusCancelled, "99.00",
			line("Margherita", 10)),
		analyticsOrder(at(19, 0), models.OrderTypePickup, models.StatusReceived, "7.00",
			line("Cola", 1)),
	}
}

func TestAggregate(t *testing.T) {
	stats := Aggregate(sampleOrders(), time.UTC, 2)

	assert.Equal(t, 5, stats.TotalOrders)
	assert.Equal(t, 2, stats.DeliveryOrders)
	assert.Equal(t, 3, stats.PickupOrders)
	assert.Equal(t, 3, stats.CompletedOrders)
	assert.Equal(t, 1, stats.CancelledOrders)
	assert.Equal(t, "35.01", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "11.67", stats.AverageOrderValue.StringFixed(2))
	assert.Equal(t, int64(20*60), stats.AveragePrepSeconds)
	assert.Equal(t, 20*time.Minute, stats.AveragePreparationTime())

	// Garlic Bread 4, Cola 3, Margherita 3: Cola wins the tie by name.
	require.Len(t, stats.PopularItems, 2)
	assert.Equal(t, "Garlic Bread", stats.PopularItems[0].Name)
	assert.Equal(t, 4, stats.PopularItems[0].Quantity)
	assert.Equal(t, "57.14", stats.PopularItems[0].Percentage.StringFixed(2))
	assert.Equal(t, "Cola", stats.PopularItems[1].Name)
	assert.Equal(t, "42.86", stats.PopularItems[1].Percentage.StringFixed(2))

	require.Len(t, stats.HourlyDistribution, 24)
	assert.Equal(t, 1, stats.HourlyDistribution[11].Count)
	assert.Equal(t, 2, stats.HourlyDistribution[12].Count)
	assert.Equal(t, 1, stats.HourlyDistribution[18].Count)
	assert.Equal(t, 1, stats.HourlyDistribution[19].Count)
	assert.Equal(t, 0, stats.HourlyDistribution[3].Count)
}

func TestAggregate_Empty(t *testing.T) {
	stats := Aggregate(nil, time.UTC, 5)

	assert.Zero(t, stats.TotalOrders)
	assert.True(t, stats.TotalRevenue.IsZero())
	assert.True(t, stats.AverageOrderValue.IsZero())
	assert.Zero(t, stats.AveragePrepSeconds)
	assert.Empty(t, stats.PopularItems)
	assert.Len(t, stats.HourlyDistribution, 24)
}

func TestAggregate_HoursFollowLocation(t *testing.T) {
	tz := time.FixedZone("UTC+5", 5*3600)
	stats := Aggregate([]*models.Order{
		analyticsOrder(at(22, 0), models.OrderTypePickup, models.StatusReceived, "1.00"),
	}, tz, 5)

	assert.Equal(t, 1, stats.HourlyDistribution[3].Count)
}

func seedAnalytics(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	for _, o := range sampleOrders() {
		require.NoError(t, st.Create(context.Background(), o))
	}
	// Outside the day on both sides.
	require.NoError(t, st.Create(context.Background(),
		analyticsOrder(at(0, 0).Add(-time.Second), models.OrderTypePickup, models.StatusCompleted, "50.00", line("Cola", 1))))
	require.NoError(t, st.Create(context.Background(),
		analyticsOrder(at(0, 0).AddDate(0, 0, 1), models.OrderTypePickup, models.StatusCompleted, "50.00", line("Cola", 1))))
}

func TestComputeDailyAnalytics_DeterministicAndCached(t *testing.T) {
	st := store.NewMemoryStore()
	seedAnalytics(t, st)
	svc := NewAnalyticsService(st, st, time.UTC, 5)
	svc.now = fixedClock(at(0, 0).AddDate(0, 0, 3))

	first, err := svc.ComputeDailyAnalytics(context.Background(), at(15, 0))
	require.NoError(t, err)
	second, err := svc.ComputeDailyAnalytics(context.Background(), at(9, 0))
	require.NoError(t, err)

	assert.Equal(t, "2026-06-10", first.Date)
	assert.Equal(t, 5, first.TotalOrders)
	a, err := json.Marshal(first.Analytics)
	require.NoError(t, err)
	b, err := json.Marshal(second.Analytics)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, string(a), string(b))

	cached, err := st.GetDaily(context.Background(), "2026-06-10")
	require.NoError(t, err)
	assert.Equal(t, first.TotalOrders, cached.TotalOrders)
	assert.True(t, first.TotalRevenue.Equal(cached.TotalRevenue))
}

func TestComputeDailyAnalytics_ByteIdenticalAcrossRuns(t *testing.T) {
	st := store.NewMemoryStore()
	seedAnalytics(t, st)
	svc := NewAnalyticsService(st, st, time.UTC, 5)

	first, err := svc.ComputeDailyAnalytics(context.Background(), at(15, 0))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.ComputeDailyAnalytics(context.Background(), at(15, 0))
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	cached, err := svc.DailyAnalytics(context.Background(), at(15, 0), false)
	require.NoError(t, err)
	c, err := json.Marshal(cached)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(c))

	row, err := st.GetDaily(context.Background(), "2026-06-10")
	require.NoError(t, err)
	assert.False(t, row.ComputedAt.IsZero())
}

func TestDailyAnalytics_ServesCacheForPastDays(t *testing.T) {
	st := store.NewMemoryStore()
	seedAnalytics(t, st)
	svc := NewAnalyticsService(st, st, time.UTC, 5)
	svc.now = fixedClock(at(0, 0).AddDate(0, 0, 1))

	_, err := svc.ComputeDailyAnalytics(context.Background(), at(0, 0))
	require.NoError(t, err)

	// A stale snapshot stands in for a cache hit.
	stale := &models.DailyAnalytics{Date: "2026-06-10", Analytics: models.Analytics{TotalOrders: 99}}
	require.NoError(t, st.PutDaily(context.Background(), stale))

	got, err := svc.DailyAnalytics(context.Background(), at(0, 0), false)
	require.NoError(t, err)
	assert.Equal(t, 99, got.TotalOrders)

	got, err = svc.DailyAnalytics(context.Background(), at(0, 0), true)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalOrders)

	require.NoError(t, st.PutDaily(context.Background(), stale))
	require.NoError(t, svc.InvalidateDaily(context.Background(), at(0, 0)))
	got, err = svc.DailyAnalytics(context.Background(), at(0, 0), false)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalOrders)
}

func TestDailyAnalytics_TodayIsAlwaysLive(t *testing.T) {
	st := store.NewMemoryStore()
	seedAnalytics(t, st)
	svc := NewAnalyticsService(st, st, time.UTC, 5)
	svc.now = fixedClock(at(20, 0))

	got, err := svc.DailyAnalytics(context.Background(), at(20, 0), false)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalOrders)

	_, err = st.GetDaily(context.Background(), "2026-06-10")
	assert.ErrorIs(t, err, store.ErrAnalyticsNotCached)
}

func TestComputeWindow(t *testing.T) {
	st := store.NewMemoryStore()
	seedAnalytics(t, st)
	svc := NewAnalyticsService(st, st, time.UTC, 5)

	w, err := svc.ComputeWindow(context.Background(), at(12, 0), at(13, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, w.TotalOrders)
	assert.Equal(t, "15.01", w.TotalRevenue.StringFixed(2))

	_, err = svc.ComputeWindow(context.Background(), at(13, 0), at(12, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

type failingStore struct {
	store.OrderStore
}

func (failingStore) List(context.Context, store.Filter) ([]*models.Order, error) {
	return nil, errors.New("connection refused")
}

func TestAnalytics_StoreFailurePropagates(t *testing.T) {
	cache := store.NewMemoryStore()
	svc := NewAnalyticsService(failingStore{}, cache, time.UTC, 5)
	svc.now = fixedClock(at(0, 0).AddDate(0, 0, 2))

	_, err := svc.ComputeDailyAnalytics(context.Background(), at(0, 0))
	assert.ErrorContains(t, err, "connection refused")

	_, err = cache.GetDaily(context.Background(), "2026-06-10")
	assert.ErrorIs(t, err, store.ErrAnalyticsNotCached)

	_, err = svc.ComputeWindow(context.Background(), at(0, 0), at(1, 0))
	assert.Error(t, err)
}
