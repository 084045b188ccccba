package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// AnalyticsService computes statistics from orders. Daily snapshots of days
// that are already over are cached; the current day is always computed live.
type AnalyticsService struct {
	store    store.OrderStore
	cache    store.AnalyticsCache
	location *time.Location
	topItems int
	now      func() time.Time
}

func NewAnalyticsService(orders store.OrderStore, cache store.AnalyticsCache, location *time.Location, topItems int) *AnalyticsService {
	if location == nil {
		location = time.UTC
	}
	if topItems <= 0 {
		topItems = 5
	}
	return &AnalyticsService{
		store:    orders,
		cache:    cache,
		location: location,
		topItems: topItems,
		now:      time.Now,
	}
}

// Location is the time zone analytics days are cut in.
func (s *AnalyticsService) Location() *time.Location {
	return s.location
}

// ParseDate reads a YYYY-MM-DD day in the service time zone.
func (s *AnalyticsService) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, s.location)
}

// ComputeDailyAnalytics recomputes the statistics of the calendar day
// containing date and refreshes the cached snapshot when the day is over.
// The result depends only on the orders of that day.
func (s *AnalyticsService) ComputeDailyAnalytics(ctx context.Context, date time.Time) (*models.DailyAnalytics, error) {
	start, end := s.dayBounds(date)
	stats, err := s.compute(ctx, start, end)
	if err != nil {
		return nil, err
	}

	snapshot := &models.DailyAnalytics{
		Date:      start.Format(dateLayout),
		Analytics: stats,
	}
	if now := s.now(); s.cache != nil && !end.After(now) {
		row := *snapshot
		row.ComputedAt = now.UTC()
		if err := s.cache.PutDaily(ctx, &row); err != nil {
			log.Printf("[Analytics] caching %s failed: %v", snapshot.Date, err)
		}
	}
	return snapshot, nil
}

// DailyAnalytics serves a past day from the cache when possible. refresh
// forces a recomputation.
func (s *AnalyticsService) DailyAnalytics(ctx context.Context, date time.Time, refresh bool) (*models.DailyAnalytics, error) {
	start, end := s.dayBounds(date)
	if refresh || s.cache == nil || end.After(s.now()) {
		return s.ComputeDailyAnalytics(ctx, start)
	}

	cached, err := s.cache.GetDaily(ctx, start.Format(dateLayout))
	switch {
	case err == nil:
		return cached, nil
	case errors.Is(err, store.ErrAnalyticsNotCached):
		return s.ComputeDailyAnalytics(ctx, start)
	default:
		log.Printf("[Analytics] cache read for %s failed, recomputing: %v", start.Format(dateLayout), err)
		return s.ComputeDailyAnalytics(ctx, start)
	}
}

// InvalidateDaily drops the cached snapshot of a day, e.g. after a
// back-dated correction.
func (s *AnalyticsService) InvalidateDaily(ctx context.Context, date time.Time) error {
	if s.cache == nil {
		return nil
	}
	start, _ := s.dayBounds(date)
	return s.cache.InvalidateDaily(ctx, start.Format(dateLayout))
}

// ComputeWindow aggregates orders created in [from, to).
func (s *AnalyticsService) ComputeWindow(ctx context.Context, from, to time.Time) (*models.WindowAnalytics, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}
	stats, err := s.compute(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &models.WindowAnalytics{From: from, To: to, Analytics: stats}, nil
}

func (s *AnalyticsService) compute(ctx context.Context, from, to time.Time) (models.Analytics, error) {
	orders, err := s.store.List(ctx, store.Filter{From: &from, To: &to})
	if err != nil {
		return models.Analytics{}, fmt.Errorf("load orders for analytics: %w", err)
	}
	return Aggregate(orders, s.location, s.topItems), nil
}

func (s *AnalyticsService) dayBounds(date time.Time) (time.Time, time.Time) {
	d := date.In(s.location)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.location)
	return start, start.AddDate(0, 0, 1)
}

// Aggregate derives the statistics block from a set of orders. Revenue,
// average order value and popular items count completed orders only; the
// hourly histogram buckets creation times in location.
func Aggregate(orders []*models.Order, location *time.Location, topItems int) models.Analytics {
	stats := models.Analytics{
		TotalRevenue:       decimal.Zero,
		AverageOrderValue:  decimal.Zero,
		PopularItems:       []models.PopularItem{},
		HourlyDistribution: make([]models.HourlyCount, 24),
	}
	for h := range stats.HourlyDistribution {
		stats.HourlyDistribution[h].Hour = h
	}

	quantities := make(map[string]int)
	var prepTotal time.Duration
	var prepCount int64

	for _, o := range orders {
		stats.TotalOrders++
		stats.HourlyDistribution[o.CreatedAt.In(location).Hour()].Count++

		switch o.Type {
		case models.OrderTypeDelivery:
			stats.DeliveryOrders++
		case models.OrderTypePickup:
			stats.PickupOrders++
		}

		switch o.Status {
		case models.StatusCompleted:
			stats.CompletedOrders++
			stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
			for _, item := range o.Items {
				quantities[item.Name] += item.Quantity
			}
		case models.StatusCancelled:
			stats.CancelledOrders++
		}

		if o.PreparationStartedAt != nil && o.PreparationCompletedAt != nil {
			if d := o.PreparationCompletedAt.Sub(*o.PreparationStartedAt); d >= 0 {
				prepTotal += d
				prepCount++
			}
		}
	}

	stats.TotalRevenue = stats.TotalRevenue.RoundBank(2)
	if stats.CompletedOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.CompletedOrders))).RoundBank(2)
	}
	if prepCount > 0 {
		stats.AveragePrepSeconds = int64((prepTotal / time.Duration(prepCount)) / time.Second)
	}
	stats.PopularItems = popularItems(quantities, topItems)
	return stats
}

// popularItems ranks by quantity, then name. Percentages are shares of the
// returned items' combined quantity.
func popularItems(quantities map[string]int, limit int) []models.PopularItem {
	items := make([]models.PopularItem, 0, len(quantities))
	for name, qty := range quantities {
		items = append(items, models.PopularItem{Name: name, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Quantity != items[j].Quantity {
			return items[i].Quantity > items[j].Quantity
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}

	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	for i := range items {
		items[i].Percentage = decimal.NewFromInt(int64(items[i].Quantity)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(total))).
			RoundBank(2)
	}
	return items
}
