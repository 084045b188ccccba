package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Analytics is the statistics block derived from the orders created in a
// half-open time range. Its JSON encoding is deterministic for equal input.
type Analytics struct {
	TotalOrders        int             `json:"total_orders"`
	TotalRevenue       decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_revenue"`
	DeliveryOrders     int             `json:"delivery_orders"`
	PickupOrders       int             `json:"pickup_orders"`
	CompletedOrders    int             `json:"completed_orders"`
	CancelledOrders    int             `json:"cancelled_orders"`
	AverageOrderValue  decimal.Decimal `gorm:"type:numeric(14,2)" json:"average_order_value"`
	AveragePrepSeconds int64           `json:"average_preparation_seconds"`
	PopularItems       []PopularItem   `gorm:"serializer:json" json:"popular_items"`
	HourlyDistribution []HourlyCount   `gorm:"serializer:json" json:"hourly_distribution"`
}

// AveragePreparationTime returns AveragePrepSeconds as a duration.
func (a Analytics) AveragePreparationTime() time.Duration {
	return time.Duration(a.AveragePrepSeconds) * time.Second
}

// PopularItem ranks a line item name by quantity sold in completed orders.
type PopularItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Percentage decimal.Decimal `json:"percentage"`
}

// HourlyCount is one bucket of the hour-of-day histogram.
type HourlyCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// DailyAnalytics is a cached snapshot for one calendar day. It is never the
// source of truth and can always be recomputed from orders.
type DailyAnalytics struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	Date string `gorm:"size:10;uniqueIndex;not null" json:"date"`
	Analytics
	// ComputedAt is cache bookkeeping and stays out of the JSON form.
	ComputedAt time.Time `json:"-"`
}

func (DailyAnalytics) TableName() string {
	return "daily_analytics"
}

// WindowAnalytics covers an arbitrary [From, To) range.
type WindowAnalytics struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Analytics
}
