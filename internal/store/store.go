// Package store persists the Order aggregate. Writers coordinate through an
// optimistic version column rather than in-process locks, so several service
// instances may share one database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/hotslice/internal/models"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrConcurrentModification  = errors.New("order was modified concurrently")
	ErrDuplicateOrderNumber    = errors.New("order number already exists")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrAnalyticsNotCached      = errors.New("analytics snapshot not cached")
)

// Filter narrows List. Zero values mean "no constraint"; From is inclusive and
// To is exclusive.
type Filter struct {
	Status     *models.OrderStatus
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// OrderStore is the persistence contract of the fulfillment core.
type OrderStore interface {
	// Create inserts the order with its items and assigns ID and Version 1.
	Create(ctx context.Context, o *models.Order) error

	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)

	// List returns orders with items, newest first.
	List(ctx context.Context, f Filter) ([]*models.Order, error)
	Count(ctx context.Context, f Filter) (int64, error)

	// Update writes the mutable order fields only if the stored version still
	// equals expectedVersion, appending history in the same transaction. It
	// returns the new version or ErrConcurrentModification.
	Update(ctx context.Context, o *models.Order, expectedVersion int64, history ...models.OrderStatusHistory) (int64, error)

	// History returns the audit trail of an order, oldest first.
	History(ctx context.Context, orderID uint64) ([]models.OrderStatusHistory, error)
}

// AnalyticsCache keeps recomputable daily snapshots.
type AnalyticsCache interface {
	GetDaily(ctx context.Context, date string) (*models.DailyAnalytics, error)
	PutDaily(ctx context.Context, snapshot *models.DailyAnalytics) error
	InvalidateDaily(ctx context.Context, date string) error
}

func matches(o *models.Order, f Filter) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *f.CustomerID) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !o.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}
