package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/pricing"
	"github.com/example/hotslice/internal/store"
)

const (
	orderNumberPrefix  = "HS"
	maxNumberAttempts  = 5
	maxIdempotencyKey  = 64
	maxItemsPerOrder   = 100
	maxQuantityPerLine = 1000
)

// GenerateOrderNumber returns HS followed by the UTC timestamp to the second
// and four random digits.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, now.UTC().Format("20060102150405"), rand.IntN(10000))
}

// ItemInput is one requested line. UnitPrice is the price the menu quotes at
// order time.
type ItemInput struct {
	Name      string
	Source    models.ItemSource
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderInput is a validated-at-the-boundary creation request. Monetary
// totals are never accepted from the caller.
type CreateOrderInput struct {
	CustomerID      *uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Type            models.OrderType
	DeliveryAddress string
	Notes           string
	Items           []ItemInput
	IdempotencyKey  string
}

// OrderService creates and reads orders.
type OrderService struct {
	store      store.OrderStore
	calculator *pricing.Calculator
	publisher  Publisher
	now        func() time.Time
	numbers    func(time.Time) string
}

func NewOrderService(orders store.OrderStore, calculator *pricing.Calculator, publisher Publisher) *OrderService {
	return &OrderService{
		store:      orders,
		calculator: calculator,
		publisher:  publisher,
		now:        time.Now,
		numbers:    GenerateOrderNumber,
	}
}

// CreateOrder validates and prices the input, persists a new order in
// Received / Pending and publishes OrderCreated. When the idempotency key was
// already used the stored order is returned with created=false and nothing is
// published.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (order *models.Order, created bool, err error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return nil, false, &ValidationError{Field: "idempotency_key", Reason: fmt.Sprintf("must be at most %d characters", maxIdempotencyKey)}
	}
	if key != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, key)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, store.ErrOrderNotFound) {
			return nil, false, err
		}
	}

	o, err := s.buildOrder(in)
	if err != nil {
		return nil, false, err
	}
	if key != "" {
		o.IdempotencyKey = &key
	}

	for attempt := 1; ; attempt++ {
		now := s.now()
		o.ID = 0
		for i := range o.Items {
			o.Items[i].ID = 0
			o.Items[i].OrderID = 0
		}
		o.OrderNumber = s.numbers(now)
		o.CreatedAt = now
		o.UpdatedAt = now

		err = s.store.Create(ctx, o)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, store.ErrDuplicateOrderNumber) && attempt < maxNumberAttempts:
			log.Printf("[Order] order number %s collided, retrying (%d/%d)", o.OrderNumber, attempt, maxNumberAttempts)
			continue
		case errors.Is(err, store.ErrDuplicateIdempotencyKey):
			// Lost a race with a concurrent request carrying the same key.
			existing, getErr := s.store.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		default:
			return nil, false, fmt.Errorf("create order: %w", err)
		}
	}

	log.Printf("[Order] created %s (%s, total %s)", o.OrderNumber, o.Type, o.Total.StringFixed(2))
	s.publisher.Publish(events.Event{Type: events.OrderCreated, Order: o}, events.TargetsFor(events.OrderCreated, o)...)
	return o, true, nil
}

func (s *OrderService) buildOrder(in CreateOrderInput) (*models.Order, error) {
	if !in.Type.Valid() {
		return nil, &ValidationError{Field: "type", Reason: "must be Pickup or Delivery"}
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if in.Type == models.OrderTypeDelivery && address == "" {
		return nil, &ValidationError{Field: "delivery_address", Reason: "is required for delivery orders"}
	}
	if in.Type == models.OrderTypePickup {
		address = ""
	}

	name := strings.TrimSpace(in.CustomerName)
	if in.CustomerID == nil && name == "" {
		return nil, &ValidationError{Field: "customer_name", Reason: "is required for guest orders"}
	}

	if len(in.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	if len(in.Items) > maxItemsPerOrder {
		return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("must contain at most %d items", maxItemsPerOrder)}
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		itemName := strings.TrimSpace(item.Name)
		if custom, ok := item.Source.LineSource.(models.CustomLine); ok && itemName == "" {
			itemName = strings.TrimSpace(custom.Name)
		}
		switch {
		case itemName == "":
			return nil, &ValidationError{Field: field + ".name", Reason: "is required"}
		case item.Source.Kind() == "":
			return nil, &ValidationError{Field: field + ".source", Reason: "is required"}
		case item.Quantity <= 0 || item.Quantity > maxQuantityPerLine:
			return nil, &ValidationError{Field: field + ".quantity", Reason: fmt.Sprintf("must be between 1 and %d", maxQuantityPerLine)}
		case !item.UnitPrice.IsPositive():
			return nil, &ValidationError{Field: field + ".unit_price", Reason: "must be positive"}
		}
		items = append(items, models.OrderItem{
			Name:      itemName,
			Source:    item.Source,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.RoundBank(2),
		})
	}

	o := &models.Order{
		CustomerID:      in.CustomerID,
		CustomerName:    name,
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		Type:            in.Type,
		DeliveryAddress: address,
		Notes:           strings.TrimSpace(in.Notes),
		Status:          models.StatusReceived,
		PaymentStatus:   models.PaymentPending,
		Items:           items,
	}
	if err := s.calculator.Apply(o); err != nil {
		return nil, &ValidationError{Field: "items", Reason: err.Error()}
	}
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	return s.store.GetByID(ctx, id)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.store.GetByNumber(ctx, strings.TrimSpace(number))
}

// ListOrders returns one page of orders, newest first, and the total number
// of orders matching the filter.
func (s *OrderService) ListOrders(ctx context.Context, f store.Filter) ([]*models.Order, int64, error) {
	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountByStatus returns how many orders are currently in each status.
func (s *OrderService) CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	counts := make(map[models.OrderStatus]int64)
	for _, status := range models.AllOrderStatuses() {
		n, err := s.store.Count(ctx, store.Filter{Status: &status})
		if err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, nil
}
