package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the aggregate root of the fulfillment pipeline. Monetary fields are
// always derived by the pricing calculator and never taken from the client.
type Order struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber      string          `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	IdempotencyKey   *string         `gorm:"size:64;uniqueIndex" json:"-"`
	CustomerID       *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	CustomerPhone    string          `json:"customer_phone"`
	Type             OrderType       `gorm:"type:varchar(16);not null" json:"type"`
	DeliveryAddress  string          `json:"delivery_address"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DeliveryFee      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"delivery_fee"`
	TaxAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status           OrderStatus     `gorm:"type:varchar(32);index;not null" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(32);not null" json:"payment_status"`
	PaymentReference string          `gorm:"size:128" json:"payment_reference"`
	Notes            string          `json:"notes"`
	Version          int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	AcceptedAt             *time.Time `json:"accepted_at,omitempty"`
	PreparationStartedAt   *time.Time `json:"preparation_started_at,omitempty"`
	PreparationCompletedAt *time.Time `json:"preparation_completed_at,omitempty"`
	ActualDeliveryTime     *time.Time `json:"actual_delivery_time,omitempty"`

	Items []OrderItem `gorm:"constraint:OnDelete:RESTRICT" json:"items,omitempty"`
}

// OrderTracking is the public view of an order served to anyone who knows
// its number. Contact details and the delivery address are left out.
type OrderTracking struct {
	OrderNumber   string          `json:"order_number"`
	Type          OrderType       `json:"type"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	AcceptedAt             *time.Time `json:"accepted_at,omitempty"`
	PreparationStartedAt   *time.Time `json:"preparation_started_at,omitempty"`
	PreparationCompletedAt *time.Time `json:"preparation_completed_at,omitempty"`
	ActualDeliveryTime     *time.Time `json:"actual_delivery_time,omitempty"`

	Items []TrackedItem `json:"items,omitempty"`
}

type TrackedItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Tracking returns the public view of o.
func (o *Order) Tracking() OrderTracking {
	t := OrderTracking{
		OrderNumber:            o.OrderNumber,
		Type:                   o.Type,
		Status:                 o.Status,
		PaymentStatus:          o.PaymentStatus,
		Total:                  o.Total,
		Version:                o.Version,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
		AcceptedAt:             o.AcceptedAt,
		PreparationStartedAt:   o.PreparationStartedAt,
		PreparationCompletedAt: o.PreparationCompletedAt,
		ActualDeliveryTime:     o.ActualDeliveryTime,
	}
	for _, item := range o.Items {
		t.Items = append(t.Items, TrackedItem{Name: item.Name, Quantity: item.Quantity})
	}
	return t
}

// OrderItem is a line owned by exactly one order. UnitPrice is frozen at
// order time and is unaffected by later catalog changes.
type OrderItem struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint64          `gorm:"index;not null" json:"order_id"`
	Name      string          `gorm:"not null" json:"name"`
	Source    ItemSource      `gorm:"type:text;not null" json:"source"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineTotal is UnitPrice * Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusHistory is an append-only audit row written once per transition.
type OrderStatusHistory struct {
	ID             uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        uint64      `gorm:"index;not null" json:"order_id"`
	PreviousStatus OrderStatus `gorm:"type:varchar(32);not null" json:"previous_status"`
	NewStatus      OrderStatus `gorm:"type:varchar(32);not null" json:"new_status"`
	ActorID        *uuid.UUID  `gorm:"type:uuid" json:"actor_id,omitempty"`
	Note           string      `json:"note"`
	CreatedAt      time.Time   `gorm:"index" json:"created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

// Clone returns a deep copy so that callers can mutate it freely.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.IdempotencyKey != nil {
		key := *o.IdempotencyKey
		c.IdempotencyKey = &key
	}
	if o.CustomerID != nil {
		id := *o.CustomerID
		c.CustomerID = &id
	}
	c.AcceptedAt = cloneTime(o.AcceptedAt)
	c.PreparationStartedAt = cloneTime(o.PreparationStartedAt)
	c.PreparationCompletedAt = cloneTime(o.PreparationCompletedAt)
	c.ActualDeliveryTime = cloneTime(o.ActualDeliveryTime)
	if o.Items != nil {
		c.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			item.Source = item.Source.clone()
			c.Items[i] = item
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
