// Package events fans order lifecycle events out to subscriber groups.
//
// Delivery is best effort: a slow subscriber loses events rather than
// blocking the publisher, and subscribers re-fetch authoritative state by
// order id or number. Events for one order are delivered in publish order and
// never after a newer version of the same order.
package events

import (
	"strings"

	"github.com/google/uuid"

	"github.com/example/hotslice/internal/models"
)

// Type names a lifecycle event.
type Type string

const (
	OrderCreated         Type = "OrderCreated"
	OrderStatusChanged   Type = "OrderStatusChanged"
	PaymentStatusChanged Type = "PaymentStatusChanged"
)

// Event is the JSON payload pushed to observers.
type Event struct {
	Type  Type          `json:"eventType"`
	Order *models.Order `json:"order"`
}

// Group identifies a set of observers.
type Group string

// Admins receives every event.
const Admins Group = "Admins"

const (
	customerPrefix    = "Customer:"
	orderNumberPrefix = "OrderNumber:"
)

// Customer is the group of one registered customer's sessions.
func Customer(id uuid.UUID) Group {
	return Group(customerPrefix + id.String())
}

// OrderNumber is the group of anonymous trackers of one order.
func OrderNumber(number string) Group {
	return Group(orderNumberPrefix + number)
}

// RoutingKey converts a group into a dotted broker routing key:
// "admins", "customer.<id>" or "order.<number>".
func RoutingKey(g Group) string {
	s := string(g)
	switch {
	case g == Admins:
		return "admins"
	case strings.HasPrefix(s, customerPrefix):
		return "customer." + strings.TrimPrefix(s, customerPrefix)
	case strings.HasPrefix(s, orderNumberPrefix):
		return "order." + strings.TrimPrefix(s, orderNumberPrefix)
	default:
		return strings.ToLower(s)
	}
}

// TargetsFor returns the groups an event about o is addressed to. Payment
// events stay on the admin channel; customers learn about payment through
// the adjacent status transition.
func TargetsFor(t Type, o *models.Order) []Group {
	groups := []Group{Admins}
	if t == PaymentStatusChanged {
		return groups
	}
	if o.CustomerID != nil {
		groups = append(groups, Customer(*o.CustomerID))
	}
	if o.OrderNumber != "" {
		groups = append(groups, OrderNumber(o.OrderNumber))
	}
	return groups
}
