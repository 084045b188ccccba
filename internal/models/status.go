package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus uint8

const (
	StatusReceived OrderStatus = iota + 1
	StatusAccepted
	StatusInPreparation
	StatusReady
	StatusOutForDelivery
	StatusCompleted
	StatusCancelled
)

var orderStatusNames = map[OrderStatus]string{
	StatusReceived:       "Received",
	StatusAccepted:       "Accepted",
	StatusInPreparation:  "InPreparation",
	StatusReady:          "Ready",
	StatusOutForDelivery: "OutForDelivery",
	StatusCompleted:      "Completed",
	StatusCancelled:      "Cancelled",
}

// AllOrderStatuses lists every status in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		StatusReceived,
		StatusAccepted,
		StatusInPreparation,
		StatusReady,
		StatusOutForDelivery,
		StatusCompleted,
		StatusCancelled,
	}
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the status by name.
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *OrderStatus) Scan(src any) error {
	parsed, err := ParseOrderStatus(src)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOrderStatus is the single place where external status payloads are
// coerced. It accepts names in any case ("in_preparation", "InPreparation"),
// numeric codes (1..7) and their string forms.
func ParseOrderStatus(v any) (OrderStatus, error) {
	code, name, err := coerceEnum(v)
	if err != nil {
		return 0, fmt.Errorf("order status: %w", err)
	}
	if name == "" {
		s := OrderStatus(code)
		if !s.Valid() {
			return 0, fmt.Errorf("order status: unknown code %d", code)
		}
		return s, nil
	}
	for s, n := range orderStatusNames {
		if normalizeEnumName(n) == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("order status: unknown value %q", name)
}

// PaymentStatus is orthogonal to OrderStatus.
type PaymentStatus uint8

const (
	PaymentPending PaymentStatus = iota + 1
	PaymentPaid
	PaymentFailed
	PaymentRefunded
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentPending:  "Pending",
	PaymentPaid:     "Paid",
	PaymentFailed:   "Failed",
	PaymentRefunded: "Refunded",
}

func (p PaymentStatus) String() string {
	if name, ok := paymentStatusNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PaymentStatus(%d)", uint8(p))
}

func (p PaymentStatus) Valid() bool {
	_, ok := paymentStatusNames[p]
	return ok
}

// Settled reports whether the provider has reached a final answer for a payment attempt.
func (p PaymentStatus) Settled() bool {
	return p == PaymentPaid || p == PaymentFailed || p == PaymentRefunded
}

func (p PaymentStatus) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid payment status %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *PaymentStatus) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentStatus(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PaymentStatus) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid payment status %d", uint8(p))
	}
	return p.String(), nil
}

func (p *PaymentStatus) Scan(src any) error {
	parsed, err := ParsePaymentStatus(src)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePaymentStatus coerces provider and client payloads the same way ParseOrderStatus does.
func ParsePaymentStatus(v any) (PaymentStatus, error) {
	code, name, err := coerceEnum(v)
	if err != nil {
		return 0, fmt.Errorf("payment status: %w", err)
	}
	if name == "" {
		p := PaymentStatus(code)
		if !p.Valid() {
			return 0, fmt.Errorf("payment status: unknown code %d", code)
		}
		return p, nil
	}
	for p, n := range paymentStatusNames {
		if normalizeEnumName(n) == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("payment status: unknown value %q", name)
}

// OrderType distinguishes pickup from delivery orders.
type OrderType uint8

const (
	OrderTypePickup OrderType = iota + 1
	OrderTypeDelivery
)

var orderTypeNames = map[OrderType]string{
	OrderTypePickup:   "Pickup",
	OrderTypeDelivery: "Delivery",
}

func (t OrderType) String() string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("OrderType(%d)", uint8(t))
}

func (t OrderType) Valid() bool {
	_, ok := orderTypeNames[t]
	return ok
}

func (t OrderType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid order type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *OrderType) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t OrderType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid order type %d", uint8(t))
	}
	return t.String(), nil
}

func (t *OrderType) Scan(src any) error {
	parsed, err := ParseOrderType(src)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseOrderType accepts "pickup"/"delivery" in any case or the numeric codes.
func ParseOrderType(v any) (OrderType, error) {
	code, name, err := coerceEnum(v)
	if err != nil {
		return 0, fmt.Errorf("order type: %w", err)
	}
	if name == "" {
		t := OrderType(code)
		if !t.Valid() {
			return 0, fmt.Errorf("order type: unknown code %d", code)
		}
		return t, nil
	}
	for t, n := range orderTypeNames {
		if normalizeEnumName(n) == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("order type: unknown value %q", name)
}

// coerceEnum returns either a numeric code or a normalized name.
func coerceEnum(v any) (int64, string, error) {
	switch val := v.(type) {
	case nil:
		return 0, "", fmt.Errorf("missing value")
	case string:
		return coerceEnumString(val)
	case []byte:
		return coerceEnumString(string(val))
	case json.Number:
		return coerceEnumString(val.String())
	case int:
		return int64(val), "", nil
	case int32:
		return int64(val), "", nil
	case int64:
		return val, "", nil
	case uint8:
		return int64(val), "", nil
	case float64:
		if val != math.Trunc(val) {
			return 0, "", fmt.Errorf("non-integer code %v", val)
		}
		return int64(val), "", nil
	default:
		return 0, "", fmt.Errorf("unsupported type %T", v)
	}
}

func coerceEnumString(s string) (int64, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", fmt.Errorf("empty value")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, "", nil
	}
	return 0, normalizeEnumName(s), nil
}

func normalizeEnumName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
