package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPayment    = errors.New("invalid payment notification")
	ErrInvalidWindow     = errors.New("invalid analytics window")

	// Re-exported so callers can match on the services package alone.
	ErrOrderNotFound          = store.ErrOrderNotFound
	ErrConcurrentModification = store.ErrConcurrentModification
)

// ValidationError describes a rejected input field. It matches
// ErrInvalidOrder under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOrder
}

// TransitionError carries enough context for a client to explain a rejected
// status change without its own copy of the transition table.
type TransitionError struct {
	OrderID uint64
	From    models.OrderStatus
	To      models.OrderStatus
	Allowed []models.OrderStatus
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = s.String()
	}
	if len(allowed) == 0 {
		return fmt.Sprintf("cannot transition order %d from %s to %s: %s is terminal", e.OrderID, e.From, e.To, e.From)
	}
	return fmt.Sprintf("cannot transition order %d from %s to %s (allowed: %s)",
		e.OrderID, e.From, e.To, strings.Join(allowed, ", "))
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
