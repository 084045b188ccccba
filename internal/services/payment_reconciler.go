package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

// PaymentResult reports what happened to a payment notification. Found is
// false when the order does not exist; Applied is false for no-ops.
type PaymentResult struct {
	Found   bool
	Applied bool
	Order   *models.Order
}

// PaymentReconciler applies payment gateway notifications to orders. It never
// touches the fulfillment status.
type PaymentReconciler struct {
	store     store.OrderStore
	publisher Publisher
}

func NewPaymentReconciler(orders store.OrderStore, publisher Publisher) *PaymentReconciler {
	return &PaymentReconciler{store: orders, publisher: publisher}
}

// UpdatePaymentStatus records status and reference on the order. Redelivered
// notifications are no-ops, a Pending notification never regresses a settled
// payment with the same reference, and unknown orders are reported through
// the result rather than as an error. A version conflict is returned as
// ErrConcurrentModification for the caller to re-run.
func (r *PaymentReconciler) UpdatePaymentStatus(ctx context.Context, orderID uint64, status models.PaymentStatus, reference string) (PaymentResult, error) {
	if !status.Valid() {
		return PaymentResult{}, fmt.Errorf("%w: unknown payment status", ErrInvalidPayment)
	}
	reference = strings.TrimSpace(reference)

	o, err := r.store.GetByID(ctx, orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		log.Printf("[Payment] notification for unknown order %d (%s, ref %q) ignored", orderID, status, reference)
		return PaymentResult{}, nil
	}
	if err != nil {
		return PaymentResult{}, err
	}

	if !paymentChanges(o, status, reference) {
		return PaymentResult{Found: true, Order: o}, nil
	}

	from := o.PaymentStatus
	o.PaymentStatus = status
	if reference != "" {
		o.PaymentReference = reference
	}

	version, err := r.store.Update(ctx, o, o.Version)
	if err != nil {
		return PaymentResult{Found: true}, fmt.Errorf("update payment of order %d: %w", orderID, err)
	}
	o.Version = version

	log.Printf("[Payment] order %s %s -> %s (ref %q)", o.OrderNumber, from, status, o.PaymentReference)
	r.publisher.Publish(events.Event{Type: events.PaymentStatusChanged, Order: o}, events.TargetsFor(events.PaymentStatusChanged, o)...)
	return PaymentResult{Found: true, Applied: true, Order: o}, nil
}

func paymentChanges(o *models.Order, status models.PaymentStatus, reference string) bool {
	sameRef := reference == "" || reference == o.PaymentReference
	if status == o.PaymentStatus && sameRef {
		return false
	}
	// Late Pending for a payment the gateway already settled.
	if status == models.PaymentPending && o.PaymentStatus.Settled() && sameRef {
		return false
	}
	return true
}
