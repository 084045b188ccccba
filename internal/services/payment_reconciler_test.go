package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
)

func TestUpdatePaymentStatus_Applies(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())
	f.advance(t, o.ID, models.StatusAccepted)

	res, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPaid, "gw-1")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PaymentPaid, res.Order.PaymentStatus)

	stored, err := f.store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, "gw-1", stored.PaymentReference)
	assert.Equal(t, models.StatusAccepted, stored.Status, "fulfillment status untouched")
	assert.Equal(t, int64(3), stored.Version)

	history, err := f.store.History(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "payment changes are not status history")

	evs := f.publisher.all()
	last := evs[len(evs)-1]
	assert.Equal(t, events.PaymentStatusChanged, last.event.Type)
	assert.Equal(t, []events.Group{events.Admins}, last.groups)
}

func TestUpdatePaymentStatus_RedeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())

	_, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPaid, "gw-1")
	require.NoError(t, err)
	published := len(f.publisher.all())

	for _, ref := range []string{"gw-1", ""} {
		res, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPaid, ref)
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.False(t, res.Applied)
	}

	stored, err := f.store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Len(t, f.publisher.all(), published)
}

func TestUpdatePaymentStatus_LatePendingDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())

	_, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPaid, "gw-1")
	require.NoError(t, err)

	res, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPending, "gw-1")
	require.NoError(t, err)
	assert.False(t, res.Applied)

	stored, err := f.store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)

	// A new attempt with its own reference starts over.
	res, err = f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPending, "gw-2")
	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestUpdatePaymentStatus_RefundAfterCancellation(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())
	_, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentPaid, "gw-1")
	require.NoError(t, err)
	f.advance(t, o.ID, models.StatusCancelled)

	res, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, models.PaymentRefunded, "gw-1-refund")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.StatusCancelled, res.Order.Status)
	assert.Equal(t, "gw-1-refund", res.Order.PaymentReference)
}

func TestUpdatePaymentStatus_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	res, err := f.payments.UpdatePaymentStatus(context.Background(), 404, models.PaymentPaid, "gw-x")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.Applied)
	assert.Empty(t, f.publisher.all())
}

func TestUpdatePaymentStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())

	_, err := f.payments.UpdatePaymentStatus(context.Background(), o.ID, 0, "gw-1")
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestUpdatePaymentStatus_ConflictIsReported(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, pickupInput())

	payments := NewPaymentReconciler(newBarrierStore(f.store, 2), f.publisher)
	errs := make([]error, 2)
	statuses := []models.PaymentStatus{models.PaymentPaid, models.PaymentFailed}

	var g errgroup.Group
	for i, status := range statuses {
		g.Go(func() error {
			_, errs[i] = payments.UpdatePaymentStatus(context.Background(), o.ID, status, "gw-1")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrConcurrentModification)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)
}
