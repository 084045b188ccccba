package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/store"
)

// Publisher is the fan-out capability the services need from the event hub.
type Publisher interface {
	Publish(ev events.Event, groups ...events.Group)
}

// transitions is the order lifecycle state machine. Terminal statuses have
// no entry.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusReceived:       {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:       {models.StatusInPreparation, models.StatusCancelled},
	models.StatusInPreparation:  {models.StatusReady, models.StatusCancelled},
	models.StatusReady:          {models.StatusOutForDelivery, models.StatusCompleted, models.StatusCancelled},
	models.StatusOutForDelivery: {models.StatusCompleted},
}

// AllowedTransitions returns the statuses reachable from from in one step.
func AllowedTransitions(from models.OrderStatus) []models.OrderStatus {
	allowed := transitions[from]
	out := make([]models.OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether from -> to is in the table. Self
// transitions are never allowed.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionRequest asks to move an order to Target. ActorID is nil for
// system-initiated transitions.
type TransitionRequest struct {
	OrderID uint64
	Target  models.OrderStatus
	ActorID *uuid.UUID
	Note    string
}

// StatusEngine validates and applies status transitions.
type StatusEngine struct {
	store     store.OrderStore
	publisher Publisher
	now       func() time.Time
}

func NewStatusEngine(orders store.OrderStore, publisher Publisher) *StatusEngine {
	return &StatusEngine{store: orders, publisher: publisher, now: time.Now}
}

// Transition applies one state-machine step. The status change, lifecycle
// timestamp and history row are persisted together with a version check;
// the event is published only after that write succeeds. A caller that
// receives ErrConcurrentModification should re-read and decide again.
func (e *StatusEngine) Transition(ctx context.Context, req TransitionRequest) (*models.Order, error) {
	o, err := e.store.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if !CanTransition(from, req.Target) {
		return nil, &TransitionError{
			OrderID: o.ID,
			From:    from,
			To:      req.Target,
			Allowed: AllowedTransitions(from),
		}
	}

	now := e.now()
	o.Status = req.Target
	stampLifecycle(o, req.Target, now)

	entry := models.OrderStatusHistory{
		OrderID:        o.ID,
		PreviousStatus: from,
		NewStatus:      req.Target,
		ActorID:        req.ActorID,
		Note:           req.Note,
		CreatedAt:      now,
	}

	version, err := e.store.Update(ctx, o, o.Version, entry)
	if err != nil {
		log.Printf("[Status] order %s %s -> %s not applied: %v", o.OrderNumber, from, req.Target, err)
		return nil, fmt.Errorf("transition order %d: %w", o.ID, err)
	}
	o.Version = version
	o.UpdatedAt = now

	log.Printf("[Status] order %s %s -> %s (version %d)", o.OrderNumber, from, req.Target, version)
	e.publisher.Publish(events.Event{Type: events.OrderStatusChanged, Order: o}, events.TargetsFor(events.OrderStatusChanged, o)...)
	return o, nil
}

// History returns the audit trail of an order, oldest first.
func (e *StatusEngine) History(ctx context.Context, orderID uint64) ([]models.OrderStatusHistory, error) {
	return e.store.History(ctx, orderID)
}

func stampLifecycle(o *models.Order, status models.OrderStatus, now time.Time) {
	at := now
	switch status {
	case models.StatusAccepted:
		o.AcceptedAt = &at
	case models.StatusInPreparation:
		o.PreparationStartedAt = &at
	case models.StatusReady:
		o.PreparationCompletedAt = &at
	case models.StatusCompleted:
		o.ActualDeliveryTime = &at
	}
}
