package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/middleware"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/services"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams order events to browsers as server-sent events.
type EventsHandler struct {
	hub       *events.Hub
	orders    *services.OrderService
	heartbeat time.Duration
}

func NewEventsHandler(hub *events.Hub, orders *services.OrderService) *EventsHandler {
	return &EventsHandler{hub: hub, orders: orders, heartbeat: defaultHeartbeat}
}

// Admin streams every event to kitchen and admin dashboards.
func (h *EventsHandler) Admin(c *fiber.Ctx) error {
	return h.stream(c, events.Admins, fullView)
}

// Customer streams events about the authenticated customer's orders.
func (h *EventsHandler) Customer(c *fiber.Ctx) error {
	customerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return h.stream(c, events.Customer(customerID), fullView)
}

// Order streams events about one order to an anonymous tracking page. Only
// the tracking view of the order is sent.
func (h *EventsHandler) Order(c *fiber.Ctx) error {
	order, err := h.orders.GetOrderByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return h.stream(c, events.OrderNumber(order.OrderNumber), trackingView)
}

// eventView picks the JSON payload written for an event.
type eventView func(events.Event) any

func fullView(ev events.Event) any { return ev }

type trackingEvent struct {
	Type  events.Type          `json:"eventType"`
	Order models.OrderTracking `json:"order"`
}

func trackingView(ev events.Event) any {
	return trackingEvent{Type: ev.Type, Order: ev.Order.Tracking()}
}

func (h *EventsHandler) stream(c *fiber.Ctx, group events.Group, view eventView) error {
	sub := h.hub.Subscribe(group)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		if err := writeEvents(w, sub.Events(), view, heartbeat); err != nil {
			log.Printf("[Events] %s stream ended: %v", group, err)
		}
	}))
	return nil
}

// writeEvents copies events onto w until the channel is closed or a write
// fails, which is how a disconnected client shows up. An event that cannot
// be encoded is logged and skipped.
func writeEvents(w *bufio.Writer, ch <-chan events.Event, view eventView, heartbeat time.Duration) error {
	// Flush headers right away so proxies and browsers see an open stream.
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(view(ev))
			if err != nil {
				log.Printf("[Events] skipping %s that cannot be encoded: %v", ev.Type, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
