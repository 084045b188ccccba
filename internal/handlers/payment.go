package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/services"
)

// webhookAttempts bounds re-runs after a version conflict. Payment fields are
// last-write-wins, so re-reading and re-deciding is safe here.
const webhookAttempts = 3

// PaymentHandler receives notifications from the payment adapter.
type PaymentHandler struct {
	reconciler *services.PaymentReconciler
}

func NewPaymentHandler(reconciler *services.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler}
}

type paymentWebhookRequest struct {
	OrderID   uint64 `json:"order_id"`
	Status    any    `json:"status"`
	Reference string `json:"reference"`
}

// Webhook applies a payment notification. Unknown orders are acknowledged
// with found=false so that the provider does not retry forever.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req paymentWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order_id is required")
	}

	status, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var result services.PaymentResult
	for attempt := 1; ; attempt++ {
		result, err = h.reconciler.UpdatePaymentStatus(c.UserContext(), req.OrderID, status, req.Reference)
		if errors.Is(err, services.ErrConcurrentModification) && attempt < webhookAttempts {
			log.Printf("[Payment] order %d changed during notification, retrying (%d/%d)", req.OrderID, attempt, webhookAttempts)
			continue
		}
		break
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"found":   result.Found,
		"applied": result.Applied,
	})
}
