package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/hotslice/internal/services"
)

// respondError maps domain errors onto HTTP status codes. Anything it does
// not recognise is logged and reported as 500.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation *services.ValidationError
		transition *services.TransitionError
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return writeError(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"field":  validation.Field,
			"reason": validation.Reason,
		})
	case errors.As(err, &transition):
		allowed := make([]string, len(transition.Allowed))
		for i, s := range transition.Allowed {
			allowed[i] = s.String()
		}
		return writeError(c, fiber.StatusConflict, err.Error(), fiber.Map{
			"order_id":         transition.OrderID,
			"current_status":   transition.From.String(),
			"attempted_status": transition.To.String(),
			"allowed":          allowed,
		})
	case errors.Is(err, services.ErrInvalidOrder),
		errors.Is(err, services.ErrInvalidPayment),
		errors.Is(err, services.ErrInvalidWindow):
		return writeError(c, fiber.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, services.ErrOrderNotFound):
		return writeError(c, fiber.StatusNotFound, "order not found", nil)
	case errors.Is(err, services.ErrStaffNotFound):
		return writeError(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		return writeError(c, fiber.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, services.ErrStaffExists):
		return writeError(c, fiber.StatusConflict, err.Error(), nil)
	case errors.Is(err, services.ErrConcurrentModification):
		return writeError(c, fiber.StatusConflict, "order was modified concurrently, reload and retry", nil)
	case errors.As(err, &fiberErr):
		return writeError(c, fiberErr.Code, fiberErr.Message, nil)
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
		return writeError(c, fiber.StatusInternalServerError, "internal server error", nil)
	}
}

func writeError(c *fiber.Ctx, status int, message string, details fiber.Map) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if details != nil {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler is the application-wide fiber error handler, so errors
// returned from middleware share the same body shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
