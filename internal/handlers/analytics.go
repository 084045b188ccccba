package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/hotslice/internal/services"
)

// AnalyticsHandler serves the admin statistics endpoints.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Daily returns the statistics of ?date=YYYY-MM-DD, today by default.
// ?refresh=true recomputes a cached day.
func (h *AnalyticsHandler) Daily(c *fiber.Ctx) error {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := h.analytics.ParseDate(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	snapshot, err := h.analytics.DailyAnalytics(c.UserContext(), date, c.QueryBool("refresh"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": snapshot})
}

// InvalidateDaily drops the cached snapshot of :date.
func (h *AnalyticsHandler) InvalidateDaily(c *fiber.Ctx) error {
	date, err := h.analytics.ParseDate(c.Params("date"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if err := h.analytics.InvalidateDaily(c.UserContext(), date); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// Window aggregates orders created in [from, to). Both bounds are required.
func (h *AnalyticsHandler) Window(c *fiber.Ctx) error {
	from, err := optionalTime(c.Query("from"), h.analytics.Location())
	if err != nil || from == nil {
		return fiber.NewError(fiber.StatusBadRequest, "from must be RFC 3339 or YYYY-MM-DD")
	}
	to, err := optionalTime(c.Query("to"), h.analytics.Location())
	if err != nil || to == nil {
		return fiber.NewError(fiber.StatusBadRequest, "to must be RFC 3339 or YYYY-MM-DD")
	}

	stats, err := h.analytics.ComputeWindow(c.UserContext(), *from, *to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}
