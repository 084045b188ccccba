package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/hotslice/internal/services"
	"github.com/example/hotslice/internal/store"
	"github.com/example/hotslice/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	orders    *services.OrderService
	analytics *services.AnalyticsService
	staff     *services.StaffService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(orders *services.OrderService, analytics *services.AnalyticsService, staff *services.StaffService) *AdminHandler {
	return &AdminHandler{orders: orders, analytics: analytics, staff: staff}
}

// DashboardStats returns the live queue per status and today's figures.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	counts, err := h.orders.CountByStatus(c.UserContext())
	if err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64, len(counts))
	var totalOrders int64
	for status, n := range counts {
		ordersByStatus[status.String()] = n
		totalOrders += n
	}

	today, err := h.analytics.DailyAnalytics(c.UserContext(), time.Now(), false)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":     totalOrders,
			"orders_by_status": ordersByStatus,
			"today":            today,
		},
	})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	orders, _, err := h.orders.ListOrders(c.UserContext(), store.Filter{Limit: 5})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
	})
}

// ListStaff returns staff accounts with pagination and search.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	users, total, err := h.staff.ListStaff(c.UserContext(), c.Query("search"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}

type createStaffRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateStaff registers a kitchen or admin account.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	var req createStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.staff.CreateStaff(c.UserContext(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

type staffActiveRequest struct {
	Active bool `json:"active"`
}

// SetStaffActive enables or disables an account.
func (h *AdminHandler) SetStaffActive(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req staffActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.staff.SetActive(c.UserContext(), id, req.Active); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
