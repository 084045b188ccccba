package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/hotslice/internal/middleware"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/services"
	"github.com/example/hotslice/internal/store"
	"github.com/example/hotslice/internal/utils"
)

// IdempotencyKeyHeader lets clients retry order creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
	engine *services.StatusEngine
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService, engine *services.StatusEngine) *OrderHandler {
	return &OrderHandler{orders: orders, engine: engine}
}

type orderItemRequest struct {
	Name      string            `json:"name"`
	Source    models.ItemSource `json:"source"`
	Quantity  int               `json:"quantity"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerPhone   string             `json:"customer_phone"`
	Type            any                `json:"type"`
	DeliveryAddress string             `json:"delivery_address"`
	Notes           string             `json:"notes"`
	Items           []orderItemRequest `json:"items"`
}

// CreateOrder places an order for a guest or, when a customer token is sent,
// for that customer. Totals are always computed server side.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderType, err := models.ParseOrderType(req.Type)
	if err != nil {
		return &services.ValidationError{Field: "type", Reason: "must be Pickup or Delivery"}
	}

	key := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
	if key != "" {
		if _, err := uuid.Parse(key); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, IdempotencyKeyHeader+" must be a UUID")
		}
	}

	in := services.CreateOrderInput{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Type:            orderType,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		IdempotencyKey:  key,
		Items:           make([]services.ItemInput, 0, len(req.Items)),
	}
	if claims, ok := middleware.GetClaims(c); ok && claims.Role == models.RoleCustomer {
		customerID := claims.UserID
		in.CustomerID = &customerID
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, services.ItemInput{
			Name:      item.Name,
			Source:    item.Source,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, created, err := h.orders.CreateOrder(c.UserContext(), in)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if !created {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// ListOrders returns a filtered, paginated list for staff.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := store.Filter{Limit: pg.Limit, Offset: pg.Offset}

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}
		filter.Status = &status
	}

	if raw := c.Query("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid customer_id")
		}
		filter.CustomerID = &customerID
	}

	var err error
	if filter.From, err = optionalTime(c.Query("from"), time.UTC); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid from")
	}
	if filter.To, err = optionalTime(c.Query("to"), time.UTC); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid to")
	}

	orders, total, err := h.orders.ListOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// ListMyOrders returns the authenticated customer's orders.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	customerID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.UserContext(), store.Filter{
		CustomerID: &customerID,
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns one order. Customers only see their own orders.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	order, err := h.orders.GetOrder(c.UserContext(), id)
	if err != nil {
		return err
	}

	claims, _ := middleware.GetClaims(c)
	if claims.Role == models.RoleCustomer && (order.CustomerID == nil || *order.CustomerID != claims.UserID) {
		return services.ErrOrderNotFound
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// GetOrderByNumber serves tracking pages; knowing the number is enough to
// see the tracking view. Staff and the owning customer get the full order.
func (h *OrderHandler) GetOrderByNumber(c *fiber.Ctx) error {
	order, err := h.orders.GetOrderByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}

	claims, ok := middleware.GetClaims(c)
	if ok && canSeeFullOrder(claims, order) {
		return c.JSON(fiber.Map{"success": true, "data": order})
	}
	return c.JSON(fiber.Map{"success": true, "data": order.Tracking()})
}

func canSeeFullOrder(claims utils.Claims, order *models.Order) bool {
	switch claims.Role {
	case models.RoleAdmin, models.RoleKitchen:
		return true
	case models.RoleCustomer:
		return order.CustomerID != nil && *order.CustomerID == claims.UserID
	default:
		return false
	}
}

// GetHistory returns the audit trail of an order, oldest first.
func (h *OrderHandler) GetHistory(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	history, err := h.engine.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": history})
}

type updateStatusRequest struct {
	Status any    `json:"status"`
	Note   string `json:"note"`
}

// UpdateStatus applies one status transition on behalf of a staff member.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	target, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	transition := services.TransitionRequest{
		OrderID: id,
		Target:  target,
		Note:    strings.TrimSpace(req.Note),
	}
	if actor, ok := middleware.GetCurrentUserID(c); ok {
		transition.ActorID = &actor
	}

	order, err := h.engine.Transition(c.UserContext(), transition)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

func orderIDParam(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// optionalTime accepts RFC 3339 timestamps or YYYY-MM-DD dates, the latter
// taken as midnight in loc.
func optionalTime(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
