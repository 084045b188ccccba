package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/hotslice/internal/config"
	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/handlers"
	"github.com/example/hotslice/internal/middleware"
	"github.com/example/hotslice/internal/models"
	"github.com/example/hotslice/internal/services"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Orders    *services.OrderService
	Engine    *services.StatusEngine
	Payments  *services.PaymentReconciler
	Analytics *services.AnalyticsService
	Staff     *services.StaffService
	Hub       *events.Hub
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, svc Services, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(svc.Staff, cfg)
	orderHandler := handlers.NewOrderHandler(svc.Orders, svc.Engine)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments)
	analyticsHandler := handlers.NewAnalyticsHandler(svc.Analytics)
	adminHandler := handlers.NewAdminHandler(svc.Orders, svc.Analytics, svc.Staff)
	eventsHandler := handlers.NewEventsHandler(svc.Hub, svc.Orders)

	authenticated := middleware.AuthMiddleware(cfg.JWTSecret)
	staffOnly := middleware.RequireRole(models.RoleAdmin, models.RoleKitchen)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	customerOnly := middleware.RequireRole(models.RoleCustomer)

	api := app.Group("/api")

	// Auth routes
	api.Post("/auth/login", authHandler.Login)

	// Orders
	orders := api.Group("/orders")
	orders.Post("/", middleware.OptionalAuth(cfg.JWTSecret), orderHandler.CreateOrder)
	orders.Get("/number/:number", middleware.OptionalAuth(cfg.JWTSecret), orderHandler.GetOrderByNumber)
	orders.Get("/", authenticated, staffOnly, orderHandler.ListOrders)
	orders.Get("/:id", authenticated, orderHandler.GetOrder)
	orders.Get("/:id/history", authenticated, staffOnly, orderHandler.GetHistory)
	orders.Patch("/:id/status", authenticated, staffOnly, orderHandler.UpdateStatus)

	api.Get("/me/orders", authenticated, customerOnly, orderHandler.ListMyOrders)

	// Payment adapter callbacks
	api.Post("/payments/webhook", middleware.WebhookAuthMiddleware(cfg.WebhookSecret), paymentHandler.Webhook)

	// Live updates
	stream := api.Group("/events")
	stream.Get("/admin", authenticated, staffOnly, eventsHandler.Admin)
	stream.Get("/customer", authenticated, customerOnly, eventsHandler.Customer)
	stream.Get("/orders/:number", eventsHandler.Order)

	// Admin
	analytics := api.Group("/analytics", authenticated, adminOnly)
	analytics.Get("/daily", analyticsHandler.Daily)
	analytics.Delete("/daily/:date", analyticsHandler.InvalidateDaily)
	analytics.Get("/window", analyticsHandler.Window)

	admin := api.Group("/admin", authenticated, adminOnly)
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/dashboard/recent-orders", adminHandler.RecentOrders)
	admin.Get("/staff", adminHandler.ListStaff)
	admin.Post("/staff", adminHandler.CreateStaff)
	admin.Patch("/staff/:id/active", adminHandler.SetStaffActive)
}
