package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/example/hotslice/internal/config"
	"github.com/example/hotslice/internal/database"
	"github.com/example/hotslice/internal/events"
	"github.com/example/hotslice/internal/handlers"
	"github.com/example/hotslice/internal/pricing"
	"github.com/example/hotslice/internal/routes"
	"github.com/example/hotslice/internal/services"
	"github.com/example/hotslice/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	staffDB, orders, cache := openStore(cfg)

	sinks := []events.Sink{}
	if cfg.TelegramBotToken != "" {
		sinks = append(sinks, services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat))
	}
	var bridge *events.AMQPSink
	if cfg.AMQPURL != "" {
		sink, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("[AMQP] bridge disabled: %v", err)
		} else {
			bridge = sink
			sinks = append(sinks, sink)
		}
	}

	hub, err := events.NewHub(events.Options{
		SubscriberBuffer: cfg.EventBuffer,
		Lanes:            cfg.EventLanes,
	}, sinks...)
	if err != nil {
		log.Fatalf("event hub: %v", err)
	}

	svc := routes.Services{
		Orders:    services.NewOrderService(orders, pricing.NewCalculator(cfg.DeliveryFee, cfg.TaxRate), hub),
		Engine:    services.NewStatusEngine(orders, hub),
		Payments:  services.NewPaymentReconciler(orders, hub),
		Analytics: services.NewAnalyticsService(orders, cache, cfg.Location, cfg.PopularItemsLimit),
		Staff:     services.NewStaffService(staffDB),
		Hub:       hub,
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := svc.Staff.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Printf("[Staff] admin seed failed: %v", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "HotSlice Orders",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, svc, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.AppPort)
		return app.Listen(":" + cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down")
		// Closing the hub ends open event streams so that shutdown does not
		// wait on them.
		hub.Close()
		if bridge != nil {
			if err := bridge.Close(); err != nil {
				log.Printf("[AMQP] close: %v", err)
			}
		}
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore selects the order store by STORE_DRIVER. Staff accounts always
// live in a gorm database; the memory driver keeps them in in-memory SQLite.
func openStore(cfg *config.Config) (*gorm.DB, store.OrderStore, store.AnalyticsCache) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		db, err := database.OpenSQLite("file::memory:?cache=shared")
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		memory := store.NewMemoryStore()
		log.Printf("[Database] using in-memory order store")
		return db, memory, memory
	case config.StoreDriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		gormStore := store.NewGormStore(db)
		return db, gormStore, gormStore
	default:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		gormStore := store.NewGormStore(db)
		return db, gormStore, gormStore
	}
}
