package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TAX_RATE", "0.06")
	t.Setenv("DELIVERY_FEE", "5.00")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("EVENT_LANES", "8")
	t.Setenv("JWT_TTL_HOURS", "24")

	cfg := Load()
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "0.06", cfg.TaxRate.String())
	assert.Equal(t, "5", cfg.DeliveryFee.String())
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 8, cfg.EventLanes)
	assert.Equal(t, 24*time.Hour, cfg.TokenExpires)
	assert.Equal(t, "order_events", cfg.AMQPExchange)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("TAX_RATE", "six percent")
	t.Setenv("DELIVERY_FEE", "free")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	t.Setenv("EVENT_BUFFER", "lots")

	cfg := Load()
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "0.06", cfg.TaxRate.String())
	assert.Equal(t, "5", cfg.DeliveryFee.String())
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, 64, cfg.EventBuffer)
}

func TestLoad_TimeZone(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TIMEZONE", "America/New_York")

	cfg := Load()
	assert.Equal(t, "America/New_York", cfg.Location.String())
}
