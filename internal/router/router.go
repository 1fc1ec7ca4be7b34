// Package router wires the HTTP routes to their handlers and
// middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/thiyagu-igs/waitlist-slot-engine/internal/config"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/handler"
	"github.com/thiyagu-igs/waitlist-slot-engine/internal/middleware"
)

// Handlers bundles everything the routes need.
type Handlers struct {
	Waitlist *handler.WaitlistHandler
	Slots    *handler.SlotHandler
	Confirm  *handler.ConfirmHandler
}

// Register wires all routes.  Everything under /v1 runs behind tenant
// resolution and the token bucket; the health check stays bare so load
// balancers are never throttled or asked for a tenant.
func Register(e *echo.Echo, h Handlers, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.TenantFromHeader())
	v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	v1.POST("/waitlist", h.Waitlist.Join)

	v1.POST("/slots", h.Slots.Create)
	v1.POST("/slots/:id/open", h.Slots.Open)
	v1.POST("/slots/:id/cancel", h.Slots.Cancel)
	v1.GET("/slots/:id", h.Slots.Get, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	v1.POST("/sweep", h.Slots.Sweep)

	// Customer-facing links from offer notifications.
	v1.GET("/confirm", h.Confirm.Confirm)
	v1.GET("/decline", h.Confirm.Decline)
}
