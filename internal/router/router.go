package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "concert-reservation/internal/config"
    "concert-reservation/internal/handler"
    "concert-reservation/internal/middleware"
    "concert-reservation/internal/waitingqueue"
)

// RegisterRoutes registers routes that require no identity on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterQueue registers the admission queue endpoints. Joining the
// queue needs no token yet (the token is what the call returns) and is
// rate limited per client; polling the status requires the issued token.
func RegisterQueue(e *echo.Echo, h *handler.QueueHandler, rdb *redis.Client, secret string) {
    g := e.Group("/v1/queue")
    g.POST("/token", h.Join, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    g.GET("/status", h.Status, middleware.QueueToken(secret))
}

// RegisterReservation registers the contended endpoints. Both are gated
// by the queue token middleware and the active-window check, so only
// users the scheduler has admitted can reserve seats or pay.
func RegisterReservation(e *echo.Echo, rh *handler.ReservationHandler, ph *handler.PaymentHandler, q *waitingqueue.Queue, secret string) {
    g := e.Group("/v1")
    g.Use(middleware.QueueToken(secret))
    g.Use(middleware.RequireActive(q))
    g.POST("/reservations", rh.Create)
    g.POST("/payments", ph.Create)
}
