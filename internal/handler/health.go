package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health answers liveness probes with a plain "ok". It sits outside the
// queue-token middleware so load balancers can reach it unauthenticated.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
