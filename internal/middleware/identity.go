package middleware

// identity.go resolves the calling user from their queue token. The token
// is the HS256 JWT issued at enqueue time, presented either in the
// X-Queue-Token header or as a Bearer token. On success the user ID is
// stored in the Echo context under "user_id" as a uint64 for downstream
// middleware and handlers.

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "concert-reservation/internal/utils"
)

// HeaderQueueToken is the dedicated header clients use to present their
// queue token on reservation and payment calls.
const HeaderQueueToken = "X-Queue-Token"

// QueueToken returns an Echo middleware that validates the queue token
// and injects the user ID into the request context. Requests without a
// valid token receive 401 Unauthorized.
func QueueToken(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := c.Request().Header.Get(HeaderQueueToken)
            if raw == "" {
                if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
                    raw = strings.TrimPrefix(auth, "Bearer ")
                }
            }
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing queue token"})
            }
            claims, err := utils.ParseQueueToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid queue token"})
            }
            c.Set("user_id", claims.UserID)
            c.Set("token_id", claims.TokenID)
            return next(c)
        }
    }
}
