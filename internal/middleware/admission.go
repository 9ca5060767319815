package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "concert-reservation/internal/waitingqueue"
)

// RequireActive returns an Echo middleware that gates contended endpoints
// behind the admission queue: only users inside an unexpired active
// window may pass. It must run after QueueToken so "user_id" is present.
// Users still waiting (or swept out of the window) receive 403 with a
// stable error code telling them to keep polling the queue status.
func RequireActive(q *waitingqueue.Queue) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            userID, ok := c.Get("user_id").(uint64)
            if !ok || userID == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            active, err := q.IsActive(c.Request().Context(), userID)
            if err != nil {
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "queue lookup failed"})
            }
            if !active {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "token_not_active"})
            }
            return next(c)
        }
    }
}
