package handler

import (
    "errors"

    "github.com/labstack/echo/v4"
)

// errUnauthorized signals that no authenticated user is attached to the
// request context; handlers translate it into a 401 response.
var errUnauthorized = errors.New("unauthorized")

// getUserID extracts the authenticated user ID injected by the queue
// token middleware. Handlers behind that middleware can rely on it being
// present; a missing or zero value means the route was wired wrong.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := c.Get("user_id").(uint64)
    if !ok || id == 0 {
        return 0, errUnauthorized
    }
    return id, nil
}
