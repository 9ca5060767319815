package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "concert-reservation/internal/service"
    "concert-reservation/internal/waitingqueue"
)

// QueueHandler exposes the admission queue: joining it and polling one's
// position. Promotion into the active window is done by the background
// scheduler, never by these endpoints.
type QueueHandler struct {
    Admission *service.AdmissionService
}

// NewQueueHandler constructs a QueueHandler.
func NewQueueHandler(admission *service.AdmissionService) *QueueHandler {
    if admission == nil {
        panic("nil service passed to NewQueueHandler")
    }
    return &QueueHandler{Admission: admission}
}

// Join handles POST /v1/queue/token. The request body must contain a JSON
// object with a positive "user_id". On success it returns 201 with the
// user's waiting position and their queue token; the token must accompany
// all subsequent reservation and payment calls. A user already waiting or
// still active receives 409.
func (h *QueueHandler) Join(c echo.Context) error {
    var body struct {
        UserID uint64 `json:"user_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
    }
    token, position, err := h.Admission.Enqueue(c.Request().Context(), body.UserID)
    if err != nil {
        if errors.Is(err, waitingqueue.ErrDuplicateEntry) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "already in queue"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to join queue"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "user_id":  token.UserID,
        "position": position,
        "token":    token.Value,
    })
}

// Status handles GET /v1/queue/status. The caller is identified by their
// queue token; the response is one of {"status":"WAITING","position":n},
// {"status":"ACTIVE"} or {"status":"NOT_IN_QUEUE"}.
func (h *QueueHandler) Status(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    st, err := h.Admission.Status(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "queue lookup failed"})
    }
    resp := echo.Map{"status": st.Status}
    if st.Status == "WAITING" {
        resp["position"] = st.Position
    }
    return c.JSON(http.StatusOK, resp)
}
