package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "concert-reservation/internal/model"
    "concert-reservation/internal/repository"
    "concert-reservation/internal/service"
)

// ReservationHandler exposes multi-seat reservation for admitted users.
// The route is gated by the queue token and active-window middleware, so
// by the time a request reaches here the caller has been admitted.
type ReservationHandler struct {
    Reservations *service.ReservationService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(reservations *service.ReservationService) *ReservationHandler {
    if reservations == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Reservations: reservations}
}

// Create handles POST /v1/reservations. The request body must contain a
// positive "schedule_id" and a non-empty "seat_ids" array. On success it
// returns 201 with the PENDING reservation and its expiry. Error mapping:
// 400 validation, 404 unknown seat, 409 seat no longer available.
func (h *ReservationHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        ScheduleID uint64   `json:"schedule_id"`
        SeatIDs    []uint64 `json:"seat_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ScheduleID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id is required"})
    }
    res, err := h.Reservations.CreateReservation(c.Request().Context(), userID, body.ScheduleID, body.SeatIDs)
    if err != nil {
        switch {
        case errors.Is(err, model.ErrValidation):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
        case errors.Is(err, repository.ErrNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
        case errors.Is(err, model.ErrSeatNotAvailable):
            return c.JSON(http.StatusConflict, echo.Map{"error": "seat_not_available"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }
    seats := make([]echo.Map, 0, len(res.Details))
    for _, d := range res.Details {
        seats = append(seats, echo.Map{
            "seat_id":     d.SeatID,
            "seat_number": d.SeatNumber,
            "price":       d.Price,
        })
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "reservation_id": res.ID,
        "schedule_id":    res.ScheduleID,
        "status":         res.Status,
        "total_amount":   res.TotalAmount,
        "expires_at":     res.ExpiresAt.Format(time.RFC3339),
        "seats":          seats,
    })
}
