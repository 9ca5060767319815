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

// PaymentHandler exposes payment settlement for admitted users.
type PaymentHandler struct {
    Payments *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
    if payments == nil {
        panic("nil service passed to NewPaymentHandler")
    }
    return &PaymentHandler{Payments: payments}
}

// Create handles POST /v1/payments. The request body must contain a
// positive "reservation_id"; the paying user comes from the queue token.
// Error mapping: 404 unknown reservation, 403 someone else's reservation,
// 400 insufficient funds, 409 reservation no longer payable (expired or
// already settled).
func (h *PaymentHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        ReservationID uint64 `json:"reservation_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ReservationID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_id is required"})
    }
    payment, err := h.Payments.ProcessPayment(c.Request().Context(), body.ReservationID, userID)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
        case errors.Is(err, repository.ErrForbidden):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        case errors.Is(err, model.ErrInsufficientFunds):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient_funds"})
        case errors.Is(err, model.ErrInvalidState), errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": "reservation_not_payable"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "payment_id":     payment.ID,
        "reservation_id": payment.ReservationID,
        "amount":         payment.Amount,
        "status":         payment.Status,
        "paid_at":        payment.PaidAt.Format(time.RFC3339),
    })
}
