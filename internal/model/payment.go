package model

import (
    "time"

    "github.com/google/uuid"
)

// PaymentStatus enumerates the terminal outcomes of a settlement attempt.
type PaymentStatus string

const (
    PaymentCompleted PaymentStatus = "COMPLETED"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentCancelled PaymentStatus = "CANCELLED"
)

// Payment is the immutable record of a settlement. Exactly one COMPLETED
// payment is created per successful settlement; cancelling later produces
// a new terminal record rather than mutating history.
//
// Fields:
//  ID            – UUID primary key.
//  ReservationID – reservation that was settled.
//  UserID        – user who paid.
//  Amount        – amount debited, equal to the reservation total.
//  Status        – COMPLETED, FAILED or CANCELLED.
//  PaidAt        – settlement timestamp.
//  FailureReason – populated only on FAILED records.
type Payment struct {
    ID            string        // payments.id
    ReservationID uint64        // payments.reservation_id
    UserID        uint64        // payments.user_id
    Amount        int64         // payments.amount
    Status        PaymentStatus // payments.status
    PaidAt        time.Time     // payments.paid_at
    FailureReason string        // payments.failure_reason
}

// NewPayment builds a COMPLETED payment record for a settled reservation.
func NewPayment(reservationID, userID uint64, amount int64) (*Payment, error) {
    if reservationID == 0 || userID == 0 || amount <= 0 {
        return nil, ErrValidation
    }
    return &Payment{
        ID:            uuid.NewString(),
        ReservationID: reservationID,
        UserID:        userID,
        Amount:        amount,
        Status:        PaymentCompleted,
        PaidAt:        time.Now().UTC(),
    }, nil
}
