// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentCompletedEvent is published after a payment transaction has
// durably committed. It carries enough information for downstream
// consumers to log, rank or notify without querying the primary database.
type PaymentCompletedEvent struct {
    PaymentID     string   `json:"payment_id"`
    ReservationID uint64   `json:"reservation_id"`
    UserID        uint64   `json:"user_id"`
    ScheduleID    uint64   `json:"schedule_id"`
    SeatNumbers   []uint32 `json:"seat_numbers"`
    Amount        int64    `json:"amount"`
    PaidAt        string   `json:"paid_at"`
}
