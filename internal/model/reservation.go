package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "PENDING"   // awaiting payment
    ReservationConfirmed ReservationStatus = "CONFIRMED" // terminal; payment settled
    ReservationCancelled ReservationStatus = "CANCELLED" // terminal; cancelled by user or operator
    ReservationExpired   ReservationStatus = "EXPIRED"   // terminal; hold window elapsed unpaid
)

// Reservation groups one or more seats booked in a single transaction for
// a user. Terminal states (CONFIRMED, CANCELLED, EXPIRED) are immutable.
// The Version column guards the race between payment settlement and the
// expiry reaper: only one of the two may commit for a given reservation.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user who made the reservation.
//  ScheduleID  – concert schedule being reserved.
//  Status      – PENDING, CONFIRMED, CANCELLED or EXPIRED.
//  TotalAmount – sum of the seat prices, fixed at creation.
//  CreatedAt   – creation timestamp.
//  ExpiresAt   – CreatedAt plus the seat hold window.
//  Version     – optimistic concurrency guard.
//  Details     – one entry per reserved seat, fixed at creation.
type Reservation struct {
    ID          uint64              // reservations.id
    UserID      uint64              // reservations.user_id
    ScheduleID  uint64              // reservations.schedule_id
    Status      ReservationStatus   // reservations.status
    TotalAmount int64               // reservations.total_amount
    CreatedAt   time.Time           // reservations.created_at
    ExpiresAt   time.Time           // reservations.expires_at
    Version     uint64              // reservations.version
    Details     []ReservationDetail // reservation_details rows
}

// ReservationDetail records a single seat inside a reservation. The seat
// number and price are copied at creation time so the line item stays
// stable even if the seat row changes later.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reference to the reservation.
//  SeatID        – seat that has been reserved.
//  SeatNumber    – seat number copied from the seat row.
//  Price         – price for this seat copied from the seat row.
type ReservationDetail struct {
    ID            uint64 // reservation_details.id
    ReservationID uint64 // reservation_details.reservation_id
    SeatID        uint64 // reservation_details.seat_id
    SeatNumber    uint32 // reservation_details.seat_number
    Price         int64  // reservation_details.price
}

// NewReservation builds a PENDING reservation over the given seats. The
// seats must already have been transitioned to RESERVED by the caller
// inside the same database transaction. The total amount and the detail
// lines are fixed here and never recomputed.
func NewReservation(userID, scheduleID uint64, seats []*Seat) (*Reservation, error) {
    if userID == 0 || scheduleID == 0 || len(seats) == 0 {
        return nil, ErrValidation
    }
    now := time.Now().UTC()
    r := &Reservation{
        UserID:     userID,
        ScheduleID: scheduleID,
        Status:     ReservationPending,
        CreatedAt:  now,
        ExpiresAt:  now.Add(SeatHoldTTL),
    }
    for _, s := range seats {
        r.TotalAmount += s.Price
        r.Details = append(r.Details, ReservationDetail{
            SeatID:     s.ID,
            SeatNumber: s.SeatNumber,
            Price:      s.Price,
        })
    }
    return r, nil
}

// Confirm settles a PENDING reservation. Any other starting state,
// including one concurrently expired by the reaper, returns
// ErrInvalidState so the payment path can surface the lost race.
func (r *Reservation) Confirm() error {
    if r.Status != ReservationPending {
        return ErrInvalidState
    }
    r.Status = ReservationConfirmed
    return nil
}

// Expire moves a PENDING reservation to EXPIRED when its hold window has
// elapsed unpaid.
func (r *Reservation) Expire() error {
    if r.Status != ReservationPending {
        return ErrInvalidState
    }
    r.Status = ReservationExpired
    return nil
}

// Cancel moves a PENDING reservation to CANCELLED.
func (r *Reservation) Cancel() error {
    if r.Status != ReservationPending {
        return ErrInvalidState
    }
    r.Status = ReservationCancelled
    return nil
}

// ExpiredBy reports whether the hold window elapsed at or before now.
func (r *Reservation) ExpiredBy(now time.Time) bool {
    return !r.ExpiresAt.After(now)
}

// SeatIDs returns the seat IDs covered by the reservation in detail order.
func (r *Reservation) SeatIDs() []uint64 {
    ids := make([]uint64, 0, len(r.Details))
    for _, d := range r.Details {
        ids = append(ids, d.SeatID)
    }
    return ids
}
