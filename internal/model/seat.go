package model

import "time"

// SeatHoldTTL is how long a PENDING reservation keeps its seats before the
// expiry reaper may reclaim them.
const SeatHoldTTL = 10 * time.Minute

// SeatStatus enumerates the lifecycle states of a seat.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "AVAILABLE" // free to reserve
    SeatReserved  SeatStatus = "RESERVED"  // held by a pending reservation
    SeatSold      SeatStatus = "SOLD"      // terminal; payment settled
)

// Seat describes a sellable seat in a concert schedule together with its
// state machine. Only AVAILABLE→RESERVED→SOLD and RESERVED→AVAILABLE are
// legal transitions; everything else raises ErrInvalidState. The Version
// column guards concurrent writers: every persisted mutation must pass a
// compare-and-swap on it.
//
// Fields:
//  ID            – primary key identifier.
//  ScheduleID    – concert schedule this seat belongs to.
//  SeatNumber    – number of the seat within the schedule.
//  Price         – price of the seat.
//  Status        – AVAILABLE, RESERVED or SOLD.
//  ReservedUntil – end of the hold window (nil unless RESERVED).
//  Version       – optimistic concurrency guard.
type Seat struct {
    ID            uint64     // seats.id
    ScheduleID    uint64     // seats.schedule_id
    SeatNumber    uint32     // seats.seat_number
    Price         int64      // seats.price
    Status        SeatStatus // seats.status
    ReservedUntil *time.Time // seats.reserved_until (nullable)
    Version       uint64     // seats.version
}

// Reserve moves an AVAILABLE seat to RESERVED and records the hold
// deadline. Reserving a seat in any other state returns
// ErrSeatNotAvailable so callers can fail the whole reservation cleanly.
func (s *Seat) Reserve(until time.Time) error {
    if s.Status != SeatAvailable {
        return ErrSeatNotAvailable
    }
    u := until.UTC()
    s.Status = SeatReserved
    s.ReservedUntil = &u
    return nil
}

// Confirm finalises a RESERVED seat as SOLD when its reservation settles.
func (s *Seat) Confirm() error {
    if s.Status != SeatReserved {
        return ErrInvalidState
    }
    s.Status = SeatSold
    s.ReservedUntil = nil
    return nil
}

// Release returns a RESERVED seat to AVAILABLE, used when the hold expired
// without payment.
func (s *Seat) Release() error {
    if s.Status != SeatReserved {
        return ErrInvalidState
    }
    s.Status = SeatAvailable
    s.ReservedUntil = nil
    return nil
}
