package model

import (
    "errors"
    "testing"
    "time"
)

func reservedSeats(t *testing.T, prices ...int64) []*Seat {
    t.Helper()
    until := time.Now().UTC().Add(SeatHoldTTL)
    seats := make([]*Seat, 0, len(prices))
    for i, p := range prices {
        s := &Seat{ID: uint64(i + 1), ScheduleID: 10, SeatNumber: uint32(i + 1), Price: p, Status: SeatAvailable}
        if err := s.Reserve(until); err != nil {
            t.Fatalf("Reserve seat %d: %v", s.ID, err)
        }
        seats = append(seats, s)
    }
    return seats
}

func TestNewReservation(t *testing.T) {
    seats := reservedSeats(t, 10000, 12000, 8000)

    r, err := NewReservation(42, 10, seats)
    if err != nil {
        t.Fatalf("NewReservation: %v", err)
    }
    if r.Status != ReservationPending {
        t.Errorf("expected status %s, got %s", ReservationPending, r.Status)
    }
    if r.TotalAmount != 30000 {
        t.Errorf("expected total 30000, got %d", r.TotalAmount)
    }
    if len(r.Details) != 3 {
        t.Fatalf("expected 3 details, got %d", len(r.Details))
    }
    for i, d := range r.Details {
        if d.SeatID != seats[i].ID || d.Price != seats[i].Price || d.SeatNumber != seats[i].SeatNumber {
            t.Errorf("detail %d does not match seat: %+v", i, d)
        }
    }
    if want := r.CreatedAt.Add(SeatHoldTTL); !r.ExpiresAt.Equal(want) {
        t.Errorf("expected expires_at %v, got %v", want, r.ExpiresAt)
    }
}

func TestNewReservation_Validation(t *testing.T) {
    if _, err := NewReservation(42, 10, nil); !errors.Is(err, ErrValidation) {
        t.Errorf("no seats: expected ErrValidation, got %v", err)
    }
    seats := reservedSeats(t, 10000)
    if _, err := NewReservation(0, 10, seats); !errors.Is(err, ErrValidation) {
        t.Errorf("zero user: expected ErrValidation, got %v", err)
    }
}

func TestReservation_Transitions(t *testing.T) {
    seats := reservedSeats(t, 10000)
    r, err := NewReservation(42, 10, seats)
    if err != nil {
        t.Fatalf("NewReservation: %v", err)
    }

    if err := r.Confirm(); err != nil {
        t.Fatalf("Confirm on PENDING: %v", err)
    }
    if r.Status != ReservationConfirmed {
        t.Errorf("expected status %s, got %s", ReservationConfirmed, r.Status)
    }

    // Terminal states reject every further transition. This is the core
    // of the settlement-versus-reaper race: the loser must not overwrite
    // the winner's outcome.
    if err := r.Expire(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Expire on CONFIRMED: expected ErrInvalidState, got %v", err)
    }
    if err := r.Cancel(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Cancel on CONFIRMED: expected ErrInvalidState, got %v", err)
    }
    if err := r.Confirm(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Confirm twice: expected ErrInvalidState, got %v", err)
    }
}

func TestReservation_ExpiredBy(t *testing.T) {
    seats := reservedSeats(t, 10000)
    r, err := NewReservation(42, 10, seats)
    if err != nil {
        t.Fatalf("NewReservation: %v", err)
    }
    if r.ExpiredBy(r.ExpiresAt.Add(-time.Second)) {
        t.Error("reservation inside the hold window reported expired")
    }
    if !r.ExpiredBy(r.ExpiresAt.Add(time.Second)) {
        t.Error("reservation past the hold window not reported expired")
    }
}

func TestReservation_SeatIDs(t *testing.T) {
    seats := reservedSeats(t, 10000, 12000)
    r, err := NewReservation(42, 10, seats)
    if err != nil {
        t.Fatalf("NewReservation: %v", err)
    }
    ids := r.SeatIDs()
    if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
        t.Errorf("unexpected seat ids: %v", ids)
    }
}
