package model

import (
    "errors"
    "testing"
    "time"
)

func availableSeat() *Seat {
    return &Seat{ID: 1, ScheduleID: 10, SeatNumber: 7, Price: 10000, Status: SeatAvailable}
}

func TestSeat_ReserveConfirm(t *testing.T) {
    s := availableSeat()
    until := time.Now().UTC().Add(SeatHoldTTL)

    if err := s.Reserve(until); err != nil {
        t.Fatalf("Reserve on AVAILABLE seat: %v", err)
    }
    if s.Status != SeatReserved {
        t.Errorf("expected status %s, got %s", SeatReserved, s.Status)
    }
    if s.ReservedUntil == nil || !s.ReservedUntil.Equal(until) {
        t.Errorf("expected reserved_until %v, got %v", until, s.ReservedUntil)
    }

    if err := s.Confirm(); err != nil {
        t.Fatalf("Confirm on RESERVED seat: %v", err)
    }
    if s.Status != SeatSold {
        t.Errorf("expected status %s, got %s", SeatSold, s.Status)
    }
    if s.ReservedUntil != nil {
        t.Error("expected reserved_until cleared after confirm")
    }
}

func TestSeat_Release(t *testing.T) {
    s := availableSeat()
    if err := s.Reserve(time.Now().Add(time.Minute)); err != nil {
        t.Fatalf("Reserve: %v", err)
    }
    if err := s.Release(); err != nil {
        t.Fatalf("Release on RESERVED seat: %v", err)
    }
    if s.Status != SeatAvailable {
        t.Errorf("expected status %s, got %s", SeatAvailable, s.Status)
    }
    if s.ReservedUntil != nil {
        t.Error("expected reserved_until cleared after release")
    }
}

func TestSeat_IllegalTransitions(t *testing.T) {
    until := time.Now().Add(time.Minute)

    reserved := availableSeat()
    if err := reserved.Reserve(until); err != nil {
        t.Fatalf("Reserve: %v", err)
    }
    if err := reserved.Reserve(until); !errors.Is(err, ErrSeatNotAvailable) {
        t.Errorf("Reserve on RESERVED seat: expected ErrSeatNotAvailable, got %v", err)
    }

    sold := availableSeat()
    _ = sold.Reserve(until)
    _ = sold.Confirm()
    if err := sold.Reserve(until); !errors.Is(err, ErrSeatNotAvailable) {
        t.Errorf("Reserve on SOLD seat: expected ErrSeatNotAvailable, got %v", err)
    }
    if err := sold.Confirm(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Confirm on SOLD seat: expected ErrInvalidState, got %v", err)
    }
    if err := sold.Release(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Release on SOLD seat: expected ErrInvalidState, got %v", err)
    }

    fresh := availableSeat()
    if err := fresh.Confirm(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Confirm on AVAILABLE seat: expected ErrInvalidState, got %v", err)
    }
    if err := fresh.Release(); !errors.Is(err, ErrInvalidState) {
        t.Errorf("Release on AVAILABLE seat: expected ErrInvalidState, got %v", err)
    }
}

func TestSeat_OnlyOneWinnerPerSeat(t *testing.T) {
    // N callers race the same seat through the state machine; only the
    // first transition may succeed once rows are serialized.
    s := availableSeat()
    until := time.Now().Add(time.Minute)
    succeeded := 0
    for i := 0; i < 5; i++ {
        if err := s.Reserve(until); err == nil {
            succeeded++
        }
    }
    if succeeded != 1 {
        t.Errorf("expected exactly 1 successful reserve, got %d", succeeded)
    }
    if s.Status != SeatReserved {
        t.Errorf("expected status %s, got %s", SeatReserved, s.Status)
    }
}
