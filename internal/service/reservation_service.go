// Package service contains the transactional orchestration of the
// reservation core: multi-seat reservation, payment settlement, admission
// scheduling and the post-commit event pipeline. Services own their
// database transactions; repositories only provide ...Tx building blocks.
package service

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/model"
    "concert-reservation/internal/repository"
)

// ReservationService creates multi-seat reservations under row-level
// serialization. Of N concurrent callers racing for overlapping seat
// sets, exactly the callers whose whole requested set was AVAILABLE at
// lock time succeed; everyone else fails cleanly with no partial
// reservation ever visible.
type ReservationService struct {
    db           *sql.DB
    seats        *repository.SeatRepo
    reservations *repository.ReservationRepo
    log          *zap.Logger
}

// NewReservationService constructs a ReservationService. All dependencies
// must be non-nil.
func NewReservationService(db *sql.DB, seats *repository.SeatRepo, reservations *repository.ReservationRepo, log *zap.Logger) *ReservationService {
    if db == nil || seats == nil || reservations == nil {
        panic("nil dependency passed to NewReservationService")
    }
    return &ReservationService{db: db, seats: seats, reservations: reservations, log: log}
}

// CreateReservation reserves the requested seats for the user in a single
// transaction. The seats are loaded FOR UPDATE so the availability check
// and the state transitions are serialized against every concurrent
// caller touching any of the same rows.
//
// Errors: model.ErrValidation for an empty seat list,
// repository.ErrNotFound when any requested seat does not exist in the
// schedule, model.ErrSeatNotAvailable when any seat is not AVAILABLE.
// Any failure rolls back the whole transaction.
func (s *ReservationService) CreateReservation(ctx context.Context, userID, scheduleID uint64, seatIDs []uint64) (*model.Reservation, error) {
    if len(seatIDs) == 0 {
        return nil, fmt.Errorf("empty seat list: %w", model.ErrValidation)
    }
    // Deduplicate so a repeated ID cannot make the size check lie.
    unique := make([]uint64, 0, len(seatIDs))
    seen := make(map[uint64]struct{}, len(seatIDs))
    for _, id := range seatIDs {
        if id == 0 {
            return nil, fmt.Errorf("zero seat id: %w", model.ErrValidation)
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            unique = append(unique, id)
        }
    }

    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    seats, err := s.seats.LockByIDsTx(ctx, tx, unique)
    if err != nil {
        return nil, err
    }
    if len(seats) != len(unique) {
        return nil, fmt.Errorf("unknown seat in request: %w", repository.ErrNotFound)
    }
    for _, seat := range seats {
        if seat.ScheduleID != scheduleID {
            return nil, fmt.Errorf("seat %d not in schedule %d: %w", seat.ID, scheduleID, repository.ErrNotFound)
        }
    }

    holdUntil := time.Now().UTC().Add(model.SeatHoldTTL)
    for _, seat := range seats {
        if err := seat.Reserve(holdUntil); err != nil {
            return nil, fmt.Errorf("seat %d: %w", seat.ID, err)
        }
        if err := s.seats.UpdateStateTx(ctx, tx, seat); err != nil {
            return nil, err
        }
    }

    res, err := model.NewReservation(userID, scheduleID, seats)
    if err != nil {
        return nil, err
    }
    if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    s.log.Info("reservation created",
        zap.Uint64("reservation_id", res.ID),
        zap.Uint64("user_id", userID),
        zap.Int("seats", len(seats)),
        zap.Int64("total_amount", res.TotalAmount))
    return res, nil
}
