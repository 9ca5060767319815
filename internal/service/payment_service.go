package service

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/model"
    "concert-reservation/internal/queue"
    "concert-reservation/internal/repository"
)

// PaymentHook is invoked after a settlement transaction has durably
// committed, outside the transaction boundary. Hooks must be best-effort:
// whatever they do can no longer affect the settlement.
type PaymentHook func(ctx context.Context, event queue.PaymentCompletedEvent)

// PaymentService settles pending reservations: it debits the balance,
// confirms the reservation and its seats and records a payment, all in
// one atomic unit. Registered hooks (ranking update, bus publish) run
// strictly after commit so no consumer is ever notified of a settlement
// that might still roll back.
type PaymentService struct {
    db           *sql.DB
    reservations *repository.ReservationRepo
    seats        *repository.SeatRepo
    balances     *repository.BalanceRepo
    payments     *repository.PaymentRepo
    hooks        []PaymentHook
    log          *zap.Logger
}

// NewPaymentService constructs a PaymentService. All repository
// dependencies must be non-nil.
func NewPaymentService(db *sql.DB, reservations *repository.ReservationRepo, seats *repository.SeatRepo, balances *repository.BalanceRepo, payments *repository.PaymentRepo, log *zap.Logger) *PaymentService {
    if db == nil || reservations == nil || seats == nil || balances == nil || payments == nil {
        panic("nil dependency passed to NewPaymentService")
    }
    return &PaymentService{
        db:           db,
        reservations: reservations,
        seats:        seats,
        balances:     balances,
        payments:     payments,
        log:          log,
    }
}

// RegisterHook appends a post-commit callback. Hooks run in registration
// order on the request goroutine after a successful settlement.
func (s *PaymentService) RegisterHook(h PaymentHook) {
    s.hooks = append(s.hooks, h)
}

// ProcessPayment settles the reservation for the calling user.
//
// Errors: repository.ErrNotFound when the reservation does not exist,
// repository.ErrForbidden when it belongs to a different user,
// model.ErrInsufficientFunds when the balance cannot cover the total,
// model.ErrInvalidState when the reservation is no longer PENDING (for
// example the expiry reaper won the race). Any failure rolls back every
// step; no partial debit or partial seat confirmation is ever observable.
func (s *PaymentService) ProcessPayment(ctx context.Context, reservationID, userID uint64) (*model.Payment, error) {
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

    res, err := s.reservations.GetForUpdateTx(ctx, tx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.UserID != userID {
        return nil, fmt.Errorf("reservation %d: %w", reservationID, repository.ErrForbidden)
    }

    seats, err := s.seats.LockByIDsTx(ctx, tx, res.SeatIDs())
    if err != nil {
        return nil, err
    }
    if len(seats) != len(res.Details) {
        return nil, fmt.Errorf("reservation %d seats missing: %w", reservationID, repository.ErrNotFound)
    }

    balance, err := s.balances.GetForUpdateTx(ctx, tx, userID)
    if err != nil {
        return nil, err
    }
    if err := balance.Debit(res.TotalAmount); err != nil {
        return nil, err
    }
    if err := res.Confirm(); err != nil {
        return nil, err
    }
    for _, seat := range seats {
        if err := seat.Confirm(); err != nil {
            return nil, fmt.Errorf("seat %d: %w", seat.ID, err)
        }
    }

    if err := s.balances.UpdateTx(ctx, tx, balance); err != nil {
        return nil, err
    }
    if err := s.reservations.UpdateStatusTx(ctx, tx, res); err != nil {
        return nil, err
    }
    for _, seat := range seats {
        if err := s.seats.UpdateStateTx(ctx, tx, seat); err != nil {
            return nil, err
        }
    }

    payment, err := model.NewPayment(res.ID, userID, res.TotalAmount)
    if err != nil {
        return nil, err
    }
    if err := s.payments.CreateTx(ctx, tx, payment); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    s.log.Info("payment settled",
        zap.String("payment_id", payment.ID),
        zap.Uint64("reservation_id", res.ID),
        zap.Uint64("user_id", userID),
        zap.Int64("amount", payment.Amount))

    event := queue.PaymentCompletedEvent{
        PaymentID:     payment.ID,
        ReservationID: res.ID,
        UserID:        userID,
        ScheduleID:    res.ScheduleID,
        Amount:        payment.Amount,
        PaidAt:        payment.PaidAt.Format(time.RFC3339),
    }
    for _, d := range res.Details {
        event.SeatNumbers = append(event.SeatNumbers, d.SeatNumber)
    }
    for _, h := range s.hooks {
        h(ctx, event)
    }
    return payment, nil
}
