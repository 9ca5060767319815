package worker

import (
    "context"
    "database/sql"
    "errors"
    "sync"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/model"
    "concert-reservation/internal/repository"
)

// reapBatchSize bounds how many stale reservations one sweep will touch.
const reapBatchSize = 500

// Reaper periodically reclaims seats of PENDING reservations whose hold
// window elapsed unpaid. Each reservation is expired in its own
// transaction guarded by the row versions, so a concurrent settlement
// wins or loses cleanly: exactly one of {CONFIRMED + SOLD seats} or
// {EXPIRED + AVAILABLE seats} ends up durable, never a mix. Any number of
// instances may sweep concurrently; losers of a row race skip silently.
type Reaper struct {
    db           *sql.DB
    reservations *repository.ReservationRepo
    seats        *repository.SeatRepo
    interval     time.Duration
    log          *zap.Logger

    stop chan struct{}
    wg   sync.WaitGroup
}

// NewReaper constructs the reaper with its sweep interval.
func NewReaper(db *sql.DB, reservations *repository.ReservationRepo, seats *repository.SeatRepo, interval time.Duration, log *zap.Logger) *Reaper {
    return &Reaper{
        db:           db,
        reservations: reservations,
        seats:        seats,
        interval:     interval,
        log:          log,
        stop:         make(chan struct{}),
    }
}

// Start begins the sweep loop in a background goroutine.
func (r *Reaper) Start() {
    r.wg.Add(1)
    go r.run()
}

// Stop shuts the loop down and waits for the current sweep to finish.
func (r *Reaper) Stop() {
    close(r.stop)
    r.wg.Wait()
}

func (r *Reaper) run() {
    defer r.wg.Done()
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    for {
        select {
        case <-r.stop:
            return
        case <-ticker.C:
            if err := r.RunOnce(context.Background()); err != nil {
                r.log.Error("reaper sweep failed", zap.Error(err))
            }
        }
    }
}

// RunOnce performs a single sweep and returns the first listing error.
// Per-reservation failures are logged and do not stop the sweep.
func (r *Reaper) RunOnce(ctx context.Context) error {
    stale, err := r.reservations.ListExpiredPending(ctx, time.Now().UTC(), reapBatchSize)
    if err != nil {
        return err
    }
    if len(stale) == 0 {
        return nil
    }
    expired := 0
    for _, res := range stale {
        switch err := r.expireOne(ctx, res); {
        case err == nil:
            expired++
        case errors.Is(err, repository.ErrConflict):
            // Settlement (or another reaper) won the race for this row.
        default:
            r.log.Warn("failed to expire reservation",
                zap.Uint64("reservation_id", res.ID), zap.Error(err))
        }
    }
    if expired > 0 {
        r.log.Info("stale reservations expired", zap.Int("count", expired))
    }
    return nil
}

// expireOne transitions a single reservation PENDING→EXPIRED and releases
// its seats in one atomic unit.
func (r *Reaper) expireOne(ctx context.Context, listed *model.Reservation) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Re-load under lock: the listing ran outside any transaction and the
    // reservation may have settled in the meantime.
    res, err := r.reservations.GetForUpdateTx(ctx, tx, listed.ID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return repository.ErrConflict
        }
        return err
    }
    if res.Status != model.ReservationPending || !res.ExpiredBy(time.Now().UTC()) {
        return repository.ErrConflict
    }
    if err := res.Expire(); err != nil {
        return err
    }

    seats, err := r.seats.LockByIDsTx(ctx, tx, res.SeatIDs())
    if err != nil {
        return err
    }
    for _, seat := range seats {
        if seat.Status != model.SeatReserved {
            continue
        }
        if err := seat.Release(); err != nil {
            return err
        }
        if err := r.seats.UpdateStateTx(ctx, tx, seat); err != nil {
            return err
        }
    }
    if err := r.reservations.UpdateStatusTx(ctx, tx, res); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
