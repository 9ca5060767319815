package repository

import (
    "context"
    "database/sql"
    "sort"
    "strings"

    "concert-reservation/internal/model"
)

// SeatRepo provides data access to the seats table. Seat rows are the unit
// of mutual exclusion for reservation work: readers that intend to mutate
// load them with LockByIDsTx so the check-then-reserve sequence is
// serialized against every concurrent caller touching the same rows, and
// every write passes a compare-and-swap on the version column.
type SeatRepo struct {
    db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// spanning multiple repositories.
func (r *SeatRepo) DB() *sql.DB { return r.db }

// LockByIDsTx loads the requested seats with SELECT ... FOR UPDATE inside
// the supplied transaction. Rows are locked in ascending ID order
// regardless of the caller's ordering, so two overlapping reservations
// always contend in the same order and cannot deadlock. Unknown IDs are
// simply absent from the result; callers compare sizes to detect them.
func (r *SeatRepo) LockByIDsTx(ctx context.Context, tx *sql.Tx, seatIDs []uint64) ([]*model.Seat, error) {
    if len(seatIDs) == 0 {
        return []*model.Seat{}, nil
    }
    sorted := make([]uint64, len(seatIDs))
    copy(sorted, seatIDs)
    sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
    placeholders := make([]string, 0, len(sorted))
    args := make([]interface{}, 0, len(sorted))
    for _, id := range sorted {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    query := `SELECT id, schedule_id, seat_number, price, status, reserved_until, version
              FROM seats WHERE id IN (` + strings.Join(placeholders, ",") + `)
              ORDER BY id FOR UPDATE`
    rows, err := tx.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var seats []*model.Seat
    for rows.Next() {
        s, err := scanSeat(rows)
        if err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// UpdateStateTx persists a seat's status, hold deadline and bumped version
// inside the supplied transaction. The write is guarded by a
// compare-and-swap on the version the seat was loaded with; when no row
// matches, another transaction won the race and ErrConflict is returned.
// On success the in-memory version is advanced to match the row.
func (r *SeatRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, s *model.Seat) error {
    const q = `UPDATE seats SET status = ?, reserved_until = ?, version = version + 1
               WHERE id = ? AND version = ?`
    var until interface{}
    if s.ReservedUntil != nil {
        until = s.ReservedUntil.UTC().Format("2006-01-02 15:04:05")
    }
    result, err := tx.ExecContext(ctx, q, string(s.Status), until, s.ID, s.Version)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    s.Version++
    return nil
}

func scanSeat(rows *sql.Rows) (*model.Seat, error) {
    var (
        s             model.Seat
        status        string
        reservedUntil sql.NullTime
    )
    if err := rows.Scan(&s.ID, &s.ScheduleID, &s.SeatNumber, &s.Price, &status, &reservedUntil, &s.Version); err != nil {
        return nil, err
    }
    s.Status = model.SeatStatus(status)
    if reservedUntil.Valid {
        t := reservedUntil.Time.UTC()
        s.ReservedUntil = &t
    }
    return &s, nil
}
