package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "concert-reservation/internal/model"
)

// ReservationRepo provides data access to the reservations and
// reservation_details tables. Reservations group together one or more
// seats for a schedule and user. Settlement and the expiry reaper both
// mutate these rows, so status changes go through a compare-and-swap on
// the version column: exactly one of the two racing writers commits. All
// timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new reservation and its detail rows within the scope
// of an existing transaction. It populates the generated IDs on the model
// and returns any error from the database. The caller must commit or
// rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations (user_id, schedule_id, status, total_amount, created_at, expires_at, version)
               VALUES (?, ?, ?, ?, ?, ?, 0)`
    result, err := tx.ExecContext(ctx, q,
        res.UserID, res.ScheduleID, string(res.Status), res.TotalAmount,
        res.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
        res.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    if len(res.Details) == 0 {
        return nil
    }
    // Bulk insert the detail lines in a single statement.
    query := `INSERT INTO reservation_details (reservation_id, seat_id, seat_number, price) VALUES `
    args := make([]interface{}, 0, len(res.Details)*4)
    for i := range res.Details {
        res.Details[i].ReservationID = res.ID
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, res.ID, res.Details[i].SeatID, res.Details[i].SeatNumber, res.Details[i].Price)
    }
    _, err = tx.ExecContext(ctx, query, args...)
    return err
}

// GetForUpdateTx loads a reservation and its detail rows with
// SELECT ... FOR UPDATE inside the supplied transaction, blocking
// concurrent settlement and expiry work on the same reservation until
// this transaction ends. ErrNotFound is returned when the row is absent.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Reservation, error) {
    const q = `SELECT id, user_id, schedule_id, status, total_amount, created_at, expires_at, version
               FROM reservations WHERE id = ? FOR UPDATE`
    res, err := scanReservation(tx.QueryRowContext(ctx, q, reservationID))
    if err != nil {
        return nil, err
    }
    details, err := r.detailsTx(ctx, tx, res.ID)
    if err != nil {
        return nil, err
    }
    res.Details = details
    return res, nil
}

// UpdateStatusTx persists a reservation's status with a compare-and-swap
// on the version it was loaded with. When no row matches, the other racer
// (settlement or the reaper) committed first and ErrConflict is returned;
// callers treat that as losing the race, not as a failure to escalate.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `UPDATE reservations SET status = ?, version = version + 1
               WHERE id = ? AND version = ?`
    result, err := tx.ExecContext(ctx, q, string(res.Status), res.ID, res.Version)
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
    res.Version++
    return nil
}

// ListExpiredPending returns up to limit PENDING reservations whose hold
// window elapsed at or before now, oldest first. Detail rows are loaded
// for each so the reaper can release the covered seats.
func (r *ReservationRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
    const q = `SELECT id, user_id, schedule_id, status, total_amount, created_at, expires_at, version
               FROM reservations
               WHERE status = 'PENDING' AND expires_at <= ?
               ORDER BY expires_at ASC
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []*model.Reservation
    for rows.Next() {
        res, err := scanReservationRows(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return out, nil
    }
    // Populate details for all reservations in a single query.
    ids := make([]interface{}, 0, len(out))
    placeholders := make([]string, 0, len(out))
    index := make(map[uint64]*model.Reservation, len(out))
    for _, res := range out {
        ids = append(ids, res.ID)
        placeholders = append(placeholders, "?")
        index[res.ID] = res
    }
    query := `SELECT id, reservation_id, seat_id, seat_number, price
              FROM reservation_details
              WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
              ORDER BY reservation_id, id`
    drows, err := r.db.QueryContext(ctx, query, ids...)
    if err != nil {
        return nil, err
    }
    defer drows.Close()
    for drows.Next() {
        var d model.ReservationDetail
        if err := drows.Scan(&d.ID, &d.ReservationID, &d.SeatID, &d.SeatNumber, &d.Price); err != nil {
            return nil, err
        }
        if res, ok := index[d.ReservationID]; ok {
            res.Details = append(res.Details, d)
        }
    }
    if err := drows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

func (r *ReservationRepo) detailsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]model.ReservationDetail, error) {
    const q = `SELECT id, reservation_id, seat_id, seat_number, price
               FROM reservation_details WHERE reservation_id = ? ORDER BY id`
    rows, err := tx.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var details []model.ReservationDetail
    for rows.Next() {
        var d model.ReservationDetail
        if err := rows.Scan(&d.ID, &d.ReservationID, &d.SeatID, &d.SeatNumber, &d.Price); err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return details, nil
}

type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanReservation(row *sql.Row) (*model.Reservation, error) {
    res, err := scanReservationFrom(row)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return res, err
}

func scanReservationRows(rows *sql.Rows) (*model.Reservation, error) {
    return scanReservationFrom(rows)
}

func scanReservationFrom(s rowScanner) (*model.Reservation, error) {
    var (
        res       model.Reservation
        status    string
        createdAt time.Time
        expiresAt time.Time
    )
    if err := s.Scan(&res.ID, &res.UserID, &res.ScheduleID, &status, &res.TotalAmount, &createdAt, &expiresAt, &res.Version); err != nil {
        return nil, err
    }
    res.Status = model.ReservationStatus(status)
    res.CreatedAt = createdAt.UTC()
    res.ExpiresAt = expiresAt.UTC()
    return &res, nil
}
