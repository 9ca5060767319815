package repository

import (
    "context"
    "database/sql"
    "time"

    "concert-reservation/internal/model"
)

// PaymentRepo provides data access to the payments table. Payment rows
// are written once inside the settlement transaction and never updated;
// cancellations insert a new terminal record instead of mutating history.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts a payment record within the scope of an existing
// transaction. The caller must commit or rollback the transaction.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
    const q = `INSERT INTO payments (id, reservation_id, user_id, amount, status, paid_at, failure_reason)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    _, err := tx.ExecContext(ctx, q,
        p.ID, p.ReservationID, p.UserID, p.Amount, string(p.Status),
        p.PaidAt.UTC().Format("2006-01-02 15:04:05"), p.FailureReason)
    return err
}

// GetByID returns a payment by its UUID, or ErrNotFound when absent.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
    const q = `SELECT id, reservation_id, user_id, amount, status, paid_at, failure_reason
               FROM payments WHERE id = ?`
    var (
        p      model.Payment
        status string
        paidAt time.Time
        reason sql.NullString
    )
    err := r.db.QueryRowContext(ctx, q, id).Scan(
        &p.ID, &p.ReservationID, &p.UserID, &p.Amount, &status, &paidAt, &reason)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    p.Status = model.PaymentStatus(status)
    p.PaidAt = paidAt.UTC()
    if reason.Valid {
        p.FailureReason = reason.String
    }
    return &p, nil
}
