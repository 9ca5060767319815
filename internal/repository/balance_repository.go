package repository

import (
    "context"
    "database/sql"

    "concert-reservation/internal/model"
)

// BalanceRepo provides data access to the user_balances table. Settlement
// loads the row with a pessimistic lock and writes it back through a
// compare-and-swap, so the non-negative invariant holds under any number
// of concurrent debits.
type BalanceRepo struct {
    db *sql.DB
}

// NewBalanceRepo returns a new BalanceRepo bound to the given database.
func NewBalanceRepo(db *sql.DB) *BalanceRepo { return &BalanceRepo{db: db} }

// Get returns the balance row for a user, or ErrNotFound when none exists.
func (r *BalanceRepo) Get(ctx context.Context, userID uint64) (*model.UserBalance, error) {
    const q = `SELECT user_id, current_balance, total_charged, total_used, version
               FROM user_balances WHERE user_id = ?`
    return scanBalance(r.db.QueryRowContext(ctx, q, userID))
}

// GetForUpdateTx loads a user's balance with SELECT ... FOR UPDATE inside
// the supplied transaction, blocking concurrent debits on the same row
// until this transaction ends. ErrNotFound is returned when absent.
func (r *BalanceRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.UserBalance, error) {
    const q = `SELECT user_id, current_balance, total_charged, total_used, version
               FROM user_balances WHERE user_id = ? FOR UPDATE`
    return scanBalance(tx.QueryRowContext(ctx, q, userID))
}

// UpdateTx persists the balance with a compare-and-swap on the version it
// was loaded with. ErrConflict means a concurrent writer got there first
// and nothing was changed.
func (r *BalanceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.UserBalance) error {
    const q = `UPDATE user_balances
               SET current_balance = ?, total_charged = ?, total_used = ?, version = version + 1
               WHERE user_id = ? AND version = ?`
    result, err := tx.ExecContext(ctx, q, b.CurrentBalance, b.TotalCharged, b.TotalUsed, b.UserID, b.Version)
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
    b.Version++
    return nil
}

func scanBalance(row *sql.Row) (*model.UserBalance, error) {
    var b model.UserBalance
    err := row.Scan(&b.UserID, &b.CurrentBalance, &b.TotalCharged, &b.TotalUsed, &b.Version)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &b, nil
}
