package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "concert-reservation/internal/model"
)

// TokenRepo provides data access to the tokens table, the durable side of
// the admission queue. The Redis queue structures are the ordering
// authority; this table records each token's lifecycle for status lookups
// and audit. All timestamps are stored in UTC.
type TokenRepo struct {
    db *sql.DB
}

// NewTokenRepo returns a new TokenRepo bound to the given database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// spanning multiple repositories.
func (r *TokenRepo) DB() *sql.DB { return r.db }

// Create inserts a WAITING token for a user, enforcing the invariant that
// at most one non-EXPIRED token exists per user. The insert is conditional
// on no such row existing; when one does, ErrConflict is returned and
// nothing is written. The generated ID is populated on the model.
func (r *TokenRepo) Create(ctx context.Context, t *model.Token) error {
    const q = `INSERT INTO tokens (value, user_id, status, created_at)
               SELECT ?, ?, ?, ?
               WHERE NOT EXISTS (
                   SELECT 1 FROM tokens WHERE user_id = ? AND status <> 'EXPIRED'
               )`
    result, err := r.db.ExecContext(ctx, q,
        t.Value, t.UserID, string(t.Status), t.CreatedAt.UTC().Format("2006-01-02 15:04:05"), t.UserID)
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
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}

// ActivateBatchTx transitions the WAITING tokens of the given users to
// ACTIVE with the supplied expiry, inside an existing transaction. It
// returns the number of rows updated; callers compare it against the
// promoted batch size to detect tokens that were not in WAITING state.
// Passing an empty slice has no effect and returns zero.
func (r *TokenRepo) ActivateBatchTx(ctx context.Context, tx *sql.Tx, userIDs []uint64, expiresAt time.Time) (int64, error) {
    if len(userIDs) == 0 {
        return 0, nil
    }
    now := time.Now().UTC().Format("2006-01-02 15:04:05")
    exp := expiresAt.UTC().Format("2006-01-02 15:04:05")
    placeholders := make([]string, 0, len(userIDs))
    args := []interface{}{now, exp}
    for _, id := range userIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    query := `UPDATE tokens SET status = 'ACTIVE', activated_at = ?, expires_at = ?
              WHERE user_id IN (` + strings.Join(placeholders, ",") + `) AND status = 'WAITING'`
    result, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}

// ExpireStale moves every ACTIVE token whose window elapsed at or before
// now to EXPIRED and returns the number of rows changed. The predicate is
// the table itself, not a caller-supplied ID list, so the call is
// idempotent and a pass that fails is simply retried in full later; a
// transient error can never strand a token in ACTIVE.
func (r *TokenRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
    const q = `UPDATE tokens SET status = 'EXPIRED'
               WHERE status = 'ACTIVE' AND expires_at <= ?`
    result, err := r.db.ExecContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"))
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}

// FindCurrentByUser returns the user's non-EXPIRED token, or ErrNotFound
// when none exists.
func (r *TokenRepo) FindCurrentByUser(ctx context.Context, userID uint64) (*model.Token, error) {
    const q = `SELECT id, value, user_id, status, created_at, activated_at, expires_at
               FROM tokens WHERE user_id = ? AND status <> 'EXPIRED'`
    return r.scanOne(r.db.QueryRowContext(ctx, q, userID))
}

func (r *TokenRepo) scanOne(row *sql.Row) (*model.Token, error) {
    var (
        id          uint64
        value       string
        userID      uint64
        status      string
        createdAt   time.Time
        activatedAt sql.NullTime
        expiresAt   sql.NullTime
    )
    err := row.Scan(&id, &value, &userID, &status, &createdAt, &activatedAt, &expiresAt)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    var act, exp *time.Time
    if activatedAt.Valid {
        t := activatedAt.Time.UTC()
        act = &t
    }
    if expiresAt.Valid {
        t := expiresAt.Time.UTC()
        exp = &t
    }
    return model.RehydrateToken(id, value, userID, model.TokenStatus(status), createdAt.UTC(), act, exp), nil
}
