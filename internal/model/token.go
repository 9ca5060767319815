package model

import "time"

// TokenStatus enumerates the admission states a queue token moves through.
type TokenStatus string

const (
    TokenWaiting TokenStatus = "WAITING" // enqueued, not yet admitted
    TokenActive  TokenStatus = "ACTIVE"  // admitted into the active window
    TokenExpired TokenStatus = "EXPIRED" // terminal; active window elapsed or explicitly expired
)

// Token is a per-user admission ticket for the waiting queue. A user holds
// at most one non-EXPIRED token at any time; the queue's atomic enqueue
// check and the token repository's conditional insert both enforce this.
// Once EXPIRED a token is immutable.
//
// Fields:
//  ID          – primary key identifier.
//  Value       – opaque signed value returned to the client.
//  UserID      – user the token admits.
//  Status      – WAITING, ACTIVE or EXPIRED.
//  CreatedAt   – when the user was enqueued.
//  ActivatedAt – when the scheduler promoted the token (nil while WAITING).
//  ExpiresAt   – end of the active window (nil while WAITING).
type Token struct {
    ID          uint64      // tokens.id
    Value       string      // tokens.value
    UserID      uint64      // tokens.user_id
    Status      TokenStatus // tokens.status
    CreatedAt   time.Time   // tokens.created_at
    ActivatedAt *time.Time  // tokens.activated_at (nullable)
    ExpiresAt   *time.Time  // tokens.expires_at (nullable)
}

// NewToken builds a WAITING token for a freshly enqueued user. The value
// must be non-empty; it is the opaque string handed back to the client.
func NewToken(userID uint64, value string) (*Token, error) {
    if userID == 0 || value == "" {
        return nil, ErrValidation
    }
    return &Token{
        Value:     value,
        UserID:    userID,
        Status:    TokenWaiting,
        CreatedAt: time.Now().UTC(),
    }, nil
}

// RehydrateToken rebuilds a token from stored columns without validating
// invariants. Only the persistence layer may call it; storage is trusted.
func RehydrateToken(id uint64, value string, userID uint64, status TokenStatus, createdAt time.Time, activatedAt, expiresAt *time.Time) *Token {
    return &Token{
        ID:          id,
        Value:       value,
        UserID:      userID,
        Status:      status,
        CreatedAt:   createdAt,
        ActivatedAt: activatedAt,
        ExpiresAt:   expiresAt,
    }
}

// Activate promotes a WAITING token into the active window until expiresAt.
// Any other starting state is rejected with ErrInvalidState.
func (t *Token) Activate(expiresAt time.Time) error {
    if t.Status != TokenWaiting {
        return ErrInvalidState
    }
    now := time.Now().UTC()
    exp := expiresAt.UTC()
    t.Status = TokenActive
    t.ActivatedAt = &now
    t.ExpiresAt = &exp
    return nil
}

// Expire moves a non-terminal token to EXPIRED. Expiring an already
// EXPIRED token is rejected; terminal states are immutable.
func (t *Token) Expire() error {
    if t.Status == TokenExpired {
        return ErrInvalidState
    }
    t.Status = TokenExpired
    return nil
}
