package utils // package utils provides helpers for queue token creation and parsing

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
    "github.com/google/uuid"
)

// ErrInvalidToken is returned when a queue token fails signature or
// claim validation.
var ErrInvalidToken = errors.New("invalid queue token")

// QueueClaims is what a parsed queue token carries: the user it admits
// and the token's own identifier.
type QueueClaims struct {
    UserID  uint64
    TokenID string
}

// NewQueueToken builds and signs an HS256 JWT that serves as the opaque
// queue token value. The subject is the user ID and jti a fresh UUID so
// every enqueue produces a distinct value. The token intentionally has no
// exp claim: admission expiry is tracked by the active set and the tokens
// table, not by the JWT itself.
func NewQueueToken(secret string, userID uint64) (string, error) {
    claims := jwt.MapClaims{
        "sub": strconv.FormatUint(userID, 10),
        "jti": uuid.NewString(),
        "iat": time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return t.SignedString([]byte(secret))
}

// ParseQueueToken validates the signature and extracts the claims.
func ParseQueueToken(secret, raw string) (QueueClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return QueueClaims{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return QueueClaims{}, ErrInvalidToken
    }
    sub, _ := claims["sub"].(string)
    userID, err := strconv.ParseUint(sub, 10, 64)
    if err != nil || userID == 0 {
        return QueueClaims{}, ErrInvalidToken
    }
    jti, _ := claims["jti"].(string)
    return QueueClaims{UserID: userID, TokenID: jti}, nil
}
