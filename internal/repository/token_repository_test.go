package repository

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"

    "concert-reservation/internal/model"
)

func newTokenRepoFixture(t *testing.T) (*TokenRepo, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    t.Cleanup(func() { _ = db.Close() })
    return NewTokenRepo(db), mock
}

func TestTokenRepo_Create(t *testing.T) {
    repo, mock := newTokenRepoFixture(t)

    tok, err := model.NewToken(42, "signed-value")
    if err != nil {
        t.Fatalf("NewToken: %v", err)
    }
    mock.ExpectExec(`INSERT INTO tokens`).
        WithArgs("signed-value", 42, "WAITING", sqlmock.AnyArg(), 42).
        WillReturnResult(sqlmock.NewResult(7, 1))

    if err := repo.Create(context.Background(), tok); err != nil {
        t.Fatalf("Create: %v", err)
    }
    if tok.ID != 7 {
        t.Errorf("expected generated id 7, got %d", tok.ID)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestTokenRepo_CreateConflict(t *testing.T) {
    repo, mock := newTokenRepoFixture(t)

    tok, err := model.NewToken(42, "signed-value")
    if err != nil {
        t.Fatalf("NewToken: %v", err)
    }
    // The conditional insert matched an existing non-EXPIRED token and
    // wrote nothing.
    mock.ExpectExec(`INSERT INTO tokens`).
        WillReturnResult(sqlmock.NewResult(0, 0))

    if err := repo.Create(context.Background(), tok); !errors.Is(err, ErrConflict) {
        t.Errorf("expected ErrConflict, got %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestTokenRepo_ExpireStale(t *testing.T) {
    repo, mock := newTokenRepoFixture(t)
    now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

    mock.ExpectExec(`UPDATE tokens SET status = 'EXPIRED'`).
        WithArgs("2026-03-04 12:00:00").
        WillReturnResult(sqlmock.NewResult(0, 3))

    n, err := repo.ExpireStale(context.Background(), now)
    if err != nil {
        t.Fatalf("ExpireStale: %v", err)
    }
    if n != 3 {
        t.Errorf("expected 3 rows expired, got %d", n)
    }

    // Nothing elapsed: the update is a no-op and safe to repeat.
    mock.ExpectExec(`UPDATE tokens SET status = 'EXPIRED'`).
        WithArgs("2026-03-04 12:00:00").
        WillReturnResult(sqlmock.NewResult(0, 0))

    n, err = repo.ExpireStale(context.Background(), now)
    if err != nil {
        t.Fatalf("ExpireStale repeat: %v", err)
    }
    if n != 0 {
        t.Errorf("expected no rows on repeat, got %d", n)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestTokenRepo_FindCurrentByUser(t *testing.T) {
    repo, mock := newTokenRepoFixture(t)
    created := time.Now().UTC().Truncate(time.Second)
    expires := created.Add(10 * time.Minute)

    mock.ExpectQuery(`FROM tokens WHERE user_id = \? AND status <> 'EXPIRED'`).
        WithArgs(42).
        WillReturnRows(sqlmock.NewRows([]string{"id", "value", "user_id", "status", "created_at", "activated_at", "expires_at"}).
            AddRow(7, "signed-value", 42, "ACTIVE", created, created, expires))

    tok, err := repo.FindCurrentByUser(context.Background(), 42)
    if err != nil {
        t.Fatalf("FindCurrentByUser: %v", err)
    }
    if tok.ID != 7 || tok.Status != model.TokenActive {
        t.Errorf("unexpected token: %+v", tok)
    }
    if tok.ExpiresAt == nil || !tok.ExpiresAt.Equal(expires) {
        t.Errorf("expected expires_at %v, got %v", expires, tok.ExpiresAt)
    }

    mock.ExpectQuery(`FROM tokens WHERE user_id = \? AND status <> 'EXPIRED'`).
        WithArgs(99).
        WillReturnRows(sqlmock.NewRows([]string{"id", "value", "user_id", "status", "created_at", "activated_at", "expires_at"}))

    if _, err := repo.FindCurrentByUser(context.Background(), 99); !errors.Is(err, ErrNotFound) {
        t.Errorf("expected ErrNotFound, got %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}
