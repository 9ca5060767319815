package worker

import (
    "context"
    "database/sql"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "go.uber.org/zap"

    "concert-reservation/internal/repository"
)

var (
    reservationColumns = []string{"id", "user_id", "schedule_id", "status", "total_amount", "created_at", "expires_at", "version"}
    detailColumns      = []string{"id", "reservation_id", "seat_id", "seat_number", "price"}
    seatColumns        = []string{"id", "schedule_id", "seat_number", "price", "status", "reserved_until", "version"}
)

func newReaperFixture(t *testing.T) (*Reaper, sqlmock.Sqlmock) {
    t.Helper()
    db, mock, err := sqlmock.New()
    if err != nil {
        t.Fatalf("sqlmock.New: %v", err)
    }
    t.Cleanup(func() { _ = db.Close() })
    r := NewReaper(db, repository.NewReservationRepo(db), repository.NewSeatRepo(db), time.Minute, zap.NewNop())
    return r, mock
}

// expectListOneStale queues the out-of-transaction listing returning a
// single stale PENDING reservation with one seat.
func expectListOneStale(mock sqlmock.Sqlmock) {
    created := time.Now().UTC().Add(-20 * time.Minute)
    expires := created.Add(10 * time.Minute)
    mock.ExpectQuery(`WHERE status = 'PENDING' AND expires_at <= \?`).
        WillReturnRows(sqlmock.NewRows(reservationColumns).
            AddRow(1, 10, 5, "PENDING", 10000, created, expires, 0))
    mock.ExpectQuery(`FROM reservation_details`).
        WillReturnRows(sqlmock.NewRows(detailColumns).
            AddRow(1, 1, 7, 7, 10000))
}

func TestReaper_ExpiresStaleReservation(t *testing.T) {
    r, mock := newReaperFixture(t)
    created := time.Now().UTC().Add(-20 * time.Minute)
    expires := created.Add(10 * time.Minute)

    expectListOneStale(mock)
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(1).
        WillReturnRows(sqlmock.NewRows(reservationColumns).
            AddRow(1, 10, 5, "PENDING", 10000, created, expires, 0))
    mock.ExpectQuery(`FROM reservation_details WHERE reservation_id = \?`).
        WithArgs(1).
        WillReturnRows(sqlmock.NewRows(detailColumns).
            AddRow(1, 1, 7, 7, 10000))
    mock.ExpectQuery(`FROM seats WHERE id IN \(\?\)`).
        WithArgs(7).
        WillReturnRows(sqlmock.NewRows(seatColumns).
            AddRow(7, 5, 7, 10000, "RESERVED", expires, 1))
    mock.ExpectExec(`UPDATE seats SET`).
        WithArgs("AVAILABLE", nil, 7, 1).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectExec(`UPDATE reservations SET`).
        WithArgs("EXPIRED", 1, 0).
        WillReturnResult(sqlmock.NewResult(0, 1))
    mock.ExpectCommit()

    if err := r.RunOnce(context.Background()); err != nil {
        t.Fatalf("RunOnce: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestReaper_SkipsReservationSettledInBetween(t *testing.T) {
    r, mock := newReaperFixture(t)
    created := time.Now().UTC().Add(-20 * time.Minute)
    expires := created.Add(10 * time.Minute)

    // The listing saw PENDING, but by the time the row lock is taken the
    // user has paid. The reaper backs off without touching anything.
    expectListOneStale(mock)
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(1).
        WillReturnRows(sqlmock.NewRows(reservationColumns).
            AddRow(1, 10, 5, "CONFIRMED", 10000, created, expires, 1))
    mock.ExpectQuery(`FROM reservation_details WHERE reservation_id = \?`).
        WithArgs(1).
        WillReturnRows(sqlmock.NewRows(detailColumns).
            AddRow(1, 1, 7, 7, 10000))
    mock.ExpectRollback()

    if err := r.RunOnce(context.Background()); err != nil {
        t.Fatalf("RunOnce: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestReaper_SkipsReservationDeletedInBetween(t *testing.T) {
    r, mock := newReaperFixture(t)

    expectListOneStale(mock)
    mock.ExpectBegin()
    mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
        WithArgs(1).
        WillReturnError(sql.ErrNoRows)
    mock.ExpectRollback()

    if err := r.RunOnce(context.Background()); err != nil {
        t.Fatalf("RunOnce: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}

func TestReaper_EmptySweep(t *testing.T) {
    r, mock := newReaperFixture(t)

    mock.ExpectQuery(`WHERE status = 'PENDING' AND expires_at <= \?`).
        WillReturnRows(sqlmock.NewRows(reservationColumns))

    if err := r.RunOnce(context.Background()); err != nil {
        t.Fatalf("RunOnce: %v", err)
    }
    if err := mock.ExpectationsWereMet(); err != nil {
        t.Errorf("unmet expectations: %v", err)
    }
}
