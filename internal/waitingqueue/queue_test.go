package waitingqueue

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return New(rdb)
}

func TestQueue_EnqueueRanks(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    for i := uint64(1); i <= 5; i++ {
        rank, err := q.Enqueue(ctx, i)
        if err != nil {
            t.Fatalf("Enqueue user %d: %v", i, err)
        }
        if rank != int64(i) {
            t.Errorf("user %d: expected rank %d, got %d", i, i, rank)
        }
    }

    pos, err := q.Position(ctx, 3)
    if err != nil {
        t.Fatalf("Position: %v", err)
    }
    if pos != 3 {
        t.Errorf("expected position 3, got %d", pos)
    }

    pos, err = q.Position(ctx, 99)
    if err != nil {
        t.Fatalf("Position for absent user: %v", err)
    }
    if pos != 0 {
        t.Errorf("expected position 0 for absent user, got %d", pos)
    }
}

func TestQueue_EnqueueDuplicate(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    if _, err := q.Enqueue(ctx, 1); err != nil {
        t.Fatalf("Enqueue: %v", err)
    }
    if _, err := q.Enqueue(ctx, 1); !errors.Is(err, ErrDuplicateEntry) {
        t.Errorf("second enqueue while waiting: expected ErrDuplicateEntry, got %v", err)
    }

    // The user stays a duplicate while the active window is open.
    promoted, err := q.Promote(ctx, 1, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote: %v", err)
    }
    if len(promoted) != 1 || promoted[0] != 1 {
        t.Fatalf("unexpected promoted set: %v", promoted)
    }
    if _, err := q.Enqueue(ctx, 1); !errors.Is(err, ErrDuplicateEntry) {
        t.Errorf("enqueue while active: expected ErrDuplicateEntry, got %v", err)
    }
}

func TestQueue_EnqueueAfterExpiredActive(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    if _, err := q.Enqueue(ctx, 1); err != nil {
        t.Fatalf("Enqueue: %v", err)
    }
    // Promote with a window that has already elapsed. The stale active
    // entry must not block re-entry; enqueue removes it in the same step.
    if _, err := q.Promote(ctx, 1, time.Now().Add(-time.Second)); err != nil {
        t.Fatalf("Promote: %v", err)
    }

    rank, err := q.Enqueue(ctx, 1)
    if err != nil {
        t.Fatalf("re-enqueue after active window elapsed: %v", err)
    }
    if rank != 1 {
        t.Errorf("expected rank 1, got %d", rank)
    }

    active, err := q.IsActive(ctx, 1)
    if err != nil {
        t.Fatalf("IsActive: %v", err)
    }
    if active {
        t.Error("user re-enqueued as waiting must not report active")
    }
}

func TestQueue_PromoteArrivalOrder(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    for i := uint64(1); i <= 10; i++ {
        if _, err := q.Enqueue(ctx, i); err != nil {
            t.Fatalf("Enqueue user %d: %v", i, err)
        }
    }

    promoted, err := q.Promote(ctx, 4, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote: %v", err)
    }
    if len(promoted) != 4 {
        t.Fatalf("expected 4 promoted, got %d", len(promoted))
    }
    for i, id := range promoted {
        if id != uint64(i+1) {
            t.Errorf("promotion order broken at index %d: got user %d", i, id)
        }
    }

    // The head of the waiting set moved up.
    pos, err := q.Position(ctx, 5)
    if err != nil {
        t.Fatalf("Position: %v", err)
    }
    if pos != 1 {
        t.Errorf("expected user 5 at position 1, got %d", pos)
    }
}

// Capacity scenario: 150 users, capacity 100. The first promotion admits
// exactly the first 100 arrivals; with capacity full no further slot
// opens; after every window expires a sweep frees all 100 slots and the
// remaining 50 are admitted in arrival order.
func TestQueue_CapacityScenario(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()
    const capacity = 100

    for i := uint64(1); i <= 150; i++ {
        if _, err := q.Enqueue(ctx, i); err != nil {
            t.Fatalf("Enqueue user %d: %v", i, err)
        }
    }

    promoted, err := q.Promote(ctx, capacity, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote: %v", err)
    }
    if len(promoted) != capacity {
        t.Fatalf("expected %d promoted, got %d", capacity, len(promoted))
    }
    for i, id := range promoted {
        if id != uint64(i+1) {
            t.Fatalf("promotion order broken at index %d: got user %d", i, id)
        }
    }

    active, err := q.ActiveCount(ctx)
    if err != nil {
        t.Fatalf("ActiveCount: %v", err)
    }
    if active != capacity {
        t.Errorf("expected %d active, got %d", capacity, active)
    }
    waiting, err := q.WaitingCount(ctx)
    if err != nil {
        t.Fatalf("WaitingCount: %v", err)
    }
    if waiting != 50 {
        t.Errorf("expected 50 waiting, got %d", waiting)
    }

    // Capacity is exhausted, so the scheduler computes zero open slots
    // and promotion is a no-op.
    if slots := capacity - int(active); slots > 0 {
        t.Fatalf("expected no open slots, got %d", slots)
    }
    none, err := q.Promote(ctx, 0, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote zero: %v", err)
    }
    if len(none) != 0 {
        t.Errorf("expected empty promotion, got %v", none)
    }

    // Age the whole active set past expiry, then sweep.
    replaceActiveExpiry(t, q, time.Now().Add(-time.Second))
    swept, err := q.SweepExpiredActive(ctx)
    if err != nil {
        t.Fatalf("SweepExpiredActive: %v", err)
    }
    if len(swept) != capacity {
        t.Fatalf("expected %d swept, got %d", capacity, len(swept))
    }

    active, err = q.ActiveCount(ctx)
    if err != nil {
        t.Fatalf("ActiveCount after sweep: %v", err)
    }
    if active != 0 {
        t.Errorf("expected 0 active after sweep, got %d", active)
    }

    promoted, err = q.Promote(ctx, capacity, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote after sweep: %v", err)
    }
    if len(promoted) != 50 {
        t.Fatalf("expected 50 promoted after sweep, got %d", len(promoted))
    }
    for i, id := range promoted {
        if id != uint64(i+101) {
            t.Errorf("promotion order broken at index %d: got user %d", i, id)
        }
    }
}

func TestQueue_ExpiredActiveDoesNotCountOrPass(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    if _, err := q.Enqueue(ctx, 1); err != nil {
        t.Fatalf("Enqueue: %v", err)
    }
    if _, err := q.Promote(ctx, 1, time.Now().Add(10*time.Minute)); err != nil {
        t.Fatalf("Promote: %v", err)
    }

    active, err := q.IsActive(ctx, 1)
    if err != nil {
        t.Fatalf("IsActive: %v", err)
    }
    if !active {
        t.Fatal("freshly promoted user must be active")
    }

    // An entry past its window fails the activeness check even before a
    // sweep removes it, and it no longer consumes capacity.
    replaceActiveExpiry(t, q, time.Now().Add(-time.Second))
    active, err = q.IsActive(ctx, 1)
    if err != nil {
        t.Fatalf("IsActive: %v", err)
    }
    if active {
        t.Error("expired entry must not report active")
    }
    count, err := q.ActiveCount(ctx)
    if err != nil {
        t.Fatalf("ActiveCount: %v", err)
    }
    if count != 0 {
        t.Errorf("expired entries must not consume capacity, got %d", count)
    }
}

func TestQueue_RollbackPreservesOrder(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    for i := uint64(1); i <= 6; i++ {
        if _, err := q.Enqueue(ctx, i); err != nil {
            t.Fatalf("Enqueue user %d: %v", i, err)
        }
    }
    promoted, err := q.Promote(ctx, 3, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote: %v", err)
    }
    if len(promoted) != 3 {
        t.Fatalf("expected 3 promoted, got %d", len(promoted))
    }

    // Activation failed downstream: the batch returns to the front of
    // the waiting set in its original relative order, ahead of 4..6.
    if err := q.Rollback(ctx, promoted); err != nil {
        t.Fatalf("Rollback: %v", err)
    }

    for want := uint64(1); want <= 6; want++ {
        pos, err := q.Position(ctx, want)
        if err != nil {
            t.Fatalf("Position user %d: %v", want, err)
        }
        if pos != int64(want) {
            t.Errorf("user %d: expected position %d after rollback, got %d", want, want, pos)
        }
    }
    count, err := q.ActiveCount(ctx)
    if err != nil {
        t.Fatalf("ActiveCount: %v", err)
    }
    if count != 0 {
        t.Errorf("rolled back users must leave the active set, got %d", count)
    }
}

func TestQueue_RollbackIntoEmptyWaiting(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    for i := uint64(1); i <= 3; i++ {
        if _, err := q.Enqueue(ctx, i); err != nil {
            t.Fatalf("Enqueue user %d: %v", i, err)
        }
    }
    promoted, err := q.Promote(ctx, 3, time.Now().Add(10*time.Minute))
    if err != nil {
        t.Fatalf("Promote: %v", err)
    }

    if err := q.Rollback(ctx, promoted); err != nil {
        t.Fatalf("Rollback: %v", err)
    }
    for want := uint64(1); want <= 3; want++ {
        pos, err := q.Position(ctx, want)
        if err != nil {
            t.Fatalf("Position user %d: %v", want, err)
        }
        if pos != int64(want) {
            t.Errorf("user %d: expected position %d, got %d", want, want, pos)
        }
    }
}

func TestQueue_RemoveWaiting(t *testing.T) {
    q := newTestQueue(t)
    ctx := context.Background()

    if _, err := q.Enqueue(ctx, 1); err != nil {
        t.Fatalf("Enqueue: %v", err)
    }
    if err := q.RemoveWaiting(ctx, 1); err != nil {
        t.Fatalf("RemoveWaiting: %v", err)
    }

    // The slot is free again, not a duplicate.
    rank, err := q.Enqueue(ctx, 1)
    if err != nil {
        t.Fatalf("re-enqueue after removal: %v", err)
    }
    if rank != 1 {
        t.Errorf("expected rank 1, got %d", rank)
    }
}

// replaceActiveExpiry rewrites every active entry's score to the given
// expiry, standing in for the passage of wall-clock time.
func replaceActiveExpiry(t *testing.T, q *Queue, expireAt time.Time) {
    t.Helper()
    ctx := context.Background()
    members, err := q.rdb.ZRange(ctx, activeKey, 0, -1).Result()
    if err != nil {
        t.Fatalf("ZRange active: %v", err)
    }
    for _, m := range members {
        if err := q.rdb.ZAdd(ctx, activeKey, redis.Z{Score: float64(expireAt.UnixMilli()), Member: m}).Err(); err != nil {
            t.Fatalf("ZAdd active: %v", err)
        }
    }
}
