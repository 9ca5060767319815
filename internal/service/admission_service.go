package service

import (
    "context"
    "errors"
    "fmt"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/model"
    "concert-reservation/internal/repository"
    "concert-reservation/internal/utils"
    "concert-reservation/internal/waitingqueue"
)

// QueueStatus is the answer to a status lookup.
type QueueStatus struct {
    Status   string // WAITING, ACTIVE or NOT_IN_QUEUE
    Position int64  // 1-based rank, set only when WAITING
}

// AdmissionService ties the Redis queue structures to the durable token
// table. Enqueue issues tokens, Status answers lookups, and Activate is
// the scheduler pass that promotes waiting users into the capacity-bound
// active window. Activate must run under the cross-instance admission
// lock; the queue's own operations are atomic and need no lock.
type AdmissionService struct {
    queue        *waitingqueue.Queue
    tokens       *repository.TokenRepo
    secret       string
    capacity     int
    activeWindow time.Duration
    log          *zap.Logger
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(q *waitingqueue.Queue, tokens *repository.TokenRepo, secret string, capacity int, activeWindow time.Duration, log *zap.Logger) *AdmissionService {
    if q == nil || tokens == nil {
        panic("nil dependency passed to NewAdmissionService")
    }
    return &AdmissionService{
        queue:        q,
        tokens:       tokens,
        secret:       secret,
        capacity:     capacity,
        activeWindow: activeWindow,
        log:          log,
    }
}

// Enqueue admits a user into the waiting queue and issues their token.
// The queue's atomic membership check is the authority on duplicates;
// when the durable token insert fails afterwards the queue entry is
// removed again so the two sides cannot drift apart.
func (s *AdmissionService) Enqueue(ctx context.Context, userID uint64) (*model.Token, int64, error) {
    if userID == 0 {
        return nil, 0, model.ErrValidation
    }
    rank, err := s.queue.Enqueue(ctx, userID)
    if err != nil {
        return nil, 0, err
    }
    value, err := utils.NewQueueToken(s.secret, userID)
    if err != nil {
        _ = s.queue.RemoveWaiting(ctx, userID)
        return nil, 0, err
    }
    token, err := model.NewToken(userID, value)
    if err != nil {
        _ = s.queue.RemoveWaiting(ctx, userID)
        return nil, 0, err
    }
    if err := s.tokens.Create(ctx, token); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            // The queue already admitted the user, so a conflicting row
            // can only be an ACTIVE token whose window elapsed before the
            // scheduler got to it. Expire by table predicate and retry
            // the insert once instead of bouncing the user for a tick.
            if _, expErr := s.tokens.ExpireStale(ctx, time.Now().UTC()); expErr == nil {
                err = s.tokens.Create(ctx, token)
            }
        }
        if err != nil {
            _ = s.queue.RemoveWaiting(ctx, userID)
            if errors.Is(err, repository.ErrConflict) {
                return nil, 0, waitingqueue.ErrDuplicateEntry
            }
            return nil, 0, err
        }
    }
    return token, rank, nil
}

// Status reports where the user currently stands in the admission flow.
func (s *AdmissionService) Status(ctx context.Context, userID uint64) (QueueStatus, error) {
    active, err := s.queue.IsActive(ctx, userID)
    if err != nil {
        return QueueStatus{}, err
    }
    if active {
        return QueueStatus{Status: "ACTIVE"}, nil
    }
    pos, err := s.queue.Position(ctx, userID)
    if err != nil {
        return QueueStatus{}, err
    }
    if pos > 0 {
        return QueueStatus{Status: "WAITING", Position: pos}, nil
    }
    return QueueStatus{Status: "NOT_IN_QUEUE"}, nil
}

// IsActive reports whether the user is inside an unexpired active window.
func (s *AdmissionService) IsActive(ctx context.Context, userID uint64) (bool, error) {
    return s.queue.IsActive(ctx, userID)
}

// Activate is one scheduler pass. It first expires every elapsed active
// window on both sides (the durable token table by predicate, the Redis
// active set by sweep), then promotes up to the remaining capacity in
// arrival order and persists the WAITING→ACTIVE transitions. The pass is
// idempotent: with no slots or an empty waiting set it changes nothing,
// and a pass cut short by an error leaves only work the next tick redoes.
//
// When the durable write fails the promoted batch is rolled back to the
// front of the waiting set in its original order and the error surfaces
// so the next tick retries.
func (s *AdmissionService) Activate(ctx context.Context) error {
    expired, err := s.tokens.ExpireStale(ctx, time.Now().UTC())
    if err != nil {
        return fmt.Errorf("expire stale tokens: %w", err)
    }
    swept, err := s.queue.SweepExpiredActive(ctx)
    if err != nil {
        return fmt.Errorf("sweep expired active: %w", err)
    }
    if expired > 0 || len(swept) > 0 {
        s.log.Info("active window swept",
            zap.Int64("tokens_expired", expired),
            zap.Int("entries_removed", len(swept)))
    }

    activeCount, err := s.queue.ActiveCount(ctx)
    if err != nil {
        return fmt.Errorf("count active: %w", err)
    }
    slots := int64(s.capacity) - activeCount
    if slots <= 0 {
        return nil
    }
    waiting, err := s.queue.WaitingCount(ctx)
    if err != nil {
        return fmt.Errorf("count waiting: %w", err)
    }
    if waiting < slots {
        slots = waiting
    }
    if slots <= 0 {
        return nil
    }

    expireAt := time.Now().UTC().Add(s.activeWindow)
    promoted, err := s.queue.Promote(ctx, int(slots), expireAt)
    if err != nil {
        return fmt.Errorf("promote: %w", err)
    }
    if len(promoted) == 0 {
        return nil
    }

    if err := s.activateTokens(ctx, promoted, expireAt); err != nil {
        // The durable write failed as a unit, so the whole batch is
        // unpersisted; restore queue order and let the next tick retry.
        if rbErr := s.queue.Rollback(ctx, promoted); rbErr != nil {
            s.log.Error("promotion rollback failed", zap.Error(rbErr))
        }
        return fmt.Errorf("activate tokens: %w", err)
    }
    s.log.Info("tokens activated",
        zap.Int("promoted", len(promoted)),
        zap.Time("expire_at", expireAt))
    return nil
}

func (s *AdmissionService) activateTokens(ctx context.Context, userIDs []uint64, expireAt time.Time) error {
    tx, err := s.tokens.DB().BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    n, err := s.tokens.ActivateBatchTx(ctx, tx, userIDs, expireAt)
    if err != nil {
        return err
    }
    if n != int64(len(userIDs)) {
        // Some promoted user had no WAITING row, so the batch cannot be
        // persisted as a unit; abort and let the caller restore the queue.
        return fmt.Errorf("activated %d of %d tokens: %w", n, len(userIDs), repository.ErrConflict)
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
