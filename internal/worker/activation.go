// Package worker contains the periodic background jobs of the reservation
// core: the token activation scheduler, the reservation expiry reaper and
// the event retry worker. Every service instance runs identical timers;
// cross-instance coordination happens through Redis and the database, not
// in-process. Each loop recovers from every per-cycle error so one bad
// run never halts future runs.
package worker

import (
    "context"
    "errors"
    "sync"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/lock"
    "concert-reservation/internal/service"
)

const activationLockKey = "admission:activate"

// ActivationScheduler periodically promotes waiting users into the active
// window. The whole pass runs under the cross-instance admission lock:
// without it, two instances computing free slots from the same stale
// active count would jointly over-promote past capacity. Failing to get
// the lock just means another instance is running the pass; the cycle is
// skipped quietly.
type ActivationScheduler struct {
    admission *service.AdmissionService
    locker    *lock.Locker
    interval  time.Duration
    lockWait  time.Duration
    lockLease time.Duration
    log       *zap.Logger

    stop chan struct{}
    wg   sync.WaitGroup
}

// NewActivationScheduler constructs the scheduler with its tick interval
// and lock timing.
func NewActivationScheduler(admission *service.AdmissionService, locker *lock.Locker, interval, lockWait, lockLease time.Duration, log *zap.Logger) *ActivationScheduler {
    return &ActivationScheduler{
        admission: admission,
        locker:    locker,
        interval:  interval,
        lockWait:  lockWait,
        lockLease: lockLease,
        log:       log,
        stop:      make(chan struct{}),
    }
}

// Start begins the scheduler loop in a background goroutine.
func (s *ActivationScheduler) Start() {
    s.wg.Add(1)
    go s.run()
}

// Stop shuts the loop down and waits for the current cycle to finish.
func (s *ActivationScheduler) Stop() {
    close(s.stop)
    s.wg.Wait()
}

func (s *ActivationScheduler) run() {
    defer s.wg.Done()
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    for {
        select {
        case <-s.stop:
            return
        case <-ticker.C:
            s.RunOnce(context.Background())
        }
    }
}

// RunOnce executes a single scheduler pass under the admission lock.
func (s *ActivationScheduler) RunOnce(ctx context.Context) {
    err := lock.WithLock(ctx, s.locker, activationLockKey, s.lockWait, s.lockLease, func(ctx context.Context) error {
        return s.admission.Activate(ctx)
    })
    if err == nil {
        return
    }
    if errors.Is(err, lock.ErrLockAcquisition) {
        s.log.Debug("activation lock busy, skipping cycle")
        return
    }
    s.log.Error("activation cycle failed", zap.Error(err))
}
