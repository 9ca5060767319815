// Package lock implements named, leased mutual exclusion on Redis for
// sequences that span more than one atomic store operation and must be
// exclusive across service instances, such as the activation scheduler's
// read-then-promote pass. Ownership is a random value written with
// SET NX PX; a background watchdog keeps the lease alive while the holder
// runs, and release verifies ownership so one holder can never unlock
// another's critical section.
package lock

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"
)

// ErrLockAcquisition is returned when the lock cannot be obtained within
// the caller's wait time. Periodic jobs treat it as "skip this run";
// interactive callers surface it as a conflict.
var ErrLockAcquisition = errors.New("lock acquisition timed out")

// ErrNotHeld is returned when Release is called on a lock the handle no
// longer owns, for example after the lease lapsed and another instance
// took over. The other holder's key is left untouched.
var ErrNotHeld = errors.New("lock not held")

const (
    keyPrefix   = "lock:"
    acquirePoll = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

var renewScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// Locker acquires leased locks on a shared Redis instance.
type Locker struct {
    rdb *redis.Client
}

// New returns a Locker bound to the given Redis client.
func New(rdb *redis.Client) *Locker { return &Locker{rdb: rdb} }

// Handle represents held ownership of a named lock. A handle is reentrant
// for its owner: Reacquire raises a hold count without blocking and
// Release only frees the lock when the count drops to zero. Handles are
// safe for concurrent use.
type Handle struct {
    locker *Locker
    key    string
    owner  string
    lease  time.Duration

    mu    sync.Mutex
    count int
    stop  chan struct{}
    done  chan struct{}
}

// Acquire blocks up to waitTime for exclusive ownership of key across all
// process instances. On success the returned handle's lease is renewed by
// a watchdog goroutine until Release, so a slow critical section is never
// prematurely unlocked. ErrLockAcquisition is returned when waitTime
// elapses first.
func (l *Locker) Acquire(ctx context.Context, key string, waitTime, leaseTime time.Duration) (*Handle, error) {
    owner := uuid.NewString()
    full := keyPrefix + key
    deadline := time.Now().Add(waitTime)
    for {
        ok, err := l.rdb.SetNX(ctx, full, owner, leaseTime).Result()
        if err != nil {
            return nil, err
        }
        if ok {
            h := &Handle{
                locker: l,
                key:    full,
                owner:  owner,
                lease:  leaseTime,
                count:  1,
                stop:   make(chan struct{}),
                done:   make(chan struct{}),
            }
            go h.watchdog()
            return h, nil
        }
        if time.Now().Add(acquirePoll).After(deadline) {
            return nil, ErrLockAcquisition
        }
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(acquirePoll):
        }
    }
}

// WithLock acquires key, runs fn and releases on every exit path. It is
// the call-site-visible replacement for implicit lock wrapping: the
// guarded section is exactly the body of fn.
func WithLock(ctx context.Context, l *Locker, key string, waitTime, leaseTime time.Duration, fn func(ctx context.Context) error) error {
    h, err := l.Acquire(ctx, key, waitTime, leaseTime)
    if err != nil {
        return err
    }
    defer func() { _ = h.Release(context.Background()) }()
    return fn(ctx)
}

// Reacquire raises the hold count for the owning handle without touching
// Redis. It pairs with an extra Release.
func (h *Handle) Reacquire() {
    h.mu.Lock()
    h.count++
    h.mu.Unlock()
}

// Release drops one hold. When the count reaches zero the watchdog is
// stopped and the key deleted, but only if this handle still owns it;
// a lapsed lease held by someone else returns ErrNotHeld and leaves the
// other owner's key alone.
func (h *Handle) Release(ctx context.Context) error {
    h.mu.Lock()
    if h.count == 0 {
        h.mu.Unlock()
        return ErrNotHeld
    }
    h.count--
    if h.count > 0 {
        h.mu.Unlock()
        return nil
    }
    h.mu.Unlock()

    close(h.stop)
    <-h.done
    n, err := releaseScript.Run(ctx, h.locker.rdb, []string{h.key}, h.owner).Int64()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotHeld
    }
    return nil
}

// watchdog renews the lease at a third of its duration until stopped or
// until ownership is observed lost.
func (h *Handle) watchdog() {
    defer close(h.done)
    interval := h.lease / 3
    if interval <= 0 {
        interval = time.Second
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-h.stop:
            return
        case <-ticker.C:
            ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
            n, err := renewScript.Run(ctx, h.locker.rdb, []string{h.key}, h.owner, h.lease.Milliseconds()).Int64()
            cancel()
            if err == nil && n == 0 {
                // Ownership lost; stop renewing a key we no longer hold.
                return
            }
        }
    }
}
