// Package waitingqueue implements the admission queue on two Redis sorted
// sets: queue:waiting, scored by arrival order, and queue:active, scored
// by the expiry of each user's active window. Every compound operation
// runs as a single Lua script so check-and-mutate across the two sets is
// one indivisible step; no external lock is needed for queue work.
package waitingqueue

import (
    "context"
    "errors"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

const (
    waitingKey = "queue:waiting"
    activeKey  = "queue:active"
    seqKey     = "queue:seq"
)

// ErrDuplicateEntry is returned when a user who is already waiting, or
// still inside an unexpired active window, tries to enqueue again.
// Handlers should translate this into an HTTP 409 response.
var ErrDuplicateEntry = errors.New("duplicate queue entry")

// Queue manipulates the waiting and active sets. All methods are safe for
// concurrent use from any number of service instances.
type Queue struct {
    rdb *redis.Client
}

// New returns a Queue bound to the given Redis client.
func New(rdb *redis.Client) *Queue { return &Queue{rdb: rdb} }

// Waiting scores blend the arrival timestamp with a monotonic sequence
// counter so two arrivals in the same millisecond still order by who was
// applied first. now_ms*1000 + seq%1000 stays well inside the 2^53 range
// a Redis score can represent exactly.
var enqueueScript = redis.NewScript(`
    local waiting = KEYS[1]
    local active = KEYS[2]
    local seq = KEYS[3]
    local member = ARGV[1]
    local now_ms = tonumber(ARGV[2])

    if redis.call('ZSCORE', waiting, member) then
        return -1
    end
    local act = redis.call('ZSCORE', active, member)
    if act then
        if tonumber(act) > now_ms then
            return -1
        end
        redis.call('ZREM', active, member)
    end

    local n = redis.call('INCR', seq) % 1000
    redis.call('ZADD', waiting, now_ms * 1000 + n, member)
    return redis.call('ZRANK', waiting, member) + 1
`)

var promoteScript = redis.NewScript(`
    local waiting = KEYS[1]
    local active = KEYS[2]
    local count = tonumber(ARGV[1])
    local expire_ms = tonumber(ARGV[2])

    local popped = redis.call('ZRANGE', waiting, 0, count - 1)
    if #popped == 0 then
        return popped
    end
    redis.call('ZREM', waiting, unpack(popped))
    for _, m in ipairs(popped) do
        redis.call('ZADD', active, expire_ms, m)
    end
    return popped
`)

var sweepScript = redis.NewScript(`
    local active = KEYS[1]
    local now_ms = ARGV[1]

    local expired = redis.call('ZRANGEBYSCORE', active, '-inf', now_ms)
    if #expired > 0 then
        redis.call('ZREMRANGEBYSCORE', active, '-inf', now_ms)
    end
    return expired
`)

// Rollback reinserts below the current minimum waiting score. Members
// arrive in promotion order, so earlier members get lower scores and the
// batch keeps its relative order ahead of everyone already waiting.
var rollbackScript = redis.NewScript(`
    local waiting = KEYS[1]
    local active = KEYS[2]
    local n = #ARGV - 1

    local head = redis.call('ZRANGE', waiting, 0, 0, 'WITHSCORES')
    local base
    if #head == 0 then
        base = tonumber(ARGV[1])
    else
        base = tonumber(head[2])
    end
    for i = 2, #ARGV do
        local m = ARGV[i]
        redis.call('ZREM', active, m)
        redis.call('ZADD', waiting, base - (n - i + 2), m)
    end
    return n
`)

// Enqueue atomically checks membership in both sets and inserts the user
// into the waiting set. It returns the user's 1-based rank, or
// ErrDuplicateEntry when the user is already waiting or still active.
// A stale active entry whose window already elapsed does not block
// re-entry; it is removed in the same step.
func (q *Queue) Enqueue(ctx context.Context, userID uint64) (int64, error) {
    rank, err := enqueueScript.Run(ctx, q.rdb,
        []string{waitingKey, activeKey, seqKey},
        member(userID), time.Now().UnixMilli()).Int64()
    if err != nil {
        return 0, err
    }
    if rank < 0 {
        return 0, ErrDuplicateEntry
    }
    return rank, nil
}

// Position returns the user's 1-based rank in the waiting set, or 0 when
// the user is not waiting.
func (q *Queue) Position(ctx context.Context, userID uint64) (int64, error) {
    rank, err := q.rdb.ZRank(ctx, waitingKey, member(userID)).Result()
    if err == redis.Nil {
        return 0, nil
    }
    if err != nil {
        return 0, err
    }
    return rank + 1, nil
}

// Promote atomically pops up to count earliest-arrival users from the
// waiting set and inserts them into the active set with the given expiry.
// The returned slice is in promotion order. Two schedulers racing on this
// call can never promote overlapping sets.
func (q *Queue) Promote(ctx context.Context, count int, expireAt time.Time) ([]uint64, error) {
    if count <= 0 {
        return nil, nil
    }
    raw, err := promoteScript.Run(ctx, q.rdb,
        []string{waitingKey, activeKey},
        count, expireAt.UnixMilli()).StringSlice()
    if err != nil {
        return nil, err
    }
    return parseMembers(raw)
}

// IsActive reports whether the user is inside an unexpired active window.
func (q *Queue) IsActive(ctx context.Context, userID uint64) (bool, error) {
    score, err := q.rdb.ZScore(ctx, activeKey, member(userID)).Result()
    if err == redis.Nil {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return int64(score) > time.Now().UnixMilli(), nil
}

// SweepExpiredActive removes and returns every active entry whose window
// elapsed at or before now.
func (q *Queue) SweepExpiredActive(ctx context.Context) ([]uint64, error) {
    raw, err := sweepScript.Run(ctx, q.rdb,
        []string{activeKey},
        time.Now().UnixMilli()).StringSlice()
    if err != nil {
        return nil, err
    }
    return parseMembers(raw)
}

// Rollback removes the given users from the active set and reinserts them
// at the front of the waiting set, preserving their relative order. It is
// used when a promoted batch fails to persist downstream.
func (q *Queue) Rollback(ctx context.Context, userIDs []uint64) error {
    if len(userIDs) == 0 {
        return nil
    }
    args := make([]interface{}, 0, len(userIDs)+1)
    args = append(args, time.Now().UnixMilli()*1000)
    for _, id := range userIDs {
        args = append(args, member(id))
    }
    return rollbackScript.Run(ctx, q.rdb, []string{waitingKey, activeKey}, args...).Err()
}

// RemoveWaiting drops a user from the waiting set. It compensates a
// failed durable token insert right after enqueue, so the queue and the
// token table do not drift apart.
func (q *Queue) RemoveWaiting(ctx context.Context, userID uint64) error {
    return q.rdb.ZRem(ctx, waitingKey, member(userID)).Err()
}

// ActiveCount returns the number of unexpired entries in the active set.
// Expired entries awaiting a sweep do not consume admission capacity.
func (q *Queue) ActiveCount(ctx context.Context) (int64, error) {
    min := "(" + strconv.FormatInt(time.Now().UnixMilli(), 10)
    return q.rdb.ZCount(ctx, activeKey, min, "+inf").Result()
}

// WaitingCount returns the size of the waiting set.
func (q *Queue) WaitingCount(ctx context.Context) (int64, error) {
    return q.rdb.ZCard(ctx, waitingKey).Result()
}

func member(userID uint64) string {
    return strconv.FormatUint(userID, 10)
}

func parseMembers(raw []string) ([]uint64, error) {
    out := make([]uint64, 0, len(raw))
    for _, s := range raw {
        id, err := strconv.ParseUint(s, 10, 64)
        if err != nil {
            return nil, err
        }
        out = append(out, id)
    }
    return out, nil
}
