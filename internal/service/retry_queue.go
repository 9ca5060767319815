package service

import (
    "context"
    "encoding/json"
    "time"

    "github.com/redis/go-redis/v9"
)

const retryListKey = "events:retry"

// RetryEnvelope wraps a payload whose publish attempt failed. It is
// created with a zero retry count and destroyed on successful publish or
// when the retry ceiling is exceeded.
type RetryEnvelope struct {
    Payload    json.RawMessage `json:"payload"`
    RetryCount int             `json:"retry_count"`
    CreatedAt  time.Time       `json:"created_at"`
}

// RetryQueue is a persistent FIFO of retry envelopes backed by a Redis
// list. Pushes go to the tail and pops come from the head, so delivery
// order among queued envelopes is preserved.
type RetryQueue struct {
    rdb *redis.Client
}

// NewRetryQueue returns a RetryQueue bound to the given Redis client.
func NewRetryQueue(rdb *redis.Client) *RetryQueue { return &RetryQueue{rdb: rdb} }

// Enqueue wraps a failed payload in a fresh envelope and appends it.
func (q *RetryQueue) Enqueue(ctx context.Context, payload []byte) error {
    return q.Push(ctx, RetryEnvelope{
        Payload:   payload,
        CreatedAt: time.Now().UTC(),
    })
}

// Push appends an envelope to the tail of the queue.
func (q *RetryQueue) Push(ctx context.Context, env RetryEnvelope) error {
    body, err := json.Marshal(env)
    if err != nil {
        return err
    }
    return q.rdb.RPush(ctx, retryListKey, body).Err()
}

// PopBatch removes and returns up to max envelopes from the head of the
// queue. An empty queue yields an empty slice, not an error. An envelope
// that cannot be decoded is dropped; a malformed entry would otherwise
// wedge the head of the queue forever.
func (q *RetryQueue) PopBatch(ctx context.Context, max int) ([]RetryEnvelope, error) {
    out := make([]RetryEnvelope, 0, max)
    for len(out) < max {
        body, err := q.rdb.LPop(ctx, retryListKey).Bytes()
        if err == redis.Nil {
            break
        }
        if err != nil {
            return out, err
        }
        var env RetryEnvelope
        if err := json.Unmarshal(body, &env); err != nil {
            continue
        }
        out = append(out, env)
    }
    return out, nil
}

// Len returns the number of queued envelopes.
func (q *RetryQueue) Len(ctx context.Context) (int64, error) {
    return q.rdb.LLen(ctx, retryListKey).Result()
}
