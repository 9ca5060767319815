package worker

import (
    "context"
    "sync"
    "time"

    "go.uber.org/zap"

    "concert-reservation/internal/service"
)

const (
    // retryCeiling is the maximum number of publish retries per envelope.
    retryCeiling = 3
    // retryBatchSize bounds how many envelopes one tick will process.
    retryBatchSize = 100
)

// AlertFunc is invoked when an envelope exhausts its retries and is
// dropped. The default implementation only logs; a real alerting channel
// can be plugged in here.
type AlertFunc func(env service.RetryEnvelope)

// RetryWorker drains the persistent retry FIFO. Each tick it pops a
// bounded batch: envelopes past the retry ceiling are dropped through the
// alert hook, the rest get one synchronous publish attempt each — success
// discards the envelope, failure re-enqueues it at the tail with its
// count raised. One extra attempt per tick yields linear backoff with a
// hard ceiling, so the queue cannot grow without bound.
type RetryWorker struct {
    queue    *service.RetryQueue
    bus      service.BusPublisher
    interval time.Duration
    alert    AlertFunc
    log      *zap.Logger

    stop chan struct{}
    wg   sync.WaitGroup
}

// NewRetryWorker constructs the retry worker with its tick interval.
func NewRetryWorker(queue *service.RetryQueue, bus service.BusPublisher, interval time.Duration, log *zap.Logger) *RetryWorker {
    w := &RetryWorker{
        queue:    queue,
        bus:      bus,
        interval: interval,
        log:      log,
        stop:     make(chan struct{}),
    }
    w.alert = func(env service.RetryEnvelope) {
        w.log.Error("event dropped after retry ceiling",
            zap.Int("retry_count", env.RetryCount),
            zap.Time("created_at", env.CreatedAt))
    }
    return w
}

// Start begins the drain loop in a background goroutine.
func (w *RetryWorker) Start() {
    w.wg.Add(1)
    go w.run()
}

// Stop shuts the loop down and waits for the current tick to finish.
func (w *RetryWorker) Stop() {
    close(w.stop)
    w.wg.Wait()
}

func (w *RetryWorker) run() {
    defer w.wg.Done()
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()
    for {
        select {
        case <-w.stop:
            return
        case <-ticker.C:
            if err := w.RunOnce(context.Background()); err != nil {
                w.log.Error("retry tick failed", zap.Error(err))
            }
        }
    }
}

// RunOnce processes a single bounded batch from the retry queue.
func (w *RetryWorker) RunOnce(ctx context.Context) error {
    envelopes, err := w.queue.PopBatch(ctx, retryBatchSize)
    if err != nil {
        return err
    }
    for _, env := range envelopes {
        if env.RetryCount >= retryCeiling {
            w.alert(env)
            continue
        }
        if err := w.bus.PublishRaw(ctx, env.Payload); err != nil {
            env.RetryCount++
            if pushErr := w.queue.Push(ctx, env); pushErr != nil {
                w.log.Error("failed to re-enqueue retry envelope", zap.Error(pushErr))
            }
            continue
        }
    }
    return nil
}
