package service

import (
    "context"
    "fmt"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
)

// Ranking window TTLs. Each window outlives its period by a margin so a
// reader can still see the window that just closed; after that the key
// expires on its own.
const (
    rankingDailyTTL   = 2 * 24 * time.Hour
    rankingWeeklyTTL  = 8 * 24 * time.Hour
    rankingMonthlyTTL = 32 * 24 * time.Hour
)

// RankingUpdater maintains per-schedule popularity counters in three
// rolling windows (daily, weekly, monthly), each a Redis sorted set keyed
// by period and date with its own TTL. Updates are best-effort: failures
// are logged and swallowed so ranking can never affect payment
// correctness.
type RankingUpdater struct {
    rdb *redis.Client
    log *zap.Logger
}

// NewRankingUpdater returns a RankingUpdater bound to the given client.
func NewRankingUpdater(rdb *redis.Client, log *zap.Logger) *RankingUpdater {
    return &RankingUpdater{rdb: rdb, log: log}
}

// Record increments the schedule's counter in each rolling window for the
// given settlement time. The TTL is set only when the key is created, so
// repeated increments never push a window's expiry out.
func (r *RankingUpdater) Record(ctx context.Context, scheduleID uint64, at time.Time) {
    at = at.UTC()
    member := strconv.FormatUint(scheduleID, 10)
    year, week := at.ISOWeek()
    windows := []struct {
        key string
        ttl time.Duration
    }{
        {fmt.Sprintf("ranking:daily:%s", at.Format("20060102")), rankingDailyTTL},
        {fmt.Sprintf("ranking:weekly:%04dW%02d", year, week), rankingWeeklyTTL},
        {fmt.Sprintf("ranking:monthly:%s", at.Format("200601")), rankingMonthlyTTL},
    }
    for _, w := range windows {
        if err := r.rdb.ZIncrBy(ctx, w.key, 1, member).Err(); err != nil {
            r.log.Warn("ranking increment failed", zap.String("key", w.key), zap.Error(err))
            continue
        }
        if err := r.rdb.ExpireNX(ctx, w.key, w.ttl).Err(); err != nil {
            r.log.Warn("ranking expire failed", zap.String("key", w.key), zap.Error(err))
        }
    }
}

// Top returns the scheduleID/score pairs with the highest counters in the
// window key, best first.
func (r *RankingUpdater) Top(ctx context.Context, key string, n int64) ([]redis.Z, error) {
    return r.rdb.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
}
