package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQuota implements QuotaLimiter with a per-tenant counter that is
// atomically incremented and expires after the window.  The INCR and
// EXPIRE run in a pipeline, and the counter key embeds no request
// state, so concurrent senders across processes share one budget.
type RedisQuota struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisQuota returns a limiter allowing limit sends per tenant per
// window.
func NewRedisQuota(rdb *redis.Client, limit int, window time.Duration) *RedisQuota {
	return &RedisQuota{rdb: rdb, limit: limit, window: window, prefix: "notify_quota"}
}

// Allow consumes one unit of the tenant's budget and reports whether
// the send may proceed.  A nil client (Redis unavailable at startup)
// degrades to always-allow, matching how the rest of the system treats
// a missing Redis.
func (q *RedisQuota) Allow(ctx context.Context, tenantID uint64) (bool, error) {
	if q.rdb == nil {
		return true, nil
	}
	key := fmt.Sprintf("%s:%d", q.prefix, tenantID)
	pipe := q.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, q.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(q.limit), nil
}
