package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RewardGuard tracks per-user daily action counts in Redis so engagement
// rewards stop paying once a cap is reached. Counters live under
// user:daily:{userID}:{category}:{YYYY-MM-DD} and expire on their own.
type RewardGuard struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRewardGuard(rdb *redis.Client) *RewardGuard {
	return &RewardGuard{redis: rdb, now: time.Now}
}

// BumpDailyAction increments today's counter for the category and returns the
// count after the increment. The TTL is set only when the key is fresh so the
// window stays anchored to the first action of the day.
func (g *RewardGuard) BumpDailyAction(ctx context.Context, userID uint, category string) (int64, error) {
	key := fmt.Sprintf("%s:%d:%s:%s", dailyActionKeyPrefix, userID, category, g.now().Format("2006-01-02"))
	count, err := g.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		g.redis.Expire(ctx, key, dailyActionTTL)
	}
	return count, nil
}

// DailyCount reads today's counter without incrementing it.
func (g *RewardGuard) DailyCount(ctx context.Context, userID uint, category string) (int64, error) {
	key := fmt.Sprintf("%s:%d:%s:%s", dailyActionKeyPrefix, userID, category, g.now().Format("2006-01-02"))
	count, err := g.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}
