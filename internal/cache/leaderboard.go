package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey = "drivers:leaderboard"
	leaderboardTTL = 24 * time.Hour
)

// RankedDriver is one leaderboard slot: a driver and their career score.
type RankedDriver struct {
	DriverID string
	Score    int
}

// LeaderboardCache keeps the driver progression ranking in a Redis sorted
// set. The database stays authoritative; callers rebuild the set from it
// whenever the cache comes back empty.
type LeaderboardCache interface {
	UpdateScore(ctx context.Context, driverID string, score int) error
	Top(ctx context.Context, n int) ([]RankedDriver, error)
	Rebuild(ctx context.Context, entries []RankedDriver) error
}

type leaderboardCache struct {
	redis *redis.Client
}

func NewLeaderboardCache(redisClient *redis.Client) LeaderboardCache {
	return &leaderboardCache{redis: redisClient}
}

func (c *leaderboardCache) UpdateScore(ctx context.Context, driverID string, score int) error {
	if err := c.redis.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(score),
		Member: driverID,
	}).Err(); err != nil {
		return err
	}
	return c.redis.Expire(ctx, leaderboardKey, leaderboardTTL).Err()
}

func (c *leaderboardCache) Top(ctx context.Context, n int) ([]RankedDriver, error) {
	entries, err := c.redis.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	result := make([]RankedDriver, 0, len(entries))
	for _, z := range entries {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		result = append(result, RankedDriver{
			DriverID: id,
			Score:    int(z.Score),
		})
	}
	return result, nil
}

func (c *leaderboardCache) Rebuild(ctx context.Context, entries []RankedDriver) error {
	if len(entries) == 0 {
		return nil
	}

	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: float64(e.Score), Member: e.DriverID}
	}

	pipe := c.redis.TxPipeline()
	pipe.Del(ctx, leaderboardKey)
	pipe.ZAdd(ctx, leaderboardKey, members...)
	pipe.Expire(ctx, leaderboardKey, leaderboardTTL)
	_, err := pipe.Exec(ctx)
	return err
}
