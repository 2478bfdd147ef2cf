package cooldown

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisGatePrefix = "confirm/"

// RedisGate uses SET NX with a TTL: the first confirm in a cooldown period
// owns the key, later ones read the remaining TTL.
type RedisGate struct {
	Client   *redis.Client
	Cooldown time.Duration
}

func NewRedisGate(redisURL string, cooldown time.Duration) (*RedisGate, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisGate{Client: rdb, Cooldown: cooldown}, nil
}

func (g *RedisGate) TryConfirm(ctx context.Context, userID string, now time.Time) (bool, time.Duration, error) {
	key := redisGatePrefix + userID
	ok, err := g.Client.SetNX(ctx, key, now.UnixMilli(), g.Cooldown).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	remaining, err := g.Client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}
