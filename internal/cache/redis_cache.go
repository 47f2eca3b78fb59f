package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wa:delivery:"

type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl, now: time.Now}
}

type claimValue struct {
	ClaimedAt time.Time `json:"claimedAt"`
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	b, err := json.Marshal(claimValue{ClaimedAt: g.now().UTC()})
	if err != nil {
		return false, err
	}
	return g.rdb.SetNX(ctx, keyPrefix+key, b, g.ttl).Result()
}
