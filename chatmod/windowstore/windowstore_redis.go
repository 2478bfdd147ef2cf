package windowstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix string = "window/"

// RedisWindowStore keeps each bucket in a sorted set scored by event time.
// The whole evaluate step runs as a server-side script so that concurrent
// evaluations of the same bucket cannot interleave between the count check
// and the append.
type RedisWindowStore struct {
	Client *redis.Client
}

func NewRedisWindowStore(redisURL string) (*RedisWindowStore, error) {
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
	return &RedisWindowStore{Client: rdb}, nil
}

// KEYS[1] window sorted set
// ARGV: now-millis, window-millis, max, dup-threshold, member, fingerprint
// Members are "<nanos>#<fingerprint>"; the fingerprint is everything past the
// first '#'.
var evaluateScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local dup = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window - 1)
local count = redis.call('ZCARD', key)
local verdict = 0
if count >= max then
	verdict = 1
elseif dup > 0 then
	-- count includes the incoming occurrence
	local dupes = 1
	for _, m in ipairs(redis.call('ZRANGE', key, 0, -1)) do
		local sep = string.find(m, '#', 1, true)
		if sep and string.sub(m, sep + 1) == ARGV[6] then
			dupes = dupes + 1
		end
	end
	if dupes >= dup then
		verdict = 2
	end
end
redis.call('ZADD', key, now, ARGV[5])
redis.call('PEXPIRE', key, window)
return {verdict, count}
`)

func (s *RedisWindowStore) Evaluate(ctx context.Context, bucket, fingerprint string, now time.Time, limit Limit) (Result, error) {
	key := redisWindowPrefix + bucket
	member := fmt.Sprintf("%d#%s", now.UnixNano(), fingerprint)
	vals, err := evaluateScript.Run(ctx, s.Client, []string{key},
		now.UnixMilli(), limit.Window.Milliseconds(), limit.Max, limit.DuplicateThreshold, member, fingerprint).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("unexpected script reply length: %d", len(vals))
	}
	res := Result{Count: int(vals[1])}
	switch vals[0] {
	case 1:
		res.Flagged = true
		res.Reason = ReasonRateLimit
	case 2:
		res.Flagged = true
		res.Reason = ReasonDuplicate
	}
	return res, nil
}
