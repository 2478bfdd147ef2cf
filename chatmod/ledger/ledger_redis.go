package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisCountPrefix   = "warncount/"
	redisHistoryPrefix = "warnhist/"
)

// RedisLedger stores the warning count as a plain counter and the history as
// a list of JSON entries. Escalate rides on INCR's atomicity for the returned
// count; count and history are written in one pipeline round-trip.
type RedisLedger struct {
	Client *redis.Client
}

func NewRedisLedger(redisURL string) (*RedisLedger, error) {
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
	return &RedisLedger{Client: rdb}, nil
}

func (l *RedisLedger) Escalate(ctx context.Context, userID, reason string, now time.Time) (int, error) {
	raw, err := json.Marshal(Entry{Time: now, Reason: reason})
	if err != nil {
		return 0, err
	}
	multi := l.Client.TxPipeline()
	incr := multi.Incr(ctx, redisCountPrefix+userID)
	multi.RPush(ctx, redisHistoryPrefix+userID, raw)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (l *RedisLedger) Get(ctx context.Context, userID string) (Record, error) {
	count, err := l.Client.Get(ctx, redisCountPrefix+userID).Int()
	if err == redis.Nil {
		count = 0
	} else if err != nil {
		return Record{}, err
	}
	items, err := l.Client.LRange(ctx, redisHistoryPrefix+userID, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return Record{}, err
	}
	rec := Record{Count: count}
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return Record{}, fmt.Errorf("corrupt ledger entry for %s: %w", userID, err)
		}
		rec.History = append(rec.History, e)
	}
	return rec, nil
}

// KEYS[1] history list, KEYS[2] count key
// ARGV[1] the raw last entry the sweep decision was based on
// Deletes both keys only if the last entry is still the one we judged stale;
// an Escalate landing after the read appends a fresh entry and the reset is
// skipped rather than wiping the new warning.
var sweepScript = redis.NewScript(`
if redis.call('LINDEX', KEYS[1], -1) == ARGV[1] then
	redis.call('DEL', KEYS[1], KEYS[2])
	return 1
end
return 0
`)

func (l *RedisLedger) SweepExpired(ctx context.Context, now time.Time, amnesty time.Duration) ([]string, error) {
	var reset []string
	iter := l.Client.Scan(ctx, 0, redisHistoryPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		userID := key[len(redisHistoryPrefix):]
		raw, err := l.Client.LIndex(ctx, key, -1).Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return reset, err
		}
		var last Entry
		if err := json.Unmarshal([]byte(raw), &last); err != nil {
			return reset, fmt.Errorf("corrupt ledger entry for %s: %w", userID, err)
		}
		if now.Sub(last.Time) < amnesty {
			continue
		}
		wiped, err := sweepScript.Run(ctx, l.Client, []string{key, redisCountPrefix + userID}, raw).Int64()
		if err != nil {
			return reset, err
		}
		if wiped == 0 {
			// a warning landed while we were deciding; the record is fresh now
			continue
		}
		reset = append(reset, userID)
	}
	if err := iter.Err(); err != nil {
		return reset, err
	}
	return reset, nil
}
