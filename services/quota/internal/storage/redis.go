package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "quota:rl:"

// Scores are unix microseconds; float64 holds them exactly for the foreseeable future.
var pruneScript = redis.NewScript(`
local key = KEYS[1]
local cutoff = ARGV[1]

redis.call("ZREMRANGEBYSCORE", key, "-inf", cutoff)

local entries = redis.call("ZRANGE", key, 0, -1, "WITHSCORES")
local scores = {}
for i = 2, #entries, 2 do
  scores[#scores + 1] = entries[i]
end
return scores
`)

var appendScript = redis.NewScript(`
local key = KEYS[1]
local score = ARGV[1]
local member = ARGV[2]
local ttl_ms = tonumber(ARGV[3])

redis.call("ZADD", key, score, member)
if ttl_ms > 0 then
  redis.call("PEXPIRE", key, ttl_ms)
end
return 1
`)

// RedisStore keeps one sorted set per record. Members carry a random suffix so two hits
// in the same microsecond are both counted.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore builds a store whose keys expire ttl after their newest hit. ttl should
// be the lookback window; a zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) recordKey(key, class string) string {
	return s.prefix + class + ":" + key
}

func (s *RedisStore) ReadAndPrune(ctx context.Context, key, class string, now time.Time, lookback time.Duration) ([]time.Time, error) {
	if lookback <= 0 {
		return nil, ErrInvalidWindow
	}
	cutoff := now.Add(-lookback).UnixMicro()

	res, err := pruneScript.Run(ctx, s.client, []string{s.recordKey(key, class)}, cutoff).Result()
	if err != nil {
		return nil, fmt.Errorf("redis prune: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected redis response")
	}

	hits := make([]time.Time, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected redis response")
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse redis score %q: %w", raw, err)
		}
		hits = append(hits, time.UnixMicro(int64(score)))
	}
	return hits, nil
}

func (s *RedisStore) Append(ctx context.Context, key, class string, ts time.Time) error {
	score := ts.UnixMicro()
	member := strconv.FormatInt(score, 10) + ":" + uuid.NewString()
	ttlMS := int64(s.ttl / time.Millisecond)

	if err := appendScript.Run(ctx, s.client, []string{s.recordKey(key, class)}, score, member, ttlMS).Err(); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
