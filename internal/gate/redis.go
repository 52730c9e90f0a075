package gate

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/limitwarden/limitwarden/internal/policy"
)

const redisWindowTTLSeconds = 2

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter counts admissions per key and second in Redis so multiple gate
// instances share one budget. The per-second ceiling is limit plus the burst
// capacity, matching the local bucket's worst-case admissions in one second.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow increments the current second's counter and admits while it stays at
// or under the policy ceiling.
func (l *RedisLimiter) Allow(ctx context.Context, key policy.Key, pol policy.Policy, now time.Time) (Result, error) {
	if l == nil || l.client == nil {
		return Result{}, errors.New("gate redis: not initialized")
	}
	if pol.CurrentLimit <= 0 {
		return Result{Allowed: true}, nil
	}
	ceiling := int64(math.Ceil(pol.CurrentLimit)) + int64(pol.BurstCapacity)

	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()
	redisKey := l.buildKey(key, sec)
	res, errEval := redisIncrScript.Run(ctx, l.client, []string{redisKey}, redisWindowTTLSeconds).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, ok := res.(int64)
	if !ok {
		switch v := res.(type) {
		case int:
			count = int64(v)
		case uint64:
			count = int64(v)
		default:
			return Result{}, errors.New("gate redis: unexpected response type")
		}
	}
	if count > ceiling {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: float64(ceiling - count), Reset: reset}, nil
}

func (l *RedisLimiter) buildKey(key policy.Key, sec int64) string {
	secStr := strconv.FormatInt(sec, 10)
	if l.prefix == "" {
		return key.String() + ":" + secStr
	}
	return l.prefix + ":" + key.String() + ":" + secStr
}

// Close releases the underlying Redis client.
func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
