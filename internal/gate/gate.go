// Package gate implements the admission hot path: policy snapshot reads,
// per-key token buckets, and outcome recording. No failure in this package
// ever blocks a request; every degradation falls back to the local bucket.
package gate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/limitwarden/limitwarden/internal/metrics"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/revenue"
	"github.com/limitwarden/limitwarden/internal/window"
)

const redisBreakerDuration = 30 * time.Second

// SettingsConfig captures the gate backend settings snapshot.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisConfig struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Gate is the admission gate. Check is safe for high concurrency: policy
// reads are lock-free snapshots and bucket state is locked per key.
type Gate struct {
	store    *policy.Store
	windows  *window.Collector
	ledger   *revenue.Ledger
	provider SettingsProvider
	nowFn    func() time.Time

	memory         *MemoryLimiter
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redisLimiter *RedisLimiter
	redisCfg     redisConfig
	breakerUntil time.Time
}

// New constructs a Gate with default dependencies when nil.
func New(store *policy.Store, windows *window.Collector, ledger *revenue.Ledger, provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Gate {
	if provider == nil {
		provider = func() SettingsConfig { return SettingsConfig{} }
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Gate{
		store:          store,
		windows:        windows,
		ledger:         ledger,
		provider:       provider,
		nowFn:          nowFn,
		memory:         NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// Check admits or blocks one request for key against the committed policy.
// Unknown keys are lazily initialized at the tier baseline; the check itself
// never errors and never blocks on policy writers.
func (g *Gate) Check(ctx context.Context, key policy.Key) Result {
	now := g.nowFn()
	pol := g.store.Snapshot(key)

	result, served := Result{}, false
	if cfg := g.provider(); cfg.RedisEnabled {
		result, served = g.allowRedis(ctx, key, pol, now, cfg)
	}
	if !served {
		result, _ = g.memory.Allow(ctx, key, pol, now)
	}

	g.windows.Record(key, now, result.Allowed)
	g.ledger.Record(key.Tier, result.Allowed)

	outcome := "blocked"
	if result.Allowed {
		outcome = "ok"
	}
	metrics.RequestsTotal.WithLabelValues(key.Tier, key.Endpoint, outcome).Inc()
	metrics.PolicyRPS.WithLabelValues(key.Tier, key.Endpoint).Set(pol.CurrentLimit)
	metrics.PolicyBurst.WithLabelValues(key.Tier, key.Endpoint).Set(float64(pol.BurstCapacity))
	return result
}

func (g *Gate) allowRedis(ctx context.Context, key policy.Key, pol policy.Policy, now time.Time, cfg SettingsConfig) (Result, bool) {
	if g == nil {
		return Result{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if g.isBreakerActive(now) {
		return Result{}, false
	}
	limiter, errEnsure := g.ensureRedis(ctx, cfg)
	if errEnsure != nil {
		g.tripBreaker(errEnsure, now)
		return Result{}, false
	}
	if limiter == nil {
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, pol, now)
	if errAllow != nil {
		g.tripBreaker(errAllow, now)
		return Result{}, false
	}
	return result, true
}

func (g *Gate) isBreakerActive(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.breakerUntil.IsZero() {
		return false
	}
	if now.Before(g.breakerUntil) {
		return true
	}
	g.breakerUntil = time.Time{}
	return false
}

func (g *Gate) tripBreaker(err error, now time.Time) {
	if err == nil || g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.breakerUntil.IsZero() && now.Before(g.breakerUntil) {
		return
	}
	g.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("gate: redis unavailable, falling back to local buckets")
}

func (g *Gate) ensureRedis(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("gate redis: missing address")
	}

	nextCfg := redisConfig{
		addr:     addr,
		password: strings.TrimSpace(cfg.RedisPassword),
		prefix:   strings.TrimSpace(cfg.RedisPrefix),
		db:       cfg.RedisDB,
	}
	if nextCfg.db < 0 {
		nextCfg.db = 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.redisLimiter != nil && g.redisCfg == nextCfg {
		return g.redisLimiter, nil
	}
	if g.redisLimiter != nil {
		_ = g.redisLimiter.Close()
		g.redisLimiter = nil
	}

	client := g.newRedisClient(&redis.Options{
		Addr:     nextCfg.addr,
		Password: nextCfg.password,
		DB:       nextCfg.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	g.redisLimiter = NewRedisLimiter(client, nextCfg.prefix)
	g.redisCfg = nextCfg
	return g.redisLimiter, nil
}

// Forget drops local bucket state for key, typically after a reset.
func (g *Gate) Forget(key policy.Key) {
	if g == nil {
		return
	}
	g.memory.Forget(key)
}

// DebugString summarizes the backend state for logs.
func (g *Gate) DebugString() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.redisLimiter != nil {
		return "redis:" + g.redisCfg.addr + "/db" + strconv.Itoa(g.redisCfg.db)
	}
	return "memory"
}
