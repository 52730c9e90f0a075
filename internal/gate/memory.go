package gate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/limitwarden/limitwarden/internal/policy"
)

// bucket is the refillable token state for one key. Each bucket carries its
// own lock so contention stays per key.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// MemoryLimiter implements a per-key token bucket in process memory.
type MemoryLimiter struct {
	buckets sync.Map // policy.Key -> *bucket
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{}
}

// Allow refills the key's bucket against the committed limit and consumes one
// token when capacity remains. A new key starts with a full burst allowance.
func (l *MemoryLimiter) Allow(_ context.Context, key policy.Key, pol policy.Policy, now time.Time) (Result, error) {
	if pol.CurrentLimit <= 0 {
		return Result{Allowed: true}, nil
	}

	b := l.bucket(key, pol, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	burst := float64(pol.BurstCapacity)
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(burst, b.tokens+pol.CurrentLimit*elapsed)
		b.last = now
	}

	reset := now.Add(time.Duration(float64(time.Second) / pol.CurrentLimit))
	if b.tokens < 1 {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	b.tokens--
	return Result{Allowed: true, Remaining: b.tokens, Reset: reset}, nil
}

func (l *MemoryLimiter) bucket(key policy.Key, pol policy.Policy, now time.Time) *bucket {
	if got, ok := l.buckets.Load(key); ok {
		return got.(*bucket)
	}
	fresh := &bucket{tokens: float64(pol.BurstCapacity), last: now}
	got, _ := l.buckets.LoadOrStore(key, fresh)
	return got.(*bucket)
}

// Forget drops the bucket state for key.
func (l *MemoryLimiter) Forget(key policy.Key) {
	l.buckets.Delete(key)
}
