package window

import (
	"sync"
	"time"

	"github.com/limitwarden/limitwarden/internal/policy"
)

// Stats summarizes the current window for one key.
type Stats struct {
	Allowed      int64   // Admitted requests across the window.
	Blocked      int64   // Blocked requests across the window.
	AvgRate      float64 // Mean admitted requests per second.
	CurrentRate  float64 // Admitted requests in the newest second.
	BlockedRatio float64 // Blocked share of all requests in the window.
	Samples      int     // Number of samples currently held.
}

// Collector owns the per-key sample rings and tracks key activity for the
// arbiter's active-key scan.
type Collector struct {
	capacity int
	rings    sync.Map // policy.Key -> *Ring
	lastSeen sync.Map // policy.Key -> int64 unix second
}

// NewCollector constructs a Collector whose rings hold capacity samples.
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Collector{capacity: capacity}
}

// ring returns the Ring for key, creating it on first use.
func (c *Collector) ring(key policy.Key) *Ring {
	if got, ok := c.rings.Load(key); ok {
		return got.(*Ring)
	}
	got, _ := c.rings.LoadOrStore(key, NewRing(c.capacity))
	return got.(*Ring)
}

// Record appends one admission outcome for key and marks the key active.
func (c *Collector) Record(key policy.Key, now time.Time, allowed bool) {
	c.ring(key).Record(now, allowed)
	c.lastSeen.Store(key, now.Unix())
}

// Snapshot returns the window samples for key, oldest first.
func (c *Collector) Snapshot(key policy.Key, now time.Time) []Sample {
	if got, ok := c.rings.Load(key); ok {
		return got.(*Ring).Snapshot(now)
	}
	return nil
}

// Stats aggregates the window for key.
func (c *Collector) Stats(key policy.Key, now time.Time) Stats {
	samples := c.Snapshot(key, now)
	var st Stats
	st.Samples = len(samples)
	if len(samples) == 0 {
		return st
	}
	for _, s := range samples {
		st.Allowed += s.Allowed
		st.Blocked += s.Blocked
	}
	st.AvgRate = float64(st.Allowed) / float64(len(samples))
	st.CurrentRate = float64(samples[len(samples)-1].Allowed)
	if total := st.Allowed + st.Blocked; total > 0 {
		st.BlockedRatio = float64(st.Blocked) / float64(total)
	}
	return st
}

// ActiveKeys returns the keys that saw traffic within idleTTL of now.
func (c *Collector) ActiveKeys(now time.Time, idleTTL time.Duration) []policy.Key {
	cutoff := now.Add(-idleTTL).Unix()
	var keys []policy.Key
	c.lastSeen.Range(func(k, v any) bool {
		if v.(int64) >= cutoff {
			keys = append(keys, k.(policy.Key))
		}
		return true
	})
	return keys
}

// EvictIdle drops ring state for keys idle longer than idleTTL and returns
// how many were evicted.
func (c *Collector) EvictIdle(now time.Time, idleTTL time.Duration) int {
	cutoff := now.Add(-idleTTL).Unix()
	evicted := 0
	c.lastSeen.Range(func(k, v any) bool {
		if v.(int64) < cutoff {
			c.lastSeen.Delete(k)
			c.rings.Delete(k)
			evicted++
		}
		return true
	})
	return evicted
}

// Capacity returns the configured window capacity.
func (c *Collector) Capacity() int {
	return c.capacity
}
