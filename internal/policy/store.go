package policy

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/limitwarden/limitwarden/internal/tier"
)

// Policy is the committed limit state for one key. Values are immutable once
// published; mutations install a fresh snapshot.
type Policy struct {
	CurrentLimit  float64   // Sustained requests per second.
	BurstCapacity int       // Token bucket depth above the sustained rate.
	TierBaseline  float64   // Lower bound, from the tier catalog.
	TierCap       float64   // Upper bound, from the tier catalog.
	Version       int64     // Incremented on every commit.
	UpdatedAt     time.Time // Time of the last commit.
}

// record holds the live snapshot for one key. Readers load the pointer
// without locking; commits serialize on mu.
type record struct {
	mu  sync.Mutex
	cur atomic.Pointer[Policy]
}

// Store owns all per-key policies. Reads never block on writers.
type Store struct {
	catalog *tier.Catalog
	nowFn   func() time.Time
	records sync.Map // Key -> *record
}

// NewStore constructs a Store over the given tier catalog.
func NewStore(catalog *tier.Catalog, nowFn func() time.Time) *Store {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Store{catalog: catalog, nowFn: nowFn}
}

// baseline builds the initial policy for a key from its tier bounds.
func (s *Store) baseline(key Key) *Policy {
	t, _ := s.catalog.Lookup(key.Tier)
	return &Policy{
		CurrentLimit:  t.BaselineRPS,
		BurstCapacity: t.Burst,
		TierBaseline:  t.BaselineRPS,
		TierCap:       t.CapRPS,
		Version:       1,
		UpdatedAt:     s.nowFn().UTC(),
	}
}

// ensure returns the record for key, creating it at the tier baseline.
func (s *Store) ensure(key Key) *record {
	if got, ok := s.records.Load(key); ok {
		return got.(*record)
	}
	rec := &record{}
	rec.cur.Store(s.baseline(key))
	got, _ := s.records.LoadOrStore(key, rec)
	return got.(*record)
}

// Snapshot returns the committed policy for key, lazily initializing the
// tier baseline for unknown keys. It never fails.
func (s *Store) Snapshot(key Key) Policy {
	return *s.ensure(key).cur.Load()
}

// Commit installs a new limit for key, clamped to the tier bounds so that
// baseline <= limit <= cap always holds. A commit against an evicted or
// never-seen key recreates the baseline record first. The returned policy is
// the snapshot readers observe after the swap.
func (s *Store) Commit(key Key, limit float64, burst int) Policy {
	rec := s.ensure(key)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	old := rec.cur.Load()
	next := *old
	next.CurrentLimit = clamp(limit, old.TierBaseline, old.TierCap)
	if burst > 0 {
		next.BurstCapacity = burst
	}
	next.Version = old.Version + 1
	next.UpdatedAt = s.nowFn().UTC()
	rec.cur.Store(&next)
	return next
}

// Reset restores key to its tier baseline.
func (s *Store) Reset(key Key) Policy {
	rec := s.ensure(key)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := s.baseline(key)
	next.Version = rec.cur.Load().Version + 1
	rec.cur.Store(next)
	return *next
}

// ResetAll restores every tracked key to its tier baseline.
func (s *Store) ResetAll() {
	s.records.Range(func(k, _ any) bool {
		s.Reset(k.(Key))
		return true
	})
}

// Drop forgets the record for key entirely.
func (s *Store) Drop(key Key) {
	s.records.Delete(key)
}

// Range calls fn for every tracked key and its current snapshot.
func (s *Store) Range(fn func(Key, Policy) bool) {
	s.records.Range(func(k, v any) bool {
		return fn(k.(Key), *v.(*record).cur.Load())
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
