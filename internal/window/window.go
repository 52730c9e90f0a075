package window

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of one-second samples retained per key.
const DefaultCapacity = 30

// Sample aggregates admission outcomes for one wall-clock second.
type Sample struct {
	Second  int64 // Unix second the sample covers.
	Allowed int64 // Requests admitted during the second.
	Blocked int64 // Requests blocked during the second.
}

// Ring is a fixed-capacity sliding window of contiguous per-second samples.
// The oldest sample is evicted when a new second begins and the window is
// full, so the length never exceeds the capacity.
type Ring struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample
}

// NewRing constructs a Ring with the given capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity, samples: make([]Sample, 0, capacity)}
}

// Record adds one outcome to the sample covering now's second. Seconds with
// no traffic between the previous sample and now are filled with zero
// samples so the window stays contiguous.
func (r *Ring) Record(now time.Time, allowed bool) {
	sec := now.Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.advanceLocked(sec)
	last := &r.samples[len(r.samples)-1]
	if allowed {
		last.Allowed++
	} else {
		last.Blocked++
	}
}

// advanceLocked appends zero samples up to and including sec.
func (r *Ring) advanceLocked(sec int64) {
	if len(r.samples) == 0 {
		r.samples = append(r.samples, Sample{Second: sec})
		return
	}
	newest := r.samples[len(r.samples)-1].Second
	if sec <= newest {
		return
	}
	gap := sec - newest
	if gap >= int64(r.capacity) {
		r.samples = r.samples[:0]
		r.samples = append(r.samples, Sample{Second: sec})
		return
	}
	for s := newest + 1; s <= sec; s++ {
		if len(r.samples) == r.capacity {
			copy(r.samples, r.samples[1:])
			r.samples = r.samples[:r.capacity-1]
		}
		r.samples = append(r.samples, Sample{Second: s})
	}
}

// Snapshot returns the samples ordered oldest to newest, advanced to now so
// that trailing idle seconds appear as zero samples.
func (r *Ring) Snapshot(now time.Time) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) > 0 {
		r.advanceLocked(now.Unix())
	}
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Full reports whether the window holds its full capacity of samples.
func (r *Ring) Full(now time.Time) bool {
	return len(r.Snapshot(now)) >= r.capacity
}

// Capacity returns the configured sample capacity.
func (r *Ring) Capacity() int {
	return r.capacity
}
