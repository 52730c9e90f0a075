// Package revenue keeps tier-weighted accounting of admission outcomes.
package revenue

import (
	"sync"

	"github.com/limitwarden/limitwarden/internal/metrics"
	"github.com/limitwarden/limitwarden/internal/tier"
)

// Totals holds the monotonic revenue counters for one tier, in dollars.
type Totals struct {
	Protected float64 `json:"protected"` // Revenue of admitted requests.
	Lost      float64 `json:"lost"`      // Revenue of blocked requests.
}

// Ledger accumulates per-tier revenue impact from admission outcomes. Counters
// only ever increase.
type Ledger struct {
	catalog *tier.Catalog

	mu     sync.Mutex
	totals map[string]*Totals
}

// NewLedger constructs a Ledger weighted by the catalog's revenue weights.
func NewLedger(catalog *tier.Catalog) *Ledger {
	return &Ledger{catalog: catalog, totals: make(map[string]*Totals)}
}

// Record applies one admission outcome for tierName.
func (l *Ledger) Record(tierName string, allowed bool) {
	if l == nil {
		return
	}
	weight := l.catalog.RevenueWeight(tierName)

	l.mu.Lock()
	t := l.totals[tierName]
	if t == nil {
		t = &Totals{}
		l.totals[tierName] = t
	}
	if allowed {
		t.Protected += weight
	} else {
		t.Lost += weight
	}
	l.mu.Unlock()

	if allowed {
		metrics.RevenueProtectedTotal.WithLabelValues(tierName).Add(weight)
	} else {
		metrics.RevenueLostTotal.WithLabelValues(tierName).Add(weight)
	}
}

// Snapshot returns a copy of all per-tier totals.
func (l *Ledger) Snapshot() map[string]Totals {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Totals, len(l.totals))
	for name, t := range l.totals {
		out[name] = *t
	}
	return out
}

// Tier returns the totals for one tier.
func (l *Ledger) Tier(tierName string) Totals {
	if l == nil {
		return Totals{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t := l.totals[tierName]; t != nil {
		return *t
	}
	return Totals{}
}
