package gate

import (
	"context"
	"testing"
	"time"

	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/revenue"
	"github.com/limitwarden/limitwarden/internal/tier"
	"github.com/limitwarden/limitwarden/internal/window"
)

func newTestGate(nowFn func() time.Time) (*Gate, *window.Collector, *revenue.Ledger) {
	catalog := tier.NewCatalog(nil)
	store := policy.NewStore(catalog, nowFn)
	windows := window.NewCollector(window.DefaultCapacity)
	ledger := revenue.NewLedger(catalog)
	return New(store, windows, ledger, nil, nowFn, nil), windows, ledger
}

func TestCheck_AllowsUpToBurstThenBlocks(t *testing.T) {
	now := time.Unix(1000, 0)
	g, _, _ := newTestGate(func() time.Time { return now })
	key := policy.Key{Tier: tier.Free, Endpoint: "/api/items"}

	allowed, blocked := 0, 0
	for i := 0; i < 15; i++ {
		if g.Check(context.Background(), key).Allowed {
			allowed++
		} else {
			blocked++
		}
	}
	if allowed != 10 {
		t.Fatalf("expected free burst of 10 admitted, got %d", allowed)
	}
	if blocked != 5 {
		t.Fatalf("expected 5 blocked, got %d", blocked)
	}
}

func TestCheck_RefillsAtCommittedRate(t *testing.T) {
	now := time.Unix(2000, 0)
	g, _, _ := newTestGate(func() time.Time { return now })
	key := policy.Key{Tier: tier.Free, Endpoint: "/api/items"}

	for i := 0; i < 10; i++ {
		g.Check(context.Background(), key)
	}
	if g.Check(context.Background(), key).Allowed {
		t.Fatalf("expected bucket drained")
	}

	// One second at the free baseline of 3 rps refills three tokens.
	now = now.Add(time.Second)
	admitted := 0
	for i := 0; i < 5; i++ {
		if g.Check(context.Background(), key).Allowed {
			admitted++
		}
	}
	if admitted != 3 {
		t.Fatalf("expected 3 admitted after refill, got %d", admitted)
	}
}

func TestCheck_RecordsWindowAndRevenue(t *testing.T) {
	now := time.Unix(3000, 0)
	g, windows, ledger := newTestGate(func() time.Time { return now })
	key := policy.Key{Tier: tier.Pro, Endpoint: "/api/search"}

	for i := 0; i < 3; i++ {
		g.Check(context.Background(), key)
	}

	st := windows.Stats(key, now)
	if st.Allowed != 3 {
		t.Fatalf("expected 3 recorded admissions, got %d", st.Allowed)
	}
	totals := ledger.Tier(tier.Pro)
	if totals.Protected <= 0.149 || totals.Protected >= 0.151 {
		t.Fatalf("expected protected revenue ~0.15, got %.4f", totals.Protected)
	}
}

func TestForget_RestoresFullBurst(t *testing.T) {
	now := time.Unix(4000, 0)
	g, _, _ := newTestGate(func() time.Time { return now })
	key := policy.Key{Tier: tier.Free, Endpoint: "/api/items"}

	for i := 0; i < 10; i++ {
		g.Check(context.Background(), key)
	}
	if g.Check(context.Background(), key).Allowed {
		t.Fatalf("expected bucket drained")
	}

	g.Forget(key)
	if !g.Check(context.Background(), key).Allowed {
		t.Fatalf("expected fresh bucket after forget")
	}
}

func TestMemoryLimiter_UnlimitedWhenNoPolicy(t *testing.T) {
	limiter := NewMemoryLimiter()
	result, err := limiter.Allow(context.Background(), policy.Key{Tier: "x", Endpoint: "/"}, policy.Policy{}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected zero-limit policy to admit")
	}
}
