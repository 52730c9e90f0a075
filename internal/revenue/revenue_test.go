package revenue

import (
	"math"
	"testing"

	"github.com/limitwarden/limitwarden/internal/tier"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecord_AccumulatesWeightedTotals(t *testing.T) {
	ledger := NewLedger(tier.NewCatalog(nil))

	for i := 0; i < 3; i++ {
		ledger.Record(tier.Enterprise, true)
	}
	for i := 0; i < 2; i++ {
		ledger.Record(tier.Enterprise, false)
	}
	ledger.Record(tier.Free, false)

	ent := ledger.Tier(tier.Enterprise)
	if !almostEqual(ent.Protected, 0.60) {
		t.Fatalf("expected protected 0.60, got %.4f", ent.Protected)
	}
	if !almostEqual(ent.Lost, 0.40) {
		t.Fatalf("expected lost 0.40, got %.4f", ent.Lost)
	}

	free := ledger.Tier(tier.Free)
	if !almostEqual(free.Lost, 0.01) {
		t.Fatalf("expected lost 0.01, got %.4f", free.Lost)
	}
}

func TestSnapshot_CopiesTotals(t *testing.T) {
	ledger := NewLedger(tier.NewCatalog(nil))
	ledger.Record(tier.Pro, true)

	snap := ledger.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 tier in snapshot, got %d", len(snap))
	}
	got := snap[tier.Pro]
	got.Protected = 999

	if ledger.Tier(tier.Pro).Protected == 999 {
		t.Fatalf("snapshot must not alias ledger state")
	}
}

func TestTier_UnknownTierIsZero(t *testing.T) {
	ledger := NewLedger(tier.NewCatalog(nil))
	if totals := ledger.Tier("nobody"); totals.Protected != 0 || totals.Lost != 0 {
		t.Fatalf("expected zero totals for unknown tier, got %+v", totals)
	}
}
