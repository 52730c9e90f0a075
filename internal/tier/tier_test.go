package tier

import "testing"

func TestLookup_UnknownTierGetsDefaultBounds(t *testing.T) {
	catalog := NewCatalog(nil)

	got, ok := catalog.Lookup("platinum")
	if ok {
		t.Fatalf("expected unknown tier to be reported as unknown")
	}
	if got.BaselineRPS != 3 || got.CapRPS != 15 || got.Burst != 10 {
		t.Fatalf("expected free-tier bounds for unknown tier, got %+v", got)
	}
}

func TestLookup_DefaultCatalog(t *testing.T) {
	catalog := NewCatalog(nil)

	pro, ok := catalog.Lookup(Pro)
	if !ok {
		t.Fatalf("expected pro tier to exist")
	}
	if pro.BaselineRPS != 8 || pro.CapRPS != 50 || pro.Burst != 20 || pro.RevenueWeight != 0.05 {
		t.Fatalf("unexpected pro tier: %+v", pro)
	}
}

func TestNewCatalog_NormalizesBounds(t *testing.T) {
	catalog := NewCatalog([]Tier{
		{Name: " gold ", BaselineRPS: 10, CapRPS: 5, Burst: 0, RevenueWeight: -1},
		{Name: "", BaselineRPS: 1, CapRPS: 2},
	})

	gold, ok := catalog.Lookup("gold")
	if !ok {
		t.Fatalf("expected trimmed name to resolve")
	}
	if gold.CapRPS != gold.BaselineRPS {
		t.Fatalf("expected cap raised to baseline, got cap=%.2f baseline=%.2f", gold.CapRPS, gold.BaselineRPS)
	}
	if gold.Burst != 10 {
		t.Fatalf("expected default burst 10, got %d", gold.Burst)
	}
	if gold.RevenueWeight != 0 {
		t.Fatalf("expected negative weight floored at 0, got %.2f", gold.RevenueWeight)
	}
	if len(catalog.Names()) != 1 {
		t.Fatalf("expected nameless tier dropped, got %v", catalog.Names())
	}
}

func TestRevenueWeight(t *testing.T) {
	catalog := NewCatalog(nil)
	if w := catalog.RevenueWeight(Enterprise); w != 0.20 {
		t.Fatalf("expected enterprise weight 0.20, got %.2f", w)
	}
	if w := catalog.RevenueWeight("unknown"); w != 0.01 {
		t.Fatalf("expected default weight 0.01, got %.2f", w)
	}
}
