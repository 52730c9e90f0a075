package policy

import (
	"testing"
	"time"

	"github.com/limitwarden/limitwarden/internal/tier"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestSnapshot_InitializesAtTierBaseline(t *testing.T) {
	store := NewStore(tier.NewCatalog(nil), fixedNow)

	pol := store.Snapshot(Key{Tier: tier.Pro, Endpoint: "/api/search"})
	if pol.CurrentLimit != 8 {
		t.Fatalf("expected baseline limit 8, got %.2f", pol.CurrentLimit)
	}
	if pol.BurstCapacity != 20 {
		t.Fatalf("expected burst 20, got %d", pol.BurstCapacity)
	}
	if pol.TierBaseline != 8 || pol.TierCap != 50 {
		t.Fatalf("unexpected bounds: baseline=%.2f cap=%.2f", pol.TierBaseline, pol.TierCap)
	}
	if pol.Version != 1 {
		t.Fatalf("expected version 1, got %d", pol.Version)
	}
}

func TestCommit_ClampsToTierBounds(t *testing.T) {
	store := NewStore(tier.NewCatalog(nil), fixedNow)
	key := Key{Tier: tier.Free, Endpoint: "/api/items"}

	committed := store.Commit(key, 500, 30)
	if committed.CurrentLimit != 15 {
		t.Fatalf("expected limit clamped to cap 15, got %.2f", committed.CurrentLimit)
	}
	if committed.BurstCapacity != 30 {
		t.Fatalf("expected burst 30, got %d", committed.BurstCapacity)
	}
	if committed.Version != 2 {
		t.Fatalf("expected version 2, got %d", committed.Version)
	}

	committed = store.Commit(key, 0.5, 0)
	if committed.CurrentLimit != 3 {
		t.Fatalf("expected limit clamped to baseline 3, got %.2f", committed.CurrentLimit)
	}
	if committed.BurstCapacity != 30 {
		t.Fatalf("expected burst unchanged at 30, got %d", committed.BurstCapacity)
	}
	if committed.Version != 3 {
		t.Fatalf("expected version 3, got %d", committed.Version)
	}
}

func TestReset_RestoresBaselineAndBumpsVersion(t *testing.T) {
	store := NewStore(tier.NewCatalog(nil), fixedNow)
	key := Key{Tier: tier.Enterprise, Endpoint: "/api/export"}

	store.Commit(key, 100, 60)
	pol := store.Reset(key)
	if pol.CurrentLimit != 15 || pol.BurstCapacity != 40 {
		t.Fatalf("expected baseline 15/40 after reset, got %.2f/%d", pol.CurrentLimit, pol.BurstCapacity)
	}
	if pol.Version != 3 {
		t.Fatalf("expected version 3 after commit+reset, got %d", pol.Version)
	}
}

func TestRange_VisitsTrackedKeys(t *testing.T) {
	store := NewStore(tier.NewCatalog(nil), fixedNow)
	store.Snapshot(Key{Tier: tier.Free, Endpoint: "/a"})
	store.Snapshot(Key{Tier: tier.Pro, Endpoint: "/b"})

	seen := 0
	store.Range(func(Key, Policy) bool {
		seen++
		return true
	})
	if seen != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", seen)
	}
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("pro:/api/search")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	if key.Tier != "pro" || key.Endpoint != "/api/search" {
		t.Fatalf("unexpected key: %+v", key)
	}
	if _, errBad := ParseKey("no-separator"); errBad == nil {
		t.Fatalf("expected error for key without separator")
	}
}
