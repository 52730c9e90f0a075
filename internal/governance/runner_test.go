package governance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/limitwarden/limitwarden/internal/models"
	"github.com/limitwarden/limitwarden/internal/oracle"
	"github.com/limitwarden/limitwarden/internal/policy"
	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
	"github.com/limitwarden/limitwarden/internal/tier"
)

func TestSweep_AutoApproveMode(t *testing.T) {
	now := time.Now().UTC()
	queue, store := newTestQueue(t, func() time.Time { return now })
	if errBind := internalsettings.Bind(queue.db); errBind != nil {
		t.Fatalf("bind settings: %v", errBind)
	}
	if errUpdate := internalsettings.Update(internalsettings.GovernanceAutoApproveKey, json.RawMessage(`true`)); errUpdate != nil {
		t.Fatalf("enable auto-approve: %v", errUpdate)
	}
	if errUpdate := internalsettings.Update(internalsettings.GovernanceGraceSecondsKey, json.RawMessage(`30`)); errUpdate != nil {
		t.Fatalf("set grace: %v", errUpdate)
	}

	key := policy.Key{Tier: tier.Pro, Endpoint: "/api/search"}
	entry, errEnqueue := queue.Enqueue(context.Background(), key, oracle.Decision{
		Action:     oracle.ActionUp,
		NewRPS:     20,
		NewBurst:   60,
		Confidence: 0.9,
	}, 8)
	if errEnqueue != nil {
		t.Fatalf("enqueue: %v", errEnqueue)
	}

	runner := NewRunner(queue)

	// Inside the grace period nothing moves.
	runner.Sweep(context.Background())
	reloaded, errGet := queue.Get(context.Background(), entry.ID)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if reloaded.Status != models.GovernancePending {
		t.Fatalf("expected entry still pending, got %s", reloaded.Status)
	}

	now = now.Add(time.Minute)
	runner.Sweep(context.Background())
	reloaded, errGet = queue.Get(context.Background(), entry.ID)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if reloaded.Status != models.GovernanceApproved {
		t.Fatalf("expected auto-approved entry, got %s", reloaded.Status)
	}
	if reloaded.DecidedBy != DecidedByAuto {
		t.Fatalf("expected decider %q, got %q", DecidedByAuto, reloaded.DecidedBy)
	}

	if pol := store.Snapshot(key); pol.CurrentLimit != 20 {
		t.Fatalf("expected committed limit 20, got %.2f", pol.CurrentLimit)
	}
}

func TestSweep_ManualModeExpiresByTTL(t *testing.T) {
	now := time.Now().UTC()
	queue, _ := newTestQueue(t, func() time.Time { return now })
	if errBind := internalsettings.Bind(queue.db); errBind != nil {
		t.Fatalf("bind settings: %v", errBind)
	}
	if errUpdate := internalsettings.Update(internalsettings.GovernanceAutoApproveKey, json.RawMessage(`false`)); errUpdate != nil {
		t.Fatalf("disable auto-approve: %v", errUpdate)
	}
	if errUpdate := internalsettings.Update(internalsettings.GovernanceEntryTTLSecondsKey, json.RawMessage(`60`)); errUpdate != nil {
		t.Fatalf("set ttl: %v", errUpdate)
	}

	entry, errEnqueue := queue.Enqueue(context.Background(), policy.Key{Tier: tier.Free, Endpoint: "/api/items"}, oracle.Decision{
		Action:     oracle.ActionUp,
		NewRPS:     12,
		NewBurst:   30,
		Confidence: 0.8,
	}, 3)
	if errEnqueue != nil {
		t.Fatalf("enqueue: %v", errEnqueue)
	}

	runner := NewRunner(queue)
	now = now.Add(5 * time.Minute)
	runner.Sweep(context.Background())

	reloaded, errGet := queue.Get(context.Background(), entry.ID)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if reloaded.Status != models.GovernanceExpired {
		t.Fatalf("expected expired entry, got %s", reloaded.Status)
	}
	if reloaded.DecidedBy != DecidedByExpiry {
		t.Fatalf("expected decider %q, got %q", DecidedByExpiry, reloaded.DecidedBy)
	}
}
