// Package arbiter runs the periodic decision cycle: it summarizes each active
// key's window, consults the oracle once, and merges the answer with tier
// bounds and governance rules. Oracle failures always leave policy unchanged.
package arbiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/governance"
	"github.com/limitwarden/limitwarden/internal/metrics"
	"github.com/limitwarden/limitwarden/internal/models"
	"github.com/limitwarden/limitwarden/internal/oracle"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/surge"
	"github.com/limitwarden/limitwarden/internal/tier"
	"github.com/limitwarden/limitwarden/internal/window"
)

// DefaultIdleTTL is how long a key may be quiet before the arbiter stops
// evaluating it and drops its window state.
const DefaultIdleTTL = 60 * time.Second

// Oracle is the decision service surface the arbiter consumes.
type Oracle interface {
	Consult(ctx context.Context, in oracle.Context) oracle.Result
}

// Arbiter owns the evaluation cycle over all active keys.
type Arbiter struct {
	db        *gorm.DB
	store     *policy.Store
	windows   *window.Collector
	predictor *surge.Predictor
	oracle    Oracle
	queue     *governance.Queue
	catalog   *tier.Catalog
	idleTTL   time.Duration
	nowFn     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Arbiter over the given components.
func New(db *gorm.DB, store *policy.Store, windows *window.Collector, predictor *surge.Predictor, orc Oracle, queue *governance.Queue, catalog *tier.Catalog, nowFn func() time.Time) *Arbiter {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Arbiter{
		db:        db,
		store:     store,
		windows:   windows,
		predictor: predictor,
		oracle:    orc,
		queue:     queue,
		catalog:   catalog,
		idleTTL:   DefaultIdleTTL,
		nowFn:     nowFn,
	}
}

// Start launches the cycle goroutine.
func (a *Arbiter) Start(ctx context.Context) {
	if a == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(runCtx)
	}()

	log.Info("arbiter started")
}

// Stop cancels the cycle goroutine and waits for it to exit.
func (a *Arbiter) Stop() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	a.wg.Wait()
}

// run re-reads the interval every cycle so settings changes apply without a
// restart.
func (a *Arbiter) run(ctx context.Context) {
	for {
		interval := LoadSettingsConfig().Interval
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			a.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll runs one cycle over every active key, then evicts idle state.
func (a *Arbiter) EvaluateAll(ctx context.Context) {
	cfg := LoadSettingsConfig()
	now := a.nowFn()
	for _, key := range a.windows.ActiveKeys(now, a.idleTTL) {
		if ctx.Err() != nil {
			return
		}
		a.evaluateKey(ctx, cfg, key, now)
	}
	if evicted := a.windows.EvictIdle(now, a.idleTTL); evicted > 0 {
		log.Debugf("arbiter evicted %d idle keys", evicted)
	}
}

// evaluateKey consults the oracle for one key and applies or defers the
// outcome. The committed limit only moves on a confident, validated decision.
func (a *Arbiter) evaluateKey(ctx context.Context, cfg SettingsConfig, key policy.Key, now time.Time) {
	stats := a.windows.Stats(key, now)
	pred := a.predictor.Predict(a.windows.Snapshot(key, now))
	pol := a.store.Snapshot(key)

	metrics.EffectiveRPS.WithLabelValues(key.Tier, key.Endpoint).Set(stats.CurrentRate)
	metrics.BlockedRatio.WithLabelValues(key.Tier, key.Endpoint).Set(stats.BlockedRatio)
	metrics.SurgeProbability.WithLabelValues(key.Tier, key.Endpoint).Set(pred.Probability)

	utilization := 0.0
	if pol.CurrentLimit > 0 {
		utilization = stats.CurrentRate / pol.CurrentLimit
	}

	res := a.oracle.Consult(ctx, oracle.Context{
		Tier:             key.Tier,
		Endpoint:         key.Endpoint,
		RevenueWeight:    a.catalog.RevenueWeight(key.Tier),
		CurrentLimit:     pol.CurrentLimit,
		CurrentRPS:       stats.CurrentRate,
		Utilization:      utilization,
		BlockedRatio:     stats.BlockedRatio,
		SurgeProbability: pred.Probability,
	})
	if !res.Decided() {
		return
	}

	dec := res.Decision
	metrics.OracleConfidence.WithLabelValues(key.Tier).Set(dec.Confidence)

	if dec.Confidence < cfg.MinConfidence {
		log.WithFields(log.Fields{
			"key":        key.String(),
			"confidence": dec.Confidence,
		}).Debug("arbiter: decision below confidence floor")
		return
	}
	if dec.Action == oracle.ActionSame {
		return
	}

	// The scaling factor is judged on the effective target, after clamping
	// to the tier bounds. A factor of exactly the threshold commits directly.
	effective := dec.NewRPS
	if effective < pol.TierBaseline {
		effective = pol.TierBaseline
	}
	if effective > pol.TierCap {
		effective = pol.TierCap
	}
	scalingFactor := 1.0
	if pol.CurrentLimit > 0 {
		scalingFactor = effective / pol.CurrentLimit
	}

	if scalingFactor > cfg.GovernanceThreshold || dec.GovernanceRequired {
		entry, errEnqueue := a.queue.Enqueue(ctx, key, dec, pol.CurrentLimit)
		if errEnqueue != nil {
			log.WithError(errEnqueue).WithField("key", key.String()).Warn("arbiter: enqueue governance entry failed")
			return
		}
		metrics.DecisionsTotal.WithLabelValues(key.Tier, key.Endpoint, string(dec.Action), "false").Inc()
		log.WithFields(log.Fields{
			"key":     key.String(),
			"entry":   entry.ID,
			"rps":     dec.NewRPS,
			"scaling": strconv.FormatFloat(scalingFactor, 'f', 2, 64),
		}).Info("arbiter: decision deferred to governance")
		return
	}

	committed := a.store.Commit(key, dec.NewRPS, dec.NewBurst)
	a.writeAudit(ctx, key, dec, pol.CurrentLimit)
	metrics.DecisionsTotal.WithLabelValues(key.Tier, key.Endpoint, string(dec.Action), "true").Inc()
	log.WithFields(log.Fields{
		"key":        key.String(),
		"action":     string(dec.Action),
		"rps":        committed.CurrentLimit,
		"burst":      committed.BurstCapacity,
		"confidence": dec.Confidence,
	}).Info("arbiter: decision applied")
}

// writeAudit persists the audit row for a direct commit. Audit failures are
// logged, not fatal.
func (a *Arbiter) writeAudit(ctx context.Context, key policy.Key, dec oracle.Decision, oldRPS float64) {
	if a.db == nil {
		return
	}
	row := models.AuditRecord{
		Tier:       key.Tier,
		Endpoint:   key.Endpoint,
		Action:     string(dec.Action),
		OldRPS:     oldRPS,
		NewRPS:     dec.NewRPS,
		NewBurst:   dec.NewBurst,
		Confidence: dec.Confidence,
		Reason:     dec.Reasoning,
		Applied:    true,
		Source:     models.AuditSourceArbiter,
		Outcome:    "applied",
	}
	if errCreate := a.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("key", fmt.Sprintf("%s:%s", key.Tier, key.Endpoint)).Warn("arbiter audit write failed")
	}
}
