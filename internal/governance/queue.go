// Package governance holds large policy changes for human review. Entries are
// queued by the arbiter, decided exactly once, and re-clamped against the
// live policy at approval time.
package governance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/metrics"
	"github.com/limitwarden/limitwarden/internal/models"
	"github.com/limitwarden/limitwarden/internal/oracle"
	"github.com/limitwarden/limitwarden/internal/policy"
)

// DecidedByAuto is recorded when the grace-period runner approves an entry.
const DecidedByAuto = "auto-approval"

// DecidedByExpiry is recorded when the TTL runner expires an entry.
const DecidedByExpiry = "ttl-expiry"

// ErrAlreadyDecided is returned when an entry has already reached a terminal
// state. Repeated decisions are no-ops.
var ErrAlreadyDecided = errors.New("governance: entry already decided")

// ErrNotFound is returned when no entry exists for the given ID.
var ErrNotFound = errors.New("governance: entry not found")

// proposalPayload is the JSON shape persisted in the entry's proposal column.
type proposalPayload struct {
	Decision oracle.Decision `json:"decision"` // Validated oracle decision.
	OldRPS   float64         `json:"old_rps"`  // Limit at the time of deferral.
}

// Queue persists deferred proposals and applies them on approval.
type Queue struct {
	db    *gorm.DB
	store *policy.Store
	nowFn func() time.Time
}

// NewQueue constructs a governance queue over db and the policy store.
func NewQueue(db *gorm.DB, store *policy.Store, nowFn func() time.Time) *Queue {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Queue{db: db, store: store, nowFn: nowFn}
}

// Enqueue persists a pending entry for the proposal and records the deferral
// in the audit log.
func (q *Queue) Enqueue(ctx context.Context, key policy.Key, dec oracle.Decision, oldRPS float64) (*models.GovernanceEntry, error) {
	rawProposal, errMarshal := json.Marshal(proposalPayload{Decision: dec, OldRPS: oldRPS})
	if errMarshal != nil {
		return nil, fmt.Errorf("governance: marshal proposal: %w", errMarshal)
	}

	entry := models.GovernanceEntry{
		ID:       uuid.NewString(),
		Tier:     key.Tier,
		Endpoint: key.Endpoint,
		Proposal: datatypes.JSON(rawProposal),
		Status:   models.GovernancePending,
	}
	if errCreate := q.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		return nil, fmt.Errorf("governance: create entry: %w", errCreate)
	}

	q.writeAudit(ctx, key, dec, oldRPS, models.AuditSourceArbiter, entry.ID, "queued", false)
	q.refreshPendingGauge(ctx)
	return &entry, nil
}

// Approve transitions a pending entry to approved and commits its proposal,
// re-clamped against the current tier bounds. The first caller wins; repeats
// return ErrAlreadyDecided.
func (q *Queue) Approve(ctx context.Context, id, decidedBy string) (policy.Policy, error) {
	entry, errTake := q.takePending(ctx, id, models.GovernanceApproved, decidedBy)
	if errTake != nil {
		return policy.Policy{}, errTake
	}

	var payload proposalPayload
	if errUnmarshal := json.Unmarshal(entry.Proposal, &payload); errUnmarshal != nil {
		return policy.Policy{}, fmt.Errorf("governance: decode proposal %s: %w", id, errUnmarshal)
	}

	key := policy.Key{Tier: entry.Tier, Endpoint: entry.Endpoint}
	committed := q.store.Commit(key, payload.Decision.NewRPS, payload.Decision.NewBurst)

	q.writeAudit(ctx, key, payload.Decision, payload.OldRPS, models.AuditSourceGovernance, entry.ID, "approved", true)
	q.refreshPendingGauge(ctx)
	log.WithFields(log.Fields{
		"entry":    entry.ID,
		"key":      key.String(),
		"rps":      committed.CurrentLimit,
		"decideby": decidedBy,
	}).Info("governance entry approved")
	return committed, nil
}

// Reject transitions a pending entry to rejected. The proposal is discarded
// and the policy stays untouched.
func (q *Queue) Reject(ctx context.Context, id, decidedBy string) error {
	entry, errTake := q.takePending(ctx, id, models.GovernanceRejected, decidedBy)
	if errTake != nil {
		return errTake
	}

	var payload proposalPayload
	if errUnmarshal := json.Unmarshal(entry.Proposal, &payload); errUnmarshal != nil {
		return fmt.Errorf("governance: decode proposal %s: %w", id, errUnmarshal)
	}

	key := policy.Key{Tier: entry.Tier, Endpoint: entry.Endpoint}
	q.writeAudit(ctx, key, payload.Decision, payload.OldRPS, models.AuditSourceGovernance, entry.ID, "rejected", false)
	q.refreshPendingGauge(ctx)
	return nil
}

// ApproveAll approves every pending entry and returns how many were applied.
func (q *Queue) ApproveAll(ctx context.Context, decidedBy string) (int, error) {
	entries, errPending := q.Pending(ctx)
	if errPending != nil {
		return 0, errPending
	}
	applied := 0
	for _, entry := range entries {
		if _, errApprove := q.Approve(ctx, entry.ID, decidedBy); errApprove != nil {
			if errors.Is(errApprove, ErrAlreadyDecided) {
				continue
			}
			return applied, errApprove
		}
		applied++
	}
	return applied, nil
}

// Pending returns all undecided entries, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]models.GovernanceEntry, error) {
	var rows []models.GovernanceEntry
	errFind := q.db.WithContext(ctx).
		Where("status = ?", models.GovernancePending).
		Order("created_at ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("governance: list pending: %w", errFind)
	}
	return rows, nil
}

// Get returns one entry by ID.
func (q *Queue) Get(ctx context.Context, id string) (*models.GovernanceEntry, error) {
	var entry models.GovernanceEntry
	if errFind := q.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("governance: get entry: %w", errFind)
	}
	return &entry, nil
}

// ApprovePastGrace approves pending entries older than grace. Used by the
// auto-approval runner.
func (q *Queue) ApprovePastGrace(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := q.nowFn().UTC().Add(-grace)
	entries, errPending := q.Pending(ctx)
	if errPending != nil {
		return 0, errPending
	}
	applied := 0
	for _, entry := range entries {
		if entry.CreatedAt.After(cutoff) {
			continue
		}
		if _, errApprove := q.Approve(ctx, entry.ID, DecidedByAuto); errApprove != nil {
			if errors.Is(errApprove, ErrAlreadyDecided) {
				continue
			}
			return applied, errApprove
		}
		applied++
	}
	return applied, nil
}

// ExpireStale expires pending entries older than ttl without applying them.
func (q *Queue) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := q.nowFn().UTC().Add(-ttl)
	entries, errPending := q.Pending(ctx)
	if errPending != nil {
		return 0, errPending
	}
	expired := 0
	for _, entry := range entries {
		if entry.CreatedAt.After(cutoff) {
			continue
		}
		taken, errTake := q.takePending(ctx, entry.ID, models.GovernanceExpired, DecidedByExpiry)
		if errTake != nil {
			if errors.Is(errTake, ErrAlreadyDecided) || errors.Is(errTake, ErrNotFound) {
				continue
			}
			return expired, errTake
		}

		var payload proposalPayload
		if errUnmarshal := json.Unmarshal(taken.Proposal, &payload); errUnmarshal == nil {
			key := policy.Key{Tier: taken.Tier, Endpoint: taken.Endpoint}
			q.writeAudit(ctx, key, payload.Decision, payload.OldRPS, models.AuditSourceGovernance, taken.ID, "expired", false)
		}
		expired++
	}
	if expired > 0 {
		q.refreshPendingGauge(ctx)
	}
	return expired, nil
}

// PendingCount returns the number of undecided entries.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	errCount := q.db.WithContext(ctx).Model(&models.GovernanceEntry{}).
		Where("status = ?", models.GovernancePending).
		Count(&count).Error
	if errCount != nil {
		return 0, fmt.Errorf("governance: count pending: %w", errCount)
	}
	return count, nil
}

// takePending performs the compare-and-set transition out of pending. Exactly
// one caller observes RowsAffected == 1 for a given entry.
func (q *Queue) takePending(ctx context.Context, id string, to models.GovernanceStatus, decidedBy string) (*models.GovernanceEntry, error) {
	now := q.nowFn().UTC()
	res := q.db.WithContext(ctx).Model(&models.GovernanceEntry{}).
		Where("id = ? AND status = ?", id, models.GovernancePending).
		Updates(map[string]any{
			"status":     to,
			"decided_by": decidedBy,
			"decided_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("governance: transition entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var existing models.GovernanceEntry
		if errFind := q.db.WithContext(ctx).Where("id = ?", id).First(&existing).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("governance: lookup entry: %w", errFind)
		}
		return nil, ErrAlreadyDecided
	}

	var entry models.GovernanceEntry
	if errFind := q.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; errFind != nil {
		return nil, fmt.Errorf("governance: reload entry: %w", errFind)
	}
	return &entry, nil
}

// writeAudit persists one audit row. Audit failures are logged, not fatal.
func (q *Queue) writeAudit(ctx context.Context, key policy.Key, dec oracle.Decision, oldRPS float64, source, entryID, outcome string, applied bool) {
	row := models.AuditRecord{
		Tier:       key.Tier,
		Endpoint:   key.Endpoint,
		Action:     string(dec.Action),
		OldRPS:     oldRPS,
		NewRPS:     dec.NewRPS,
		NewBurst:   dec.NewBurst,
		Confidence: dec.Confidence,
		Reason:     dec.Reasoning,
		Applied:    applied,
		Source:     source,
		EntryID:    entryID,
		Outcome:    outcome,
	}
	if errCreate := q.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("entry", entryID).Warn("governance audit write failed")
	}
}

// refreshPendingGauge updates the pending-entries gauge from the database.
func (q *Queue) refreshPendingGauge(ctx context.Context) {
	count, errCount := q.PendingCount(ctx)
	if errCount != nil {
		log.WithError(errCount).Warn("governance pending count failed")
		return
	}
	metrics.GovernancePending.Set(float64(count))
}
