package models

import "time"

// Audit record sources.
const (
	// AuditSourceArbiter marks a record written by a direct arbiter commit.
	AuditSourceArbiter = "arbiter"
	// AuditSourceGovernance marks a record written by a governance decision.
	AuditSourceGovernance = "governance"
)

// AuditRecord logs one policy decision, whether it was applied or deferred.
type AuditRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Tier     string `gorm:"type:varchar(64);not null;index"`  // Tenant tier.
	Endpoint string `gorm:"type:varchar(255);not null;index"` // Endpoint identifier.

	Action     string  `gorm:"type:varchar(16);not null"`  // Oracle action: up, down, same.
	OldRPS     float64 `gorm:"not null;default:0"`         // Limit before the decision.
	NewRPS     float64 `gorm:"not null;default:0"`         // Limit the decision targeted.
	NewBurst   int     `gorm:"not null;default:0"`         // Burst the decision targeted.
	Confidence float64 `gorm:"not null;default:0"`         // Oracle-reported confidence.
	Reason     string  `gorm:"type:varchar(255)"`          // Oracle-reported reasoning.
	Applied    bool    `gorm:"not null;default:false"`     // Whether the limit was committed.
	Source     string  `gorm:"type:varchar(32);not null"`  // arbiter or governance.
	EntryID    string  `gorm:"type:varchar(36);index"`     // Governance entry, when deferred.
	Outcome    string  `gorm:"type:varchar(32);not null"`  // applied, queued, approved, rejected, expired.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
