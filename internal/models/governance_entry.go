package models

import (
	"time"

	"gorm.io/datatypes"
)

// GovernanceStatus represents the lifecycle state of a governance entry.
type GovernanceStatus int

// GovernanceStatus constants define the entry lifecycle. Transitions run
// Pending to exactly one terminal state and never reverse.
const (
	// GovernancePending marks an entry awaiting a decision.
	GovernancePending GovernanceStatus = 1
	// GovernanceApproved marks an entry whose proposal was committed.
	GovernanceApproved GovernanceStatus = 2
	// GovernanceRejected marks an entry discarded by an operator.
	GovernanceRejected GovernanceStatus = 3
	// GovernanceExpired marks an entry discarded by timeout.
	GovernanceExpired GovernanceStatus = 4
)

// String returns the lowercase status name.
func (s GovernanceStatus) String() string {
	switch s {
	case GovernancePending:
		return "pending"
	case GovernanceApproved:
		return "approved"
	case GovernanceRejected:
		return "rejected"
	case GovernanceExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal state.
func (s GovernanceStatus) Terminal() bool {
	return s == GovernanceApproved || s == GovernanceRejected || s == GovernanceExpired
}

// GovernanceEntry records one deferred policy proposal and its decision.
type GovernanceEntry struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // Entry UUID.

	Tier     string `gorm:"type:varchar(64);not null;index"`  // Tenant tier of the proposal.
	Endpoint string `gorm:"type:varchar(255);not null;index"` // Endpoint of the proposal.

	Proposal datatypes.JSON `gorm:"not null"` // Serialized decision proposal.

	Status    GovernanceStatus `gorm:"not null;default:1;index"` // Current lifecycle state.
	DecidedBy string           `gorm:"type:varchar(128)"`        // Operator or auto-approval source.
	DecidedAt *time.Time       // Time the terminal state was reached.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
