// models/bounty.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity classifies a finding. Severities form a total order:
// Low < Medium < High < Critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank backs the ordering. Zero rank = unknown severity.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Valid() bool {
	return severityRank[s] != 0
}

func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s qualifies against a minimum severity gate.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// ParseSeverity normalizes client input ("High", " critical ") into a Severity.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// BountyStatus is the lifecycle state of a bounty record.
//
// Transitions: active → submitted → approved → paid, or active → submitted → rejected.
// Paid and rejected are terminal; a bounty never re-opens and is never deleted
// (the row is the permanent audit record). "approved" exists only inside the
// review transaction — it is never externally observable without the same
// operation advancing the record to "paid".
type BountyStatus string

const (
	BountyStatusActive    BountyStatus = "active"
	BountyStatusSubmitted BountyStatus = "submitted"
	BountyStatusApproved  BountyStatus = "approved"
	BountyStatusPaid      BountyStatus = "paid"
	BountyStatusRejected  BountyStatus = "rejected"
)

// Bounty is a sponsor-funded, escrowed task rewarding discovery of a
// qualifying issue. The escrowed value equals RewardAmount from creation
// until the record reaches paid or rejected.
type Bounty struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"` // monotone, never reused
	Slug string `gorm:"index" json:"slug"`

	CreatorID   string       `gorm:"index;not null" json:"creator_id"` // external identity from gateway
	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	MinSeverity Severity     `gorm:"type:varchar(16);not null" json:"min_severity"`
	Status      BountyStatus `gorm:"type:varchar(16);not null;index" json:"status"`

	// RewardAmount is a fixed-point integer in the smallest ledger unit.
	RewardAmount int64     `gorm:"not null" json:"reward_amount"`
	Deadline     time.Time `gorm:"not null" json:"deadline"`

	// Submission. At most one hunter is ever assigned; there is no
	// resubmission or replacement.
	HunterID          *string    `gorm:"index" json:"hunter_id,omitempty"`
	SubmissionDetails string     `gorm:"type:text" json:"submission_details,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`

	// Settlement outcome, recorded when the review pays out or refunds.
	SeverityAssessed *Severity  `gorm:"type:varchar(16)" json:"severity_assessed,omitempty"`
	PlatformFee      int64      `json:"platform_fee,omitempty"`
	HunterReward     int64      `json:"hunter_reward,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
