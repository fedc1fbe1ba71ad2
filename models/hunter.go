// models/hunter.go
package models

import "time"

// InitialReputation is granted when a profile is lazily created on a
// hunter's first submission.
const InitialReputation int64 = 10

// HunterProfile tracks per-researcher statistics. Created lazily on first
// submission, never before, never deleted. Reputation, TotalBugsFound and
// TotalEarned only ever grow; rejected reviews leave all three untouched.
type HunterProfile struct {
	ID string `gorm:"primaryKey;type:varchar(128)" json:"id"` // external identity from gateway

	Reputation     int64 `json:"reputation" gorm:"not null;default:0"`
	TotalBugsFound int64 `json:"total_bugs_found" gorm:"not null;default:0"`
	TotalEarned    int64 `json:"total_earned" gorm:"not null;default:0"`

	// Verified is set by the platform owner. There is no un-verification path.
	Verified bool `json:"verified" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
