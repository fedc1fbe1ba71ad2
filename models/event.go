// models/event.go
package models

import "time"

// EventType enumerates the observable notifications emitted by operations.
type EventType string

const (
	EventBountyCreated    EventType = "bounty_created"
	EventBountySubmitted  EventType = "bounty_submitted"
	EventBountyApproved   EventType = "bounty_approved"
	EventBountyRejected   EventType = "bounty_rejected"
	EventHunterRegistered EventType = "hunter_registered"
	// EventBountyExpired is emitted by the scheduler when an active bounty
	// passes its deadline without a submission. Informational only — the
	// record stays active and its escrow stays put.
	EventBountyExpired EventType = "bounty_expired"
)

// BountyEvent is an append-only notification row, written in the same
// transaction as the operation that emits it so the feed is ordered per
// emitting operation and never records an aborted mutation.
type BountyEvent struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	Type     EventType `gorm:"type:varchar(32);not null;index" json:"type"`
	BountyID *int64    `gorm:"index" json:"bounty_id,omitempty"`

	// UserID is the identity the notification is addressed to: the creator
	// for bounty_created, the hunter for the submission/review events.
	UserID string `gorm:"index;not null" json:"user_id"`

	// Amount carries the reward figure for bounty_created (escrowed reward)
	// and bounty_approved (hunter payout). Zero otherwise.
	Amount int64 `json:"amount,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
