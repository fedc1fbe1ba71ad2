// models/ledger_mirror.go
package models

import "time"

// LedgerAccountMirror mirrors account balances from the ledger service.
// Table name: ledger_account_mirror. Owned solely by the sync worker; the
// core never writes it and never treats it as authoritative — it only
// enriches read responses and feeds the escrow reconciliation sweep.
type LedgerAccountMirror struct {
	ID        string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	AccountID string `gorm:"type:varchar(128);not null;uniqueIndex" json:"account_id"` // primary lookup key
	Balance   int64  `gorm:"not null" json:"balance"`                                  // smallest ledger unit
	Currency  string `gorm:"type:varchar(16);not null" json:"currency"`
	IsEscrow  bool   `gorm:"not null" json:"is_escrow"`

	LastSyncedAt time.Time `gorm:"not null" json:"last_synced_at"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (LedgerAccountMirror) TableName() string {
	return "ledger_account_mirror"
}
