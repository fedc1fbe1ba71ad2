// models/platform.go
package models

import "time"

// PlatformConfigID is the primary key of the singleton config row.
const PlatformConfigID int64 = 1

// MaxFeePercent bounds the platform cut of an approved reward.
const MaxFeePercent int64 = 10

// PlatformConfig holds the owner identity and the fee percentage applied at
// settlement. The owner is fixed at system initialization; there is no
// transfer-of-ownership operation.
type PlatformConfig struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	OwnerID    string `gorm:"not null" json:"owner_id"`
	FeePercent int64  `gorm:"not null" json:"fee_percent"` // 0..10 inclusive

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
