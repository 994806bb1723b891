// models/stake_record.go
package models

import "time"

// StakeStatus is the stake lifecycle state. "completed" is terminal.
type StakeStatus string

const (
	StakeStatusActive    StakeStatus = "active"
	StakeStatusUnstaking StakeStatus = "unstaking"
	StakeStatusCompleted StakeStatus = "completed"
)

// StakeRecord is the post-migration, owner-scoped layout: rows are keyed
// by (owner_wallet, stake id) so all stakes for a wallet live together.
type StakeRecord struct {
	OwnerWallet string      `gorm:"primaryKey;type:varchar(64)" json:"owner_wallet"`
	StakeID     string      `gorm:"primaryKey;type:varchar(64)" json:"stake_id"`
	Amount      float64     `gorm:"not null" json:"amount"`
	Status      StakeStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	TxSignature string      `gorm:"type:varchar(128)" json:"tx_signature,omitempty"`
	CreatedAt   time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"not null;index" json:"updated_at"`
}

func (StakeRecord) TableName() string {
	return "stake_records"
}

// LegacyStakeRecord is the flat pre-migration layout. Rows are moved to
// StakeRecord by the migration job and deleted here afterwards. Some
// historic rows are missing OwnerWallet; those are skipped, not migrated.
type LegacyStakeRecord struct {
	ID          string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerWallet string      `gorm:"type:varchar(64)" json:"owner_wallet"`
	Amount      float64     `gorm:"not null" json:"amount"`
	Status      StakeStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (LegacyStakeRecord) TableName() string {
	return "legacy_stake_records"
}
