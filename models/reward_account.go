// models/reward_account.go
package models

import (
	"time"
)

// ClaimOrigin records which path produced a claim.
type ClaimOrigin string

const (
	ClaimOriginScheduled     ClaimOrigin = "scheduled"
	ClaimOriginUserTriggered ClaimOrigin = "user-triggered"
)

// RewardAccount is the per-identity reward ledger row.
// The primary key is the owning identity key forwarded by the Gateway.
// Only the claim settlement path may mutate the cumulative totals.
type RewardAccount struct {
	ID                 string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	WalletAddress      string     `gorm:"type:varchar(64);not null;index" json:"wallet_address"`
	NFTCount           int        `gorm:"not null;default:0" json:"nft_count"`
	WeeklyRatePerNFT   float64    `gorm:"not null" json:"weekly_rate_per_nft"`
	TotalEarned        float64    `gorm:"not null;default:0" json:"total_earned"`
	TotalClaimed       float64    `gorm:"not null;default:0" json:"total_claimed"`
	Balance            float64    `gorm:"not null;default:0" json:"balance"`
	LastClaimedAt      *time.Time `json:"last_claimed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null" json:"created_at"`
	LastRecalculatedAt time.Time  `json:"last_recalculated_at"`
}

func (RewardAccount) TableName() string {
	return "reward_accounts"
}
