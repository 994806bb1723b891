// models/claim_record.go
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClaimRecord is an immutable fact: one row per successful settlement.
// Rows are insert-only — never updated, never deleted.
type ClaimRecord struct {
	ID            string      `gorm:"primaryKey;type:varchar(128)" json:"id"`
	AccountID     string      `gorm:"type:varchar(64);not null;index" json:"account_id"`
	WalletAddress string      `gorm:"type:varchar(64);not null" json:"wallet_address"`
	Amount        float64     `gorm:"not null" json:"amount"`
	NFTCount      int         `gorm:"not null" json:"nft_count"`
	WeeksClaimed  int64       `gorm:"not null" json:"weeks_claimed"`
	ClaimedAt     time.Time   `gorm:"not null;index" json:"claimed_at"`
	Origin        ClaimOrigin `gorm:"type:varchar(16);not null" json:"origin"`
}

func (ClaimRecord) TableName() string {
	return "claim_records"
}

// NewClaimRecordID builds the deterministic composite claim id.
// The random suffix guards against two claims for the same account
// landing on the same millisecond.
func NewClaimRecordID(accountID string, claimedAt time.Time) string {
	return fmt.Sprintf("%s_%d_%s", accountID, claimedAt.UnixMilli(), uuid.NewString()[:8])
}
