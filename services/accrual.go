// services/accrual.go
package services

import (
	"time"

	"nft-rewards-system/models"

	"github.com/shopspring/decimal"
)

// Accrual constants (tunable via config/env later)
const (
	// DefaultWeeklyRatePerNFT is applied to accounts created before
	// per-account rates existed (weekly_rate_per_nft == 0).
	DefaultWeeklyRatePerNFT = 200.0

	// MinClaimAmount is the smallest pending amount worth settling.
	MinClaimAmount = 100.0
)

// WeekDuration is the accrual period. Whole weeks only — partial weeks
// do not accrue.
const WeekDuration = 7 * 24 * time.Hour

// AccrualResult is the output of the accrual calculator.
type AccrualResult struct {
	WeeklyRate   decimal.Decimal
	ElapsedWeeks int64
	Pending      decimal.Decimal
	Eligible     bool
}

// Accrue computes the pending reward for an account at a given instant.
// It is the single source of truth for "how much is owed": both the
// batch path and the on-demand path call it, so the two can never
// disagree. The function is total — a missing or zero baseline is
// treated as just-created (zero accrual), never an error.
func Accrue(account *models.RewardAccount, now time.Time) AccrualResult {
	rate := account.WeeklyRatePerNFT
	if rate <= 0 {
		rate = DefaultWeeklyRatePerNFT
	}
	weeklyRate := decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(int64(account.NFTCount)))

	baseline := account.CreatedAt
	if account.LastClaimedAt != nil && !account.LastClaimedAt.IsZero() {
		baseline = *account.LastClaimedAt
	}
	if baseline.IsZero() || baseline.After(now) {
		baseline = now
	}

	elapsedWeeks := int64(now.Sub(baseline) / WeekDuration)
	pending := weeklyRate.Mul(decimal.NewFromInt(elapsedWeeks))

	return AccrualResult{
		WeeklyRate:   weeklyRate,
		ElapsedWeeks: elapsedWeeks,
		Pending:      pending,
		Eligible:     elapsedWeeks >= 1 && pending.GreaterThanOrEqual(decimal.NewFromFloat(MinClaimAmount)),
	}
}

// TruncateClaimAmount cuts a pending amount to two decimals without
// rounding. Truncation biases in the ledger's favour and must stay
// byte-for-byte consistent everywhere a claim amount is produced.
func TruncateClaimAmount(pending decimal.Decimal) decimal.Decimal {
	return pending.Truncate(2)
}
