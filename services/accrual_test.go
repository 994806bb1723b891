package services

import (
	"testing"
	"time"

	"nft-rewards-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testAccount(nftCount int, rate float64, baseline time.Time) *models.RewardAccount {
	return &models.RewardAccount{
		ID:               "acct-1",
		WalletAddress:    "wallet-1",
		NFTCount:         nftCount,
		WeeklyRatePerNFT: rate,
		CreatedAt:        baseline,
	}
}

func TestAccrue_TenDaysSinceBaseline(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(5, 200, now.Add(-10*24*time.Hour))

	result := Accrue(account, now)

	assert.Equal(t, "1000", result.WeeklyRate.String())
	assert.Equal(t, int64(1), result.ElapsedWeeks)
	assert.Equal(t, "1000", result.Pending.String())
	assert.True(t, result.Eligible)
}

func TestAccrue_SixDaysSinceBaseline(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(5, 200, now.Add(-6*24*time.Hour))

	result := Accrue(account, now)

	assert.Equal(t, int64(0), result.ElapsedWeeks)
	assert.True(t, result.Pending.IsZero())
	assert.False(t, result.Eligible)
}

func TestAccrue_LastClaimOverridesCreation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(5, 200, now.Add(-100*24*time.Hour))
	lastClaimed := now.Add(-3 * 24 * time.Hour)
	account.LastClaimedAt = &lastClaimed

	result := Accrue(account, now)

	assert.Equal(t, int64(0), result.ElapsedWeeks)
	assert.False(t, result.Eligible)
}

func TestAccrue_MissingBaselineMeansZeroAccrual(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(5, 200, time.Time{})

	result := Accrue(account, now)

	assert.Equal(t, int64(0), result.ElapsedWeeks)
	assert.False(t, result.Eligible)
}

func TestAccrue_FutureBaselineMeansZeroAccrual(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(5, 200, now.Add(48*time.Hour))

	result := Accrue(account, now)

	assert.Equal(t, int64(0), result.ElapsedWeeks)
	assert.True(t, result.Pending.IsZero())
}

func TestAccrue_MonotoneInNow(t *testing.T) {
	baseline := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	account := testAccount(3, 200, baseline)

	prev := decimal.Zero
	for days := 0; days <= 60; days += 3 {
		now := baseline.Add(time.Duration(days) * 24 * time.Hour)
		result := Accrue(account, now)
		assert.True(t, result.Pending.GreaterThanOrEqual(prev),
			"pending must be non-decreasing in now (days=%d)", days)
		prev = result.Pending
	}
}

func TestAccrue_BelowMinClaimAmountIsIneligible(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// 1 NFT at a tiny rate: one elapsed week but under the floor.
	account := testAccount(1, 10, now.Add(-10*24*time.Hour))

	result := Accrue(account, now)

	assert.Equal(t, int64(1), result.ElapsedWeeks)
	assert.Equal(t, "10", result.Pending.String())
	assert.False(t, result.Eligible)
}

func TestTruncateClaimAmount_TruncatesDoesNotRound(t *testing.T) {
	assert.Equal(t, "12.34", TruncateClaimAmount(decimal.RequireFromString("12.3499")).String())
	assert.Equal(t, "12.34", TruncateClaimAmount(decimal.RequireFromString("12.3401")).String())
	assert.Equal(t, "0.99", TruncateClaimAmount(decimal.RequireFromString("0.999")).String())
	assert.Equal(t, "1000", TruncateClaimAmount(decimal.RequireFromString("1000")).String())
}
