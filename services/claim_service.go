// services/claim_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"nft-rewards-system/models"
)

// ClaimService is the shared settlement path. The scheduled batch and the
// on-demand endpoint both go through Settle, so eligibility can never
// diverge between the two.
type ClaimService struct {
	Ledger LedgerStore
	now    func() time.Time
}

func NewClaimService(ledger LedgerStore) *ClaimService {
	return &ClaimService{Ledger: ledger, now: time.Now}
}

// SettleOutcome reports one successful settlement.
type SettleOutcome struct {
	AccountID string             `json:"account_id"`
	Amount    float64            `json:"amount"`
	Weeks     int64              `json:"weeks"`
	Origin    models.ClaimOrigin `json:"origin"`
	ClaimID   string             `json:"claim_id"`
}

// Settle pays out the pending accrual for one account.
//
// The outer read + accrual check is advisory only — it lets the batch
// scheduler skip obviously-ineligible accounts without opening a
// transaction. The accrual is re-run against the locked row inside the
// transaction; that re-validation is mandatory, because the advisory
// read may be stale by the time the transaction executes (overlapping
// scheduler runs, a user claim racing the scheduler). Exactly one of two
// concurrent Settle calls on the same account can win.
func (s *ClaimService) Settle(ctx context.Context, accountID string, origin models.ClaimOrigin) (*SettleOutcome, error) {
	account, err := s.Ledger.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if pre := Accrue(account, s.now()); !pre.Eligible {
		return nil, ErrClaimUnavailable
	}

	var outcome *SettleOutcome
	err = s.Ledger.WithAccountTransaction(ctx, accountID, func(current *models.RewardAccount) (*AccountPatch, *models.ClaimRecord, error) {
		now := s.now()
		accrual := Accrue(current, now)
		if !accrual.Eligible {
			// Someone else claimed between the advisory read and the lock.
			return nil, nil, ErrClaimUnavailable
		}

		claimAmount, _ := TruncateClaimAmount(accrual.Pending).Float64()

		claim := &models.ClaimRecord{
			ID:            models.NewClaimRecordID(current.ID, now),
			AccountID:     current.ID,
			WalletAddress: current.WalletAddress,
			Amount:        claimAmount,
			NFTCount:      current.NFTCount,
			WeeksClaimed:  accrual.ElapsedWeeks,
			ClaimedAt:     now,
			Origin:        origin,
		}

		// Baseline resets to now, not baseline + weeks*week: any
		// fractional week past the last whole-week boundary is
		// forfeited on claim. Kept for parity with the deployed
		// payout behaviour.
		patch := &AccountPatch{
			TotalEarned:   current.TotalEarned + claimAmount,
			TotalClaimed:  current.TotalClaimed + claimAmount,
			Balance:       current.Balance + claimAmount,
			LastClaimedAt: now,
		}

		outcome = &SettleOutcome{
			AccountID: current.ID,
			Amount:    claimAmount,
			Weeks:     accrual.ElapsedWeeks,
			Origin:    origin,
			ClaimID:   claim.ID,
		}
		return patch, claim, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [CLAIM] account=%s amount=%.2f weeks=%d origin=%s", outcome.AccountID, outcome.Amount, outcome.Weeks, origin)
	return outcome, nil
}

// SettleForWallet is the authenticated on-demand path: the caller's
// stored wallet must match the wallet they presented, otherwise the
// request is rejected without touching the ledger.
func (s *ClaimService) SettleForWallet(ctx context.Context, accountID, walletAddress string) (*SettleOutcome, error) {
	account, err := s.Ledger.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.WalletAddress != walletAddress {
		return nil, fmt.Errorf("%w: wallet does not match account", ErrWalletMismatch)
	}
	return s.Settle(ctx, accountID, models.ClaimOriginUserTriggered)
}

// ErrWalletMismatch rejects an on-demand claim whose presented wallet
// does not match the account's stored wallet.
var ErrWalletMismatch = errors.New("wallet mismatch")
