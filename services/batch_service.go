// services/batch_service.go
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"nft-rewards-system/models"

	"golang.org/x/sync/errgroup"
)

// SettlementGroupSize bounds how many accounts are settled concurrently.
// Groups run strictly one after another so peak load on the database is
// capped and a long run makes steady forward progress.
const SettlementGroupSize = 50

// AccountSettler is what the batch scheduler needs from the claim path.
type AccountSettler interface {
	Settle(ctx context.Context, accountID string, origin models.ClaimOrigin) (*SettleOutcome, error)
}

// BatchFailure tags a per-account error with its account id. Failures
// are aggregated, never fatal to the run.
type BatchFailure struct {
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

// BatchSummary is the result of one scheduler invocation.
type BatchSummary struct {
	ClaimsProcessed        int            `json:"claims_processed"`
	TotalAmountDistributed float64        `json:"total_amount_distributed"`
	AccountsTouched        int            `json:"accounts_touched"`
	Skipped                int            `json:"skipped"`
	Failures               []BatchFailure `json:"failures,omitempty"`
	StartedAt              time.Time      `json:"started_at"`
	FinishedAt             time.Time      `json:"finished_at"`
}

// RunReporter archives a finished run summary for the ops audit trail.
type RunReporter interface {
	UploadRunReport(ctx context.Context, summary *BatchSummary) error
}

// BatchService fans the claim settlement path out over every account.
// Overlapping invocations (the 6h cadence, the daily cadence, a manual
// run, a racing user claim) are safe because settlement re-validates
// inside its transaction — there is no lock between runs.
type BatchService struct {
	Ledger   LedgerStore
	Settler  AccountSettler
	Reporter RunReporter // optional
}

func NewBatchService(ledger LedgerStore, settler AccountSettler) *BatchService {
	return &BatchService{Ledger: ledger, Settler: settler}
}

// RunSettlement settles all accounts in groups of SettlementGroupSize.
func (s *BatchService) RunSettlement(ctx context.Context) (*BatchSummary, error) {
	summary := &BatchSummary{StartedAt: time.Now()}

	ids, err := s.Ledger.ListAccountIDs(ctx)
	if err != nil {
		return nil, err
	}
	summary.AccountsTouched = len(ids)
	log.Printf("🔁 [SETTLEMENT] Starting batch run over %d account(s)", len(ids))

	var mu sync.Mutex
	for start := 0; start < len(ids); start += SettlementGroupSize {
		end := start + SettlementGroupSize
		if end > len(ids) {
			end = len(ids)
		}
		group := ids[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(SettlementGroupSize)
		for _, accountID := range group {
			accountID := accountID
			g.Go(func() error {
				outcome, err := s.Settler.Settle(gctx, accountID, models.ClaimOriginScheduled)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					summary.ClaimsProcessed++
					summary.TotalAmountDistributed += outcome.Amount
				case errors.Is(err, ErrClaimUnavailable):
					summary.Skipped++
				default:
					summary.Failures = append(summary.Failures, BatchFailure{
						AccountID: accountID,
						Error:     err.Error(),
					})
					log.Printf("❌ [SETTLEMENT] account=%s failed: %v", accountID, err)
				}
				// Per-account failures never abort the run.
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.FinishedAt = time.Now()
	log.Printf("✅ [SETTLEMENT] Run complete: %d claim(s), %.2f distributed, %d skipped, %d failed",
		summary.ClaimsProcessed, summary.TotalAmountDistributed, summary.Skipped, len(summary.Failures))

	if s.Reporter != nil {
		if err := s.Reporter.UploadRunReport(ctx, summary); err != nil {
			// The archive is an audit convenience, not part of settlement.
			log.Printf("⚠️ [SETTLEMENT] Failed to archive run report: %v", err)
		}
	}
	return summary, nil
}
