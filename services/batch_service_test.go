package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nft-rewards-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSettlement_SettlesAllEligibleAccounts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 120 accounts spans three concurrency groups of 50.
	accounts := make([]*models.RewardAccount, 0, 120)
	for i := 0; i < 120; i++ {
		accounts = append(accounts, eligibleAccount(fmt.Sprintf("acct-%03d", i), now))
	}
	svc, _ := newTestClaimService(now, accounts...)
	batch := NewBatchService(svc.Ledger, svc)

	summary, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 120, summary.ClaimsProcessed)
	assert.Equal(t, 120, summary.AccountsTouched)
	assert.Equal(t, 120*1000.0, summary.TotalAmountDistributed)
	assert.Empty(t, summary.Failures)
}

func TestRunSettlement_SecondRunClaimsNothing(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	accounts := make([]*models.RewardAccount, 0, 30)
	for i := 0; i < 30; i++ {
		accounts = append(accounts, eligibleAccount(fmt.Sprintf("acct-%02d", i), now))
	}
	svc, ledger := newTestClaimService(now, accounts...)
	batch := NewBatchService(svc.Ledger, svc)

	first, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, first.ClaimsProcessed)

	// Every just-claimed account now has zero elapsed weeks.
	second, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ClaimsProcessed)
	assert.Equal(t, 0.0, second.TotalAmountDistributed)
	assert.Equal(t, 30, second.Skipped)
	assert.Len(t, ledger.claims, 30)
}

func TestRunSettlement_SkipsIneligibleAccounts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fresh := eligibleAccount("acct-fresh", now)
	fresh.CreatedAt = now.Add(-2 * 24 * time.Hour)
	svc, _ := newTestClaimService(now, eligibleAccount("acct-old", now), fresh)
	batch := NewBatchService(svc.Ledger, svc)

	summary, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ClaimsProcessed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Failures)
}

// flakySettler fails some accounts to prove failures never abort a run.
type flakySettler struct {
	inner   AccountSettler
	mu      sync.Mutex
	failFor map[string]error
}

func (f *flakySettler) Settle(ctx context.Context, accountID string, origin models.ClaimOrigin) (*SettleOutcome, error) {
	f.mu.Lock()
	err, ok := f.failFor[accountID]
	f.mu.Unlock()
	if ok {
		return nil, err
	}
	return f.inner.Settle(ctx, accountID, origin)
}

func TestRunSettlement_PerAccountFailuresAreAggregated(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	accounts := make([]*models.RewardAccount, 0, 10)
	for i := 0; i < 10; i++ {
		accounts = append(accounts, eligibleAccount(fmt.Sprintf("acct-%02d", i), now))
	}
	svc, _ := newTestClaimService(now, accounts...)
	settler := &flakySettler{
		inner: svc,
		failFor: map[string]error{
			"acct-03": ErrTxContention,
			"acct-07": errors.New("boom"),
		},
	}
	batch := NewBatchService(svc.Ledger, settler)

	summary, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, summary.ClaimsProcessed)
	require.Len(t, summary.Failures, 2)
	failed := map[string]bool{}
	for _, f := range summary.Failures {
		failed[f.AccountID] = true
		assert.NotEmpty(t, f.Error)
	}
	assert.True(t, failed["acct-03"])
	assert.True(t, failed["acct-07"])
}

// memReporter records uploaded summaries.
type memReporter struct {
	mu        sync.Mutex
	summaries []*BatchSummary
	err       error
}

func (r *memReporter) UploadRunReport(_ context.Context, summary *BatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.summaries = append(r.summaries, summary)
	return nil
}

func TestRunSettlement_ArchivesRunReport(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestClaimService(now, eligibleAccount("acct-1", now))
	batch := NewBatchService(svc.Ledger, svc)
	reporter := &memReporter{}
	batch.Reporter = reporter

	_, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)
	require.Len(t, reporter.summaries, 1)
	assert.Equal(t, 1, reporter.summaries[0].ClaimsProcessed)
}

func TestRunSettlement_ReportFailureDoesNotFailRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc, _ := newTestClaimService(now, eligibleAccount("acct-1", now))
	batch := NewBatchService(svc.Ledger, svc)
	batch.Reporter = &memReporter{err: errors.New("bucket unavailable")}

	summary, err := batch.RunSettlement(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClaimsProcessed)
}
