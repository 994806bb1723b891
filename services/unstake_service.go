// services/unstake_service.go
package services

import (
	"context"
	"fmt"
	"log"

	"nft-rewards-system/models"

	"github.com/shopspring/decimal"
)

// UnstakeService reacts to stake status transitions. Only the edge into
// "unstaking" triggers a settlement; every other write — including a
// redelivered unstaking→unstaking snapshot — is a no-op. "completed" is
// terminal.
type UnstakeService struct {
	Stakes   StakeStore
	Network  SettlementNetwork
	Notifier UnstakeNotifier
	Config   *SettlementClientConfig
}

func NewUnstakeService(stakes StakeStore, network SettlementNetwork, notifier UnstakeNotifier, cfg *SettlementClientConfig) *UnstakeService {
	return &UnstakeService{Stakes: stakes, Network: network, Notifier: notifier, Config: cfg}
}

// HandleStakeWrite processes one before/after snapshot pair from the
// watcher. The error return drives redelivery: the watcher re-dispatches
// a failed transition on its next poll, and the stake id doubles as the
// transfer's idempotency reference so a redelivered submission can never
// double-pay.
func (s *UnstakeService) HandleStakeWrite(ctx context.Context, before, after *models.StakeRecord) error {
	if after == nil || after.Status != models.StakeStatusUnstaking {
		return nil
	}
	if before != nil && before.Status == models.StakeStatusUnstaking {
		// Duplicate delivery of the same transition.
		return nil
	}
	if after.Amount <= 0 {
		// A non-positive principal would scale to a garbage base-unit
		// amount; refuse before touching the network.
		log.Printf("❌ [UNSTAKE] Refusing to settle stake %s: invalid amount %.2f", after.StakeID, after.Amount)
		return fmt.Errorf("stake %s has invalid amount %.2f", after.StakeID, after.Amount)
	}

	log.Printf("🔁 [UNSTAKE] Settling stake %s for wallet %s (amount=%.2f)", after.StakeID, after.OwnerWallet, after.Amount)

	ownerAccount, err := s.Network.ResolveTokenAccount(ctx, after.OwnerWallet)
	if err != nil {
		log.Printf("❌ [UNSTAKE] Failed to resolve owner token account for stake %s: %v", after.StakeID, err)
		return err
	}
	poolAccount, err := s.Network.ResolveTokenAccount(ctx, s.Config.PoolWallet)
	if err != nil {
		log.Printf("❌ [UNSTAKE] Failed to resolve pool token account for stake %s: %v", after.StakeID, err)
		return err
	}

	baseAmount := s.Config.ToBaseUnits(decimal.NewFromFloat(after.Amount))
	signature, err := s.Network.SubmitTransfer(ctx, poolAccount, ownerAccount, baseAmount, after.StakeID)
	if err != nil {
		log.Printf("❌ [UNSTAKE] Transfer submission failed for stake %s: %v", after.StakeID, err)
		return err
	}
	if err := s.Network.AwaitConfirmation(ctx, signature); err != nil {
		log.Printf("❌ [UNSTAKE] Transfer %s not confirmed for stake %s: %v", signature, after.StakeID, err)
		return err
	}

	if err := s.Stakes.CompleteStake(ctx, after.OwnerWallet, after.StakeID, signature); err != nil {
		// The transfer is already on the network; the record stays
		// "unstaking" until a redelivery completes it. The status
		// guard in CompleteStake keeps that redelivery harmless.
		log.Printf("❌ [UNSTAKE] Transfer %s confirmed but stake %s not marked completed: %v", signature, after.StakeID, err)
		return fmt.Errorf("failed to complete stake %s after transfer %s: %w", after.StakeID, signature, err)
	}

	if err := s.Notifier.NotifyUnstakeSettled(ctx, after.StakeID, signature); err != nil {
		// Accounting is downstream bookkeeping — the settlement itself
		// succeeded, so don't trigger a redelivery over it.
		log.Printf("⚠️ [UNSTAKE] Settled stake %s (tx=%s) but accounting notification failed: %v", after.StakeID, signature, err)
		return nil
	}

	log.Printf("✅ [UNSTAKE] Stake %s settled, tx=%s", after.StakeID, signature)
	return nil
}
