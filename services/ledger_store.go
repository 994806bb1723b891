// services/ledger_store.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"nft-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger store errors. Contention is surfaced to the caller and NOT
// retried inside a run — idempotent jobs rely on the next invocation.
var (
	ErrAccountNotFound  = errors.New("reward account not found")
	ErrTxContention     = errors.New("ledger transaction contention, retry later")
	ErrClaimUnavailable = errors.New("claim no longer available")
)

// AccountPatch is the mutation a settlement applies to an account.
// Totals are absolute values computed inside the transaction, not deltas,
// so a replayed patch can never double-apply.
type AccountPatch struct {
	TotalEarned   float64
	TotalClaimed  float64
	Balance       float64
	LastClaimedAt time.Time
}

// LedgerTxnFunc inspects the freshly-read account and either returns the
// patch plus the claim record to insert, or an error to abort with no
// ledger effect.
type LedgerTxnFunc func(current *models.RewardAccount) (*AccountPatch, *models.ClaimRecord, error)

// LedgerStore is the only owner of persisted reward state. Serializability
// is guaranteed per account id only; there is no ordering across accounts.
type LedgerStore interface {
	GetAccount(ctx context.Context, accountID string) (*models.RewardAccount, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
	ListClaims(ctx context.Context, accountID string, limit int) ([]models.ClaimRecord, error)
	WithAccountTransaction(ctx context.Context, accountID string, fn LedgerTxnFunc) error
}

// GormLedgerStore implements LedgerStore on Postgres. The per-account
// guarantee comes from a row lock (SELECT ... FOR UPDATE) held for the
// duration of one transaction; the table is never locked globally.
type GormLedgerStore struct {
	DB *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{DB: db}
}

func (s *GormLedgerStore) GetAccount(ctx context.Context, accountID string) (*models.RewardAccount, error) {
	var account models.RewardAccount
	if err := s.DB.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *GormLedgerStore) ListAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).
		Model(&models.RewardAccount{}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormLedgerStore) ListClaims(ctx context.Context, accountID string, limit int) ([]models.ClaimRecord, error) {
	var claims []models.ClaimRecord
	q := s.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("claimed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// WithAccountTransaction re-reads the account under a row lock, runs fn,
// and atomically applies the returned patch plus claim record. An error
// from fn rolls everything back with zero ledger effect.
func (s *GormLedgerStore) WithAccountTransaction(ctx context.Context, accountID string, fn LedgerTxnFunc) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.RewardAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&account, "id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		patch, claim, err := fn(&account)
		if err != nil {
			return err
		}

		if claim != nil {
			if err := tx.Create(claim).Error; err != nil {
				return err
			}
		}
		if patch != nil {
			updates := map[string]interface{}{
				"total_earned":    patch.TotalEarned,
				"total_claimed":   patch.TotalClaimed,
				"balance":         patch.Balance,
				"last_claimed_at": patch.LastClaimedAt,
			}
			if err := tx.Model(&models.RewardAccount{}).
				Where("id = ?", accountID).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil && isSerializationFailure(err) {
		return ErrTxContention
	}
	return err
}

// isSerializationFailure matches Postgres serialization/deadlock errors
// (SQLSTATE 40001 / 40P01) without importing the driver error types.
func isSerializationFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "40P01") ||
		strings.Contains(msg, "deadlock detected")
}
