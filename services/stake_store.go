// services/stake_store.go
package services

import (
	"context"
	"time"

	"nft-rewards-system/models"

	"gorm.io/gorm"
)

// StakeStore reads and advances owner-scoped stake records.
type StakeStore interface {
	ListAll(ctx context.Context) ([]models.StakeRecord, error)
	ListUpdatedSince(ctx context.Context, since time.Time) ([]models.StakeRecord, error)
	// CompleteStake moves a record to the terminal state and stores the
	// settlement signature. The status guard makes the update a no-op
	// if another path already completed the record.
	CompleteStake(ctx context.Context, ownerWallet, stakeID, txSignature string) error
}

// GormStakeStore implements StakeStore on Postgres.
type GormStakeStore struct {
	DB *gorm.DB
}

func NewGormStakeStore(db *gorm.DB) *GormStakeStore {
	return &GormStakeStore{DB: db}
}

func (s *GormStakeStore) ListAll(ctx context.Context) ([]models.StakeRecord, error) {
	var stakes []models.StakeRecord
	if err := s.DB.WithContext(ctx).Find(&stakes).Error; err != nil {
		return nil, err
	}
	return stakes, nil
}

func (s *GormStakeStore) ListUpdatedSince(ctx context.Context, since time.Time) ([]models.StakeRecord, error) {
	var stakes []models.StakeRecord
	if err := s.DB.WithContext(ctx).
		Where("updated_at > ?", since).
		Order("updated_at").
		Find(&stakes).Error; err != nil {
		return nil, err
	}
	return stakes, nil
}

func (s *GormStakeStore) CompleteStake(ctx context.Context, ownerWallet, stakeID, txSignature string) error {
	return s.DB.WithContext(ctx).Model(&models.StakeRecord{}).
		Where("owner_wallet = ? AND stake_id = ? AND status = ?", ownerWallet, stakeID, models.StakeStatusUnstaking).
		Updates(map[string]interface{}{
			"status":       models.StakeStatusCompleted,
			"tx_signature": txSignature,
		}).Error
}
