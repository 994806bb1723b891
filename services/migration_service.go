// services/migration_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"nft-rewards-system/models"

	"gorm.io/gorm"
)

// MigrationPageSize is how many legacy rows one invocation moves. One
// page per run keeps every invocation comfortably inside the external
// execution-time budget.
const MigrationPageSize = 500

// MigrationStore is the durable side of the migration job. The
// checkpoint is the only state the job needs to resume after a crash.
type MigrationStore interface {
	LoadCheckpoint(ctx context.Context) (*models.MigrationCheckpoint, error)
	FetchLegacyPage(ctx context.Context, limit int) ([]models.LegacyStakeRecord, error)
	// MigrateBatch writes the owner-scoped rows, deletes the legacy
	// rows, and bumps the checkpoint counter, all in one transaction.
	MigrateBatch(ctx context.Context, records []models.LegacyStakeRecord) error
	// TouchCheckpoint refreshes last_run_at without moving the
	// counter, so a run that migrated nothing still leaves a trace.
	TouchCheckpoint(ctx context.Context) error
	MarkComplete(ctx context.Context) error
}

// MigrationRunResult summarises one invocation.
type MigrationRunResult struct {
	Migrated        int  `json:"migrated"`
	Skipped         int  `json:"skipped"`
	Completed       bool `json:"completed"`
	AlreadyComplete bool `json:"already_complete"`
}

// MigrationService moves legacy flat-layout stake records into the
// owner-scoped layout, one page per invocation. A migrated row is gone
// from the source, so re-running never double-migrates.
type MigrationService struct {
	Store MigrationStore

	// corrupt ids already warned about; they stay in the source table
	// and would otherwise re-log on every run.
	warned map[string]bool
}

func NewMigrationService(store MigrationStore) *MigrationService {
	return &MigrationService{Store: store, warned: make(map[string]bool)}
}

// Run performs one bounded unit of migration work.
func (s *MigrationService) Run(ctx context.Context) (*MigrationRunResult, error) {
	checkpoint, err := s.Store.LoadCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	if checkpoint.IsComplete {
		return &MigrationRunResult{AlreadyComplete: true}, nil
	}

	page, err := s.Store.FetchLegacyPage(ctx, MigrationPageSize)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		// Terminal transition, reached exactly once.
		if err := s.Store.MarkComplete(ctx); err != nil {
			return nil, err
		}
		log.Printf("✅ [MIGRATION] Legacy stake records exhausted — migration complete (total=%d)", checkpoint.TotalMigrated)
		return &MigrationRunResult{Completed: true}, nil
	}

	keep := make([]models.LegacyStakeRecord, 0, len(page))
	skipped := 0
	for _, record := range page {
		if record.OwnerWallet == "" {
			// Pre-existing corruption: skip the row so it never
			// blocks migration of everything else.
			if !s.warned[record.ID] {
				log.Printf("⚠️ [MIGRATION] Skipping legacy stake %s: missing owner wallet", record.ID)
				s.warned[record.ID] = true
			}
			skipped++
			continue
		}
		keep = append(keep, record)
	}

	if len(keep) > 0 {
		if err := s.Store.MigrateBatch(ctx, keep); err != nil {
			return nil, err
		}
	} else if err := s.Store.TouchCheckpoint(ctx); err != nil {
		// An all-corrupt page is still a run; last_run_at keeps moving.
		return nil, err
	}

	log.Printf("🔁 [MIGRATION] Migrated %d record(s), skipped %d", len(keep), skipped)
	return &MigrationRunResult{Migrated: len(keep), Skipped: skipped}, nil
}

// GormMigrationStore implements MigrationStore on Postgres.
type GormMigrationStore struct {
	DB *gorm.DB
}

func NewGormMigrationStore(db *gorm.DB) *GormMigrationStore {
	return &GormMigrationStore{DB: db}
}

// LoadCheckpoint returns the singleton row, creating it on first run.
func (s *GormMigrationStore) LoadCheckpoint(ctx context.Context) (*models.MigrationCheckpoint, error) {
	var checkpoint models.MigrationCheckpoint
	err := s.DB.WithContext(ctx).First(&checkpoint, "id = ?", models.MigrationCheckpointID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		checkpoint = models.MigrationCheckpoint{ID: models.MigrationCheckpointID}
		if err := s.DB.WithContext(ctx).Create(&checkpoint).Error; err != nil {
			return nil, err
		}
		return &checkpoint, nil
	}
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

func (s *GormMigrationStore) FetchLegacyPage(ctx context.Context, limit int) ([]models.LegacyStakeRecord, error) {
	var page []models.LegacyStakeRecord
	if err := s.DB.WithContext(ctx).
		Order("id").
		Limit(limit).
		Find(&page).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (s *GormMigrationStore) MigrateBatch(ctx context.Context, records []models.LegacyStakeRecord) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		scoped := make([]models.StakeRecord, 0, len(records))
		ids := make([]string, 0, len(records))
		for _, legacy := range records {
			scoped = append(scoped, models.StakeRecord{
				OwnerWallet: legacy.OwnerWallet,
				StakeID:     legacy.ID,
				Amount:      legacy.Amount,
				Status:      legacy.Status,
				CreatedAt:   legacy.CreatedAt,
				UpdatedAt:   legacy.UpdatedAt,
			})
			ids = append(ids, legacy.ID)
		}

		if err := tx.Create(&scoped).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.LegacyStakeRecord{}, "id IN ?", ids).Error; err != nil {
			return err
		}
		return tx.Model(&models.MigrationCheckpoint{}).
			Where("id = ?", models.MigrationCheckpointID).
			Updates(map[string]interface{}{
				"total_migrated": gorm.Expr("total_migrated + ?", len(records)),
				"last_run_at":    now,
			}).Error
	})
}

func (s *GormMigrationStore) TouchCheckpoint(ctx context.Context) error {
	return s.DB.WithContext(ctx).Model(&models.MigrationCheckpoint{}).
		Where("id = ?", models.MigrationCheckpointID).
		Update("last_run_at", time.Now()).Error
}

func (s *GormMigrationStore) MarkComplete(ctx context.Context) error {
	return s.DB.WithContext(ctx).Model(&models.MigrationCheckpoint{}).
		Where("id = ?", models.MigrationCheckpointID).
		Updates(map[string]interface{}{
			"is_complete": true,
			"last_run_at": time.Now(),
		}).Error
}
