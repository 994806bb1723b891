// models/migration_checkpoint.go
package models

import "time"

// MigrationCheckpointID is the fixed primary key of the singleton row.
const MigrationCheckpointID = "stake-records-v2"

// MigrationCheckpoint is the durable progress marker for the legacy
// stake-record migration. TotalMigrated only grows; IsComplete flips
// false→true exactly once and is never reset.
type MigrationCheckpoint struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TotalMigrated int64     `gorm:"not null;default:0" json:"total_migrated"`
	LastRunAt     time.Time `json:"last_run_at"`
	IsComplete    bool      `gorm:"not null;default:false" json:"is_complete"`
}

func (MigrationCheckpoint) TableName() string {
	return "migration_checkpoints"
}
