package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduledJob is a recurring reconciliation registered with the cron scheduler
type ScheduledJob struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"unique;not null" json:"name"`
	Cron       string     `gorm:"not null" json:"cron"` // 6-field cron expression
	Timezone   string     `gorm:"default:UTC" json:"timezone"`
	Source     string     `gorm:"not null" json:"source"` // spreadsheet path
	Enabled    bool       `gorm:"not null" json:"enabled"`
	LastRunID  string     `gorm:"column:last_run_id" json:"last_run_id,omitempty"`
	LastStatus string     `gorm:"column:last_status" json:"last_status,omitempty"`
	LastRunAt  *time.Time `gorm:"column:last_run_at" json:"last_run_at"`
	NextRunAt  *time.Time `gorm:"column:next_run_at" json:"next_run_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (sj *ScheduledJob) BeforeCreate(tx *gorm.DB) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}
