package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run statuses
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
	RunStatusError               = "error"
)

// RunStats are the counters reported at the end of a reconciliation run
type RunStats struct {
	Rows            int  `gorm:"not null;default:0;column:row_count" json:"rows"`
	ExistingParents int  `gorm:"not null;default:0;column:existing_parents" json:"existing_parents"`
	PartialIndex    bool `gorm:"not null;default:false;column:partial_index" json:"partial_index"`
	ParentsPlanned  int  `gorm:"not null;default:0;column:parents_planned" json:"parents_planned"`
	ParentsCreated  int  `gorm:"not null;default:0;column:parents_created" json:"parents_created"`
	ChildrenPlanned int  `gorm:"not null;default:0;column:children_planned" json:"children_planned"`
	ChildrenCreated int  `gorm:"not null;default:0;column:children_created" json:"children_created"`
	Linked          int  `gorm:"not null;default:0" json:"linked"`
	Unlinked        int  `gorm:"not null;default:0" json:"unlinked"`
	FailedChunks    int  `gorm:"not null;default:0;column:failed_chunks" json:"failed_chunks"`
}

// SyncRun tracks one reconciliation run from start to finish
type SyncRun struct {
	ID          string     `gorm:"primaryKey" json:"id"`                   // UUID run ID
	Source      string     `gorm:"not null" json:"source"`                 // spreadsheet path
	Status      string     `gorm:"not null;default:running" json:"status"` // running, completed, completed_with_errors, error
	Progress    int        `gorm:"not null;default:0" json:"progress"`     // 0-100
	Messages    string     `gorm:"type:text" json:"messages"`              // JSON array of strings
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	Stats       RunStats   `gorm:"embedded" json:"stats"`
	StartedAt   time.Time  `gorm:"column:started_at" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "sync_runs"
}

// ChunkFailure records a batch that the CRM rejected during a run
type ChunkFailure struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RunID     string    `gorm:"not null;index;column:run_id" json:"run_id"`
	Stream    string    `gorm:"not null" json:"stream"` // companies, objects
	Chunk     int       `gorm:"not null" json:"chunk"`  // 1-based
	Start     int       `gorm:"not null" json:"start"`  // offset of the first input in the stream
	Size      int       `gorm:"not null" json:"size"`
	Error     string    `gorm:"type:text" json:"error"`
	Response  string    `gorm:"type:text" json:"response,omitempty"` // raw CRM error detail
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ChunkFailure) TableName() string {
	return "chunk_failures"
}
