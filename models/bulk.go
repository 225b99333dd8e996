package models

import (
	"time"

	"gorm.io/gorm"
)

// Bulk job statuses
const (
	BulkJobPending    = "pending"
	BulkJobProcessing = "processing"
	BulkJobCompleted  = "completed"
	BulkJobFailed     = "failed"
)

// BulkEmailJob represents an asynchronous fan-out of one template to many contacts.
// Callers create it in pending and poll until it reaches a terminal status.
type BulkEmailJob struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	ContactIDs []uint `gorm:"type:jsonb;serializer:json" json:"contact_ids"`

	// Exactly one of the two template references is set
	TemplateID         *uint `json:"template_id,omitempty"`
	PersonalTemplateID *uint `json:"personal_template_id,omitempty"`

	CustomVariables map[string]string `gorm:"type:jsonb;serializer:json" json:"custom_variables,omitempty"`

	Status string `gorm:"default:'pending';index" json:"status"` // pending, processing, completed, failed

	// Progress counters
	TotalCount  int `gorm:"default:0" json:"total_count"`
	SentCount   int `gorm:"default:0" json:"sent_count"`
	FailedCount int `gorm:"default:0" json:"failed_count"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	LastError   string     `json:"last_error,omitempty"`
}

// IsTerminal reports whether pollers can stop watching the job
func (j *BulkEmailJob) IsTerminal() bool {
	return j.Status == BulkJobCompleted || j.Status == BulkJobFailed
}
