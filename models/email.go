package models

import (
	"time"

	"gorm.io/gorm"
)

// SentEmail represents one outgoing email and its denormalized click stats
type SentEmail struct {
	gorm.Model
	UserID    uint  `gorm:"not null;index" json:"user_id"`
	ContactID *uint `gorm:"index" json:"contact_id,omitempty"`

	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	// Delivery
	Status    string     `gorm:"default:'pending'" json:"status"` // pending, sent, failed
	MessageID string     `gorm:"index" json:"message_id"`
	SentAt    *time.Time `json:"sent_at"`

	// Link wrapping results
	TotalLinks   int `gorm:"default:0" json:"total_links"`
	WrappedLinks int `gorm:"default:0" json:"wrapped_links"`

	// Click stats, recomputed from email_clicks after every new click
	TotalClicks  int        `gorm:"default:0" json:"total_clicks"`
	UniqueClicks int        `gorm:"default:0" json:"unique_clicks"`
	ClickedAt    *time.Time `json:"clicked_at"`

	// Bulk origin, when the email was fanned out by a job
	BulkJobID *uint `gorm:"index" json:"bulk_job_id,omitempty"`

	// Relations
	Contact *Contact     `json:"contact,omitempty"`
	Clicks  []EmailClick `gorm:"foreignKey:EmailID" json:"clicks,omitempty"`
}

// EmailClick records a single click on a tracked link.
// Rows are insert-only; aggregates on SentEmail are recomputed, never patched.
type EmailClick struct {
	gorm.Model
	EmailID   uint  `gorm:"not null;index" json:"email_id"`
	ContactID *uint `gorm:"index" json:"contact_id,omitempty"`

	URL          string `gorm:"not null" json:"url"` // original destination
	LinkPosition *int   `json:"link_position,omitempty"`

	// Request metadata. IPAddress is stored anonymized only.
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	ClickedAt time.Time `gorm:"not null" json:"clicked_at"`
}
