package models

import (
	"time"

	"gorm.io/gorm"
)

// Contact represents a single prospect/customer owned by a member
type Contact struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`

	// Status
	Status         string `gorm:"default:'new'" json:"status"` // new, contacted, interested, customer, inactive
	IsUnsubscribed bool   `gorm:"default:false" json:"is_unsubscribed"`
	IsDoNotContact bool   `gorm:"default:false" json:"is_do_not_contact"`

	// Metadata
	Source            string     `json:"source"` // manual, landing_page, import
	LastInteractionAt *time.Time `json:"last_interaction_at"`

	// Relations
	SentEmails []SentEmail      `gorm:"foreignKey:ContactID" json:"sent_emails,omitempty"`
	Activities []MemberActivity `gorm:"foreignKey:ContactID" json:"activities,omitempty"`
}

// MemberActivity tracks a member's interaction feed across contacts
type MemberActivity struct {
	gorm.Model
	UserID    uint  `gorm:"not null;index" json:"user_id"`
	ContactID *uint `gorm:"index" json:"contact_id,omitempty"`
	EmailID   *uint `gorm:"index" json:"email_id,omitempty"`

	ActivityType string    `gorm:"not null;index" json:"activity_type"` // email_sent, email_clicked, contact_created, etc.
	ActivityAt   time.Time `gorm:"not null" json:"activity_at"`
	Details      string    `gorm:"type:text" json:"details"`

	// Relations
	User    User     `json:"-"`
	Contact *Contact `json:"contact,omitempty"`
}
