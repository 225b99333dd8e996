package models

import (
	"gorm.io/gorm"
)

// User represents a network-marketing member account
type User struct {
	gorm.Model

	// Identity
	Email     string `gorm:"not null;uniqueIndex" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Auth bookkeeping
	TokenVersion int  `gorm:"default:0" json:"-"`
	IsActive     bool `gorm:"default:true" json:"is_active"`
	IsAdmin      bool `gorm:"default:false" json:"is_admin"`

	// Team hierarchy (upline reference)
	SponsorID *uint `gorm:"index" json:"sponsor_id,omitempty"`

	// Sending identity used on outgoing mail
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`

	// Relations
	Contacts  []Contact `gorm:"foreignKey:UserID" json:"contacts,omitempty"`
	Downlines []User    `gorm:"foreignKey:SponsorID" json:"downlines,omitempty"`
}
