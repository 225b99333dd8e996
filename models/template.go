package models

import (
	"gorm.io/gorm"
)

// Template represents a shared email template from the company library
type Template struct {
	gorm.Model

	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	Category string `json:"category"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// PersonalTemplate represents a member-owned email template
type PersonalTemplate struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	// Relations
	User User `json:"-"`
}
