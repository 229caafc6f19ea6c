package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Contact represents a single outreach recipient
type Contact struct {
	gorm.Model
	// Unique case-insensitive key; always stored lowercase
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
	Position     string `json:"position"`

	// Status flags (soft transitions only; contacts are never hard-deleted)
	IsSuppressed bool `gorm:"default:false" json:"is_suppressed"`

	// Metadata
	Source          string     `json:"source"` // manual, csv, api
	LastContactedAt *time.Time `json:"last_contacted_at"`

	// Relations
	Attributes []ContactAttribute `gorm:"foreignKey:ContactID" json:"attributes,omitempty"`
}

// ContactAttribute represents free-form personalization fields for a contact
type ContactAttribute struct {
	gorm.Model
	ContactID uint   `gorm:"not null;index" json:"contact_id"`
	Name      string `gorm:"not null;index" json:"name"`
	Value     string `gorm:"type:text" json:"value"`
}

// DisplayName returns the best available human-readable name for the contact.
func (c *Contact) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

// NormalizeEmail lowercases and trims an address for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
