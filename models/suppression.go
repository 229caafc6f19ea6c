package models

import (
	"time"

	"gorm.io/gorm"
)

// Suppression reasons.
const (
	SuppressionReasonComplaint     = "complaint"
	SuppressionReasonUnsubscribe   = "unsubscribe"
	SuppressionReasonNotInterested = "not_interested"
	SuppressionReasonNegative      = "negative"
	SuppressionReasonHardBounce    = "hard_bounce"
	SuppressionReasonDeparted      = "departed"
	SuppressionReasonManual        = "manual"
)

// Suppression sources.
const (
	SuppressionSourceManual       = "manual"
	SuppressionSourceReplyKeyword = "reply_keyword"
	SuppressionSourceBounce       = "bounce"
	SuppressionSourceComplaint    = "complaint"
)

// Suppression statuses.
const (
	SuppressionStatusActive   = "active"
	SuppressionStatusInactive = "inactive"
)

// SuppressionEntry represents an address that must never be contacted again.
// Entries are created by the ingestor or an operator and deactivated only by
// explicit manual action, never automatically.
type SuppressionEntry struct {
	gorm.Model
	Email string `gorm:"not null;uniqueIndex" json:"email"`

	Reason string `gorm:"not null" json:"reason"`
	Source string `gorm:"not null" json:"source"`
	Status string `gorm:"default:'active';index" json:"status"`

	DetectedAt time.Time `gorm:"not null" json:"detected_at"`
	Notes      string    `gorm:"type:text" json:"notes"`

	DeactivatedBy string     `json:"deactivated_by,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// IsActive reports whether the entry currently blocks sends.
func (s *SuppressionEntry) IsActive() bool {
	return s.Status == SuppressionStatusActive
}
