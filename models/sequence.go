package models

import (
	"time"

	"gorm.io/gorm"
)

// Sequence represents a versioned multi-step outreach template
type Sequence struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Version     int    `gorm:"default:1" json:"version"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, archived

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// StepByNumber returns the step with the given 1-based number, or nil.
func (s *Sequence) StepByNumber(n int) *SequenceStep {
	for i := range s.Steps {
		if s.Steps[i].StepNumber == n {
			return &s.Steps[i]
		}
	}
	return nil
}

// SequenceStep represents one timed message in a sequence.
// Step numbers are contiguous starting at 1; the absence of step N+1
// signals sequence completion.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber       int    `gorm:"not null" json:"step_number"`
	WaitBusinessDays int    `gorm:"not null" json:"wait_business_days"` // days after the previous step, 0 for the first
	Category         string `json:"category"`                           // initial, follow_up, final

	// Prompt parameters fed to the content generation gateway
	SubjectPrompt string `gorm:"type:text" json:"subject_prompt"`
	BodyPrompt    string `gorm:"type:text" json:"body_prompt"`

	// First-touch steps tolerate the deterministic fallback template;
	// reply-style steps must never send generic copy.
	AllowFallback bool `gorm:"default:false" json:"allow_fallback"`

	// Tracking
	SentCount int `gorm:"default:0" json:"sent_count"`
}

// SequenceState statuses.
const (
	SequenceStatusNotStarted = "not_started"
	SequenceStatusActive     = "active"
	SequenceStatusPausedRep  = "paused_reply"
	SequenceStatusCompleted  = "completed"
	SequenceStatusSuppressed = "suppressed"
)

// SequenceState tracks one contact's progress through one sequence.
// At most one active state exists per contact at a time. Mutated only by
// the orchestrator (on send) and the ingestor (on reply/bounce); never deleted.
type SequenceState struct {
	gorm.Model
	ContactID  uint `gorm:"not null;uniqueIndex:idx_contact_sequence" json:"contact_id"`
	SequenceID uint `gorm:"not null;uniqueIndex:idx_contact_sequence" json:"sequence_id"`

	CurrentStep int    `gorm:"default:0" json:"current_step"` // 0 = not yet started
	Status      string `gorm:"default:'not_started';index" json:"status"`

	LastSentAt *time.Time `json:"last_sent_at"`
	NextDueAt  *time.Time `gorm:"index" json:"next_due_at"`

	ReplyReceived bool       `gorm:"default:false" json:"reply_received"`
	ReplyAt       *time.Time `json:"reply_at"`

	// Generation failure tracking; the record is flagged for manual review
	// after a bounded run of consecutive failures.
	ConsecutiveFailures int  `gorm:"default:0" json:"consecutive_failures"`
	NeedsReview         bool `gorm:"default:false" json:"needs_review"`

	// Relations
	Contact    Contact           `json:"contact,omitempty"`
	Sequence   Sequence          `json:"sequence,omitempty"`
	SentEmails []SentEmailRecord `gorm:"foreignKey:SequenceStateID" json:"sent_emails,omitempty"`
}

// SentEmailRecord represents one delivered step for a sequence state
type SentEmailRecord struct {
	gorm.Model
	SequenceStateID uint `gorm:"not null;index" json:"sequence_state_id"`

	StepNumber        int       `gorm:"not null" json:"step_number"`
	SentAt            time.Time `gorm:"not null" json:"sent_at"`
	Subject           string    `json:"subject"`
	MessageID         string    `gorm:"index" json:"message_id"`
	DeliveryConfirmed bool      `gorm:"default:false" json:"delivery_confirmed"`
}
