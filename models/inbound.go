package models

import (
	"time"

	"gorm.io/gorm"
)

// InboundMessage represents one processed inbound email. The unique
// MessageID index doubles as the idempotence marker: inserting a row is the
// atomic "already processed" check for the ingestor.
type InboundMessage struct {
	gorm.Model
	MessageID   string    `gorm:"not null;uniqueIndex" json:"message_id"`
	FromAddress string    `gorm:"not null;index" json:"from_address"`
	Subject     string    `json:"subject"`
	Body        string    `gorm:"type:text" json:"body"`
	ReceivedAt  time.Time `gorm:"not null" json:"received_at"`

	// Resolved classification
	ResponseType    string `json:"response_type"`
	Confidence      int    `gorm:"default:0" json:"confidence"`
	Suppressed      bool   `gorm:"default:false" json:"suppressed"`
	SuppressedEmail string `json:"suppressed_email,omitempty"`
}

// IngestCheckpoint records the watermark of the last successful inbound
// fetch. A single row per mailbox; the ingestor re-fetches from the
// watermark minus an overlap buffer to tolerate clock skew.
type IngestCheckpoint struct {
	gorm.Model
	Mailbox     string    `gorm:"not null;uniqueIndex" json:"mailbox"`
	LastFetchAt time.Time `gorm:"not null" json:"last_fetch_at"`
}
