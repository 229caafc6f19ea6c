// Package repository defines the data access contracts for the engine and
// their gorm-backed implementations. Services depend on the interfaces only;
// tests substitute in-memory fakes.
package repository

import (
	"context"
	"errors"
	"time"

	"cadence/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional update lost the race:
	// another writer already advanced the record. Callers must re-fetch and
	// decide whether to retry or skip.
	ErrConflict = errors.New("conditional update conflict")
)

// ContactStore defines contact data access operations.
type ContactStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Contact, error)
	Upsert(ctx context.Context, contact *models.Contact) error
	MarkSuppressed(ctx context.Context, email string) error
}

// StateAdvance carries the fields updated together when a due record is
// successfully sent. The update is atomic: state, sent-record and next-due
// change together or not at all.
type StateAdvance struct {
	FromStep  int // expected current_step; the compare of the compare-and-set
	NextDueAt *time.Time
	Completed bool
	SentAt    time.Time
	Sent      models.SentEmailRecord
}

// SequenceStore defines sequence definition and per-contact state access.
type SequenceStore interface {
	GetSequence(ctx context.Context, id uint) (*models.Sequence, error)
	GetStateByContact(ctx context.Context, contactID uint) (*models.SequenceState, error)
	CreateState(ctx context.Context, state *models.SequenceState) error

	// DueStates returns active states whose next_due_at has passed, oldest
	// first, with contact and sequence steps loaded.
	DueStates(ctx context.Context, now time.Time, limit int) ([]models.SequenceState, error)

	// Advance applies a successful send. The update is conditional on
	// current_step still matching adv.FromStep and returns ErrConflict when
	// another writer got there first, preventing a double send.
	Advance(ctx context.Context, stateID uint, adv StateAdvance) error

	// SetStatus moves a state to a terminal or paused status and clears
	// next_due_at so it is never selected as due again.
	SetStatus(ctx context.Context, stateID uint, status string) error

	// PauseForReply records an inbound human reply and halts the sequence.
	PauseForReply(ctx context.Context, stateID uint, at time.Time) error

	// SuppressActiveByContact transitions every active state for the
	// contact to suppressed, returning how many were affected.
	SuppressActiveByContact(ctx context.Context, contactID uint) (int64, error)

	// RecordGenerationFailure bumps the consecutive failure counter and
	// flags the record for manual review once the threshold is reached.
	RecordGenerationFailure(ctx context.Context, stateID uint, needsReview bool) error
}

// SuppressionStore defines suppression list data access.
type SuppressionStore interface {
	Get(ctx context.Context, email string) (*models.SuppressionEntry, error)
	Create(ctx context.Context, entry *models.SuppressionEntry) error
	Update(ctx context.Context, entry *models.SuppressionEntry) error
}

// InboundStore defines inbound message dedup and ingest checkpoint access.
type InboundStore interface {
	// InsertIfNew stores the message with its resolved classification.
	// Returns false without error when the transport message id was already
	// processed; the unique index makes the check-and-set atomic.
	InsertIfNew(ctx context.Context, msg *models.InboundMessage) (bool, error)

	GetCheckpoint(ctx context.Context, mailbox string) (time.Time, error)
	SetCheckpoint(ctx context.Context, mailbox string, at time.Time) error
}
