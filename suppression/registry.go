// Package suppression implements the global suppression registry: the single
// source of truth for whether an address may receive mail. Suppressions flow
// in from reply keywords, bounces, complaints and manual operator action, and
// are checked immediately before every send.
package suppression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cadence/models"
	"cadence/repository"
)

// ErrNotFound is returned when deactivating an address that is not suppressed.
var ErrNotFound = errors.New("suppression entry not found")

// Registry implements suppression business logic. Safe for concurrent use.
type Registry struct {
	entries  repository.SuppressionStore
	states   repository.SequenceStore
	contacts repository.ContactStore
	logger   *logrus.Logger
}

// NewRegistry creates a suppression registry backed by the given stores.
func NewRegistry(entries repository.SuppressionStore, states repository.SequenceStore, contacts repository.ContactStore, logger *logrus.Logger) *Registry {
	return &Registry{entries: entries, states: states, contacts: contacts, logger: logger}
}

// IsSuppressed reports whether the address is blocked from sending.
func (r *Registry) IsSuppressed(ctx context.Context, email string) (bool, error) {
	entry, err := r.entries.Get(ctx, models.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.IsActive(), nil
}

// Add puts an address on the suppression list. Idempotent: adding an already
// active entry is a logged no-op and returns false. In the same logical
// operation every active sequence state for the contact transitions to
// suppressed with its due time cleared, so an in-flight due-check can never
// pick it up afterwards.
func (r *Registry) Add(ctx context.Context, email, reason, source string) (bool, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("email is required")
	}

	existing, err := r.entries.Get(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	switch {
	case existing != nil && existing.IsActive():
		r.logger.WithFields(logrus.Fields{
			"email":  email,
			"reason": reason,
		}).Info("suppression already active, skipping")
		return false, nil

	case existing != nil:
		// A new detection after a manual reversal reactivates the entry.
		existing.Status = models.SuppressionStatusActive
		existing.Reason = reason
		existing.Source = source
		existing.DetectedAt = time.Now()
		existing.DeactivatedBy = ""
		existing.DeactivatedAt = nil
		if err := r.entries.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("reactivating suppression: %w", err)
		}

	default:
		entry := &models.SuppressionEntry{
			Email:      email,
			Reason:     reason,
			Source:     source,
			Status:     models.SuppressionStatusActive,
			DetectedAt: time.Now(),
		}
		if err := r.entries.Create(ctx, entry); err != nil {
			return false, fmt.Errorf("creating suppression: %w", err)
		}
	}

	if err := r.haltSequences(ctx, email); err != nil {
		return true, err
	}

	r.logger.WithFields(logrus.Fields{
		"email":  email,
		"reason": reason,
		"source": source,
	}).Info("address suppressed")
	return true, nil
}

// Deactivate reverses a suppression. Manual operator action only; nothing in
// the engine calls this automatically.
func (r *Registry) Deactivate(ctx context.Context, email, operator string) error {
	email = models.NormalizeEmail(email)
	entry, err := r.entries.Get(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !entry.IsActive() {
		return ErrNotFound
	}

	now := time.Now()
	entry.Status = models.SuppressionStatusInactive
	entry.DeactivatedBy = operator
	entry.DeactivatedAt = &now
	if err := r.entries.Update(ctx, entry); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"email":    email,
		"operator": operator,
	}).Warn("suppression deactivated")
	return nil
}

func (r *Registry) haltSequences(ctx context.Context, email string) error {
	contact, err := r.contacts.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // address never enrolled, nothing to halt
	}
	if err != nil {
		return err
	}

	halted, err := r.states.SuppressActiveByContact(ctx, contact.ID)
	if err != nil {
		return fmt.Errorf("halting sequences: %w", err)
	}
	if halted > 0 {
		r.logger.WithFields(logrus.Fields{
			"email":  email,
			"halted": halted,
		}).Info("active sequences suppressed")
	}
	return r.contacts.MarkSuppressed(ctx, email)
}
