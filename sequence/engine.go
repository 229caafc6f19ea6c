// Package sequence implements the orchestration engine: enrolling contacts
// into sequences and advancing due records through generate, gate, send and
// reschedule. The engine contains no sleep loops; workers invoke its
// idempotent entry points on a timer.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"

	"cadence/generator"
	"cadence/models"
	"cadence/repository"
	"cadence/schedule"
	"cadence/transport"
)

var (
	// ErrAlreadyEnrolled is returned when the contact already has an active
	// sequence; at most one runs per contact at a time.
	ErrAlreadyEnrolled = errors.New("contact already has an active sequence")

	// ErrSuppressed is returned when enrolling a suppressed address.
	ErrSuppressed = errors.New("address is suppressed")
)

// FailureThreshold is the number of consecutive generation failures after
// which a record is flagged for manual review instead of silently retrying
// forever.
const FailureThreshold = 3

// SuppressionChecker gates sends against the suppression registry.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// ContentGenerator produces subject/body drafts for a step.
type ContentGenerator interface {
	Generate(ctx context.Context, p generator.Params) (*generator.Draft, error)
}

// BatchSummary reports one orchestration pass.
type BatchSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Errors    int `json:"errors"`
	Completed int `json:"completed"`
}

// Engine drives sequence state transitions.
type Engine struct {
	states    repository.SequenceStore
	contacts  repository.ContactStore
	registry  SuppressionChecker
	gateway   ContentGenerator
	mailer    transport.Mailer
	logger    *logrus.Logger
	batchSize int
	pace      time.Duration // delay between records within a pass
	now       func() time.Time
}

// NewEngine wires the orchestration engine.
func NewEngine(states repository.SequenceStore, contacts repository.ContactStore, registry SuppressionChecker, gateway ContentGenerator, mailer transport.Mailer, batchSize int, logger *logrus.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Engine{
		states:    states,
		contacts:  contacts,
		registry:  registry,
		gateway:   gateway,
		mailer:    mailer,
		logger:    logger,
		batchSize: batchSize,
		pace:      2 * time.Second,
		now:       time.Now,
	}
}

// Enroll creates an active sequence state for the contact, due immediately.
func (e *Engine) Enroll(ctx context.Context, contact *models.Contact, sequenceID uint) (*models.SequenceState, error) {
	contact.Email = models.NormalizeEmail(contact.Email)
	if err := checkmail.ValidateFormat(contact.Email); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", contact.Email, err)
	}

	suppressed, err := e.registry.IsSuppressed(ctx, contact.Email)
	if err != nil {
		return nil, err
	}
	if suppressed {
		return nil, ErrSuppressed
	}

	if _, err := e.states.GetSequence(ctx, sequenceID); err != nil {
		return nil, fmt.Errorf("sequence %d: %w", sequenceID, err)
	}

	if err := e.contacts.Upsert(ctx, contact); err != nil {
		return nil, fmt.Errorf("upserting contact: %w", err)
	}
	stored, err := e.contacts.GetByEmail(ctx, contact.Email)
	if err != nil {
		return nil, fmt.Errorf("loading contact: %w", err)
	}

	if existing, err := e.states.GetStateByContact(ctx, stored.ID); err == nil {
		if existing.Status == models.SequenceStatusActive {
			return nil, ErrAlreadyEnrolled
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := e.now()
	state := &models.SequenceState{
		ContactID:   stored.ID,
		SequenceID:  sequenceID,
		CurrentStep: 0,
		Status:      models.SequenceStatusActive,
		NextDueAt:   &now,
	}
	if err := e.states.CreateState(ctx, state); err != nil {
		return nil, fmt.Errorf("creating sequence state: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"contact":  contact.Email,
		"sequence": sequenceID,
	}).Info("contact enrolled")
	return state, nil
}

// ProcessDueSequences runs one orchestration pass over due records. Record
// failures are isolated and counted; a store failure aborts the cycle and is
// retried on the next scheduled invocation.
func (e *Engine) ProcessDueSequences(ctx context.Context) (*BatchSummary, error) {
	now := e.now()
	due, err := e.states.DueStates(ctx, now, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("querying due sequences: %w", err)
	}

	summary := &BatchSummary{}
	for i := range due {
		summary.Processed++
		e.processDue(ctx, &due[i], now, summary)

		// Pace consecutive sends to keep provider rate limits comfortable.
		if i < len(due)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(e.pace):
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"errors":    summary.Errors,
		"completed": summary.Completed,
	}).Info("orchestration pass finished")
	return summary, nil
}

func (e *Engine) processDue(ctx context.Context, state *models.SequenceState, now time.Time, summary *BatchSummary) {
	log := e.logger.WithFields(logrus.Fields{
		"state":   state.ID,
		"contact": state.Contact.Email,
		"step":    state.CurrentStep + 1,
	})

	// Registry state may have changed since the due query was issued.
	if e.haltIfSuppressed(ctx, state, log) {
		return
	}
	if state.ReplyReceived {
		log.Info("reply received, leaving record paused")
		return
	}

	nextStep := state.Sequence.StepByNumber(state.CurrentStep + 1)
	if nextStep == nil {
		if err := e.states.SetStatus(ctx, state.ID, models.SequenceStatusCompleted); err != nil {
			log.WithField("error", err).Error("failed to mark sequence completed")
			summary.Errors++
			return
		}
		summary.Completed++
		return
	}

	draft, err := e.gateway.Generate(ctx, generator.Params{
		ContactName:   state.Contact.DisplayName(),
		Organization:  state.Contact.Organization,
		SubjectPrompt: nextStep.SubjectPrompt,
		BodyPrompt:    nextStep.BodyPrompt,
		Category:      nextStep.Category,
		AllowFallback: nextStep.AllowFallback,
	})
	if err != nil {
		needsReview := state.ConsecutiveFailures+1 >= FailureThreshold
		if rerr := e.states.RecordGenerationFailure(ctx, state.ID, needsReview); rerr != nil {
			log.WithField("error", rerr).Error("failed to record generation failure")
		}
		log.WithFields(logrus.Fields{
			"error":        err,
			"needs_review": needsReview,
		}).Warn("content generation failed, record stays due")
		summary.Errors++
		return
	}

	// Second gate immediately before transport, closing the race with the
	// ingestor between the first check and the actual send.
	if e.haltIfSuppressed(ctx, state, log) {
		return
	}

	messageID, err := e.mailer.Send(ctx, transport.OutboundEmail{
		To:      state.Contact.Email,
		Subject: draft.Subject,
		Body:    draft.Body,
	})
	if err != nil {
		log.WithField("error", err).Warn("transport send failed, record stays due")
		summary.Errors++
		return
	}

	adv := repository.StateAdvance{
		FromStep: state.CurrentStep,
		SentAt:   now,
		Sent: models.SentEmailRecord{
			StepNumber:        nextStep.StepNumber,
			SentAt:            now,
			Subject:           draft.Subject,
			MessageID:         messageID,
			DeliveryConfirmed: true,
		},
	}

	if following := state.Sequence.StepByNumber(nextStep.StepNumber + 1); following != nil {
		next := schedule.NextGoodSendTime(schedule.AddBusinessDays(now, following.WaitBusinessDays))
		adv.NextDueAt = &next
	} else {
		adv.Completed = true
	}

	if err := e.states.Advance(ctx, state.ID, adv); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Warn("state advanced by another writer, skipping")
		} else {
			log.WithField("error", err).Error("failed to advance sequence state")
		}
		summary.Errors++
		return
	}

	summary.Sent++
	if adv.Completed {
		summary.Completed++
	}
	log.WithField("message_id", messageID).Info("step sent")
}

// haltIfSuppressed re-checks the registry and halts the record when the
// address became suppressed since the last check.
func (e *Engine) haltIfSuppressed(ctx context.Context, state *models.SequenceState, log *logrus.Entry) bool {
	suppressed, err := e.registry.IsSuppressed(ctx, state.Contact.Email)
	if err != nil {
		log.WithField("error", err).Error("suppression check failed, skipping record")
		return true
	}
	if !suppressed {
		return false
	}
	if err := e.states.SetStatus(ctx, state.ID, models.SequenceStatusSuppressed); err != nil {
		log.WithField("error", err).Error("failed to mark state suppressed")
	}
	log.Info("address suppressed, sequence halted")
	return true
}

// GetStateByEmail resolves the most recent sequence state for an address.
func (e *Engine) GetStateByEmail(ctx context.Context, email string) (*models.SequenceState, error) {
	contact, err := e.contacts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return e.states.GetStateByContact(ctx, contact.ID)
}
