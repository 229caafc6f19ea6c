package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"cadence/models"
)

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceStore creates a gorm-backed sequence store.
func NewSequenceStore(db *gorm.DB) SequenceStore {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) GetSequence(ctx context.Context, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number") }).
		First(&seq, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

func (r *sequenceRepository) GetStateByContact(ctx context.Context, contactID uint) (*models.SequenceState, error) {
	var state models.SequenceState
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Sequence.Steps").
		Preload("SentEmails").
		Where("contact_id = ?", contactID).
		Order("created_at DESC").
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *sequenceRepository) CreateState(ctx context.Context, state *models.SequenceState) error {
	return r.db.WithContext(ctx).Create(state).Error
}

func (r *sequenceRepository) DueStates(ctx context.Context, now time.Time, limit int) ([]models.SequenceState, error) {
	var states []models.SequenceState
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Sequence.Steps").
		Where("status = ? AND next_due_at IS NOT NULL AND next_due_at <= ?", models.SequenceStatusActive, now).
		Order("next_due_at").
		Limit(limit).
		Find(&states).Error
	return states, err
}

func (r *sequenceRepository) Advance(ctx context.Context, stateID uint, adv StateAdvance) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status := models.SequenceStatusActive
		if adv.Completed {
			status = models.SequenceStatusCompleted
		}
		updates := map[string]interface{}{
			"current_step":         adv.FromStep + 1,
			"status":               status,
			"last_sent_at":         adv.SentAt,
			"next_due_at":          adv.NextDueAt,
			"consecutive_failures": 0,
		}

		// Compare-and-set on current_step: a concurrent worker that already
		// advanced this state makes RowsAffected zero.
		res := tx.Model(&models.SequenceState{}).
			Where("id = ? AND current_step = ? AND status = ?", stateID, adv.FromStep, models.SequenceStatusActive).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		sent := adv.Sent
		sent.SequenceStateID = stateID
		if err := tx.Create(&sent).Error; err != nil {
			return err
		}

		return tx.Model(&models.SequenceStep{}).
			Where("sequence_id = (SELECT sequence_id FROM sequence_states WHERE id = ?) AND step_number = ?", stateID, sent.StepNumber).
			Update("sent_count", gorm.Expr("sent_count + 1")).Error
	})
}

func (r *sequenceRepository) SetStatus(ctx context.Context, stateID uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.SequenceState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{
			"status":      status,
			"next_due_at": nil,
		}).Error
}

func (r *sequenceRepository) PauseForReply(ctx context.Context, stateID uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SequenceState{}).
		Where("id = ? AND status = ?", stateID, models.SequenceStatusActive).
		Updates(map[string]interface{}{
			"status":         models.SequenceStatusPausedRep,
			"next_due_at":    nil,
			"reply_received": true,
			"reply_at":       at,
		}).Error
}

func (r *sequenceRepository) SuppressActiveByContact(ctx context.Context, contactID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SequenceState{}).
		Where("contact_id = ? AND status = ?", contactID, models.SequenceStatusActive).
		Updates(map[string]interface{}{
			"status":      models.SequenceStatusSuppressed,
			"next_due_at": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *sequenceRepository) RecordGenerationFailure(ctx context.Context, stateID uint, needsReview bool) error {
	updates := map[string]interface{}{
		"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
	}
	if needsReview {
		updates["needs_review"] = true
	}
	return r.db.WithContext(ctx).
		Model(&models.SequenceState{}).
		Where("id = ?", stateID).
		Updates(updates).Error
}
