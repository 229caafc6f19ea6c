package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadence/models"
)

type contactRepository struct {
	db *gorm.DB
}

// NewContactStore creates a gorm-backed contact store.
func NewContactStore(db *gorm.DB) ContactStore {
	return &contactRepository{db: db}
}

func (r *contactRepository) GetByEmail(ctx context.Context, email string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		Preload("Attributes").
		Where("email = ?", models.NormalizeEmail(email)).
		First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) Upsert(ctx context.Context, contact *models.Contact) error {
	contact.Email = models.NormalizeEmail(contact.Email)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "organization", "position", "updated_at"}),
		}).
		Create(contact).Error
}

func (r *contactRepository) MarkSuppressed(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Update("is_suppressed", true).Error
}
