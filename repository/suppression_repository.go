package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cadence/models"
)

type suppressionRepository struct {
	db *gorm.DB
}

// NewSuppressionStore creates a gorm-backed suppression store.
func NewSuppressionStore(db *gorm.DB) SuppressionStore {
	return &suppressionRepository{db: db}
}

func (r *suppressionRepository) Get(ctx context.Context, email string) (*models.SuppressionEntry, error) {
	var entry models.SuppressionEntry
	err := r.db.WithContext(ctx).
		Where("email = ?", models.NormalizeEmail(email)).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *suppressionRepository) Create(ctx context.Context, entry *models.SuppressionEntry) error {
	entry.Email = models.NormalizeEmail(entry.Email)
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *suppressionRepository) Update(ctx context.Context, entry *models.SuppressionEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}
