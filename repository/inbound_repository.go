package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadence/models"
)

type inboundRepository struct {
	db *gorm.DB
}

// NewInboundStore creates a gorm-backed inbound message store.
func NewInboundStore(db *gorm.DB) InboundStore {
	return &inboundRepository{db: db}
}

func (r *inboundRepository) InsertIfNew(ctx context.Context, msg *models.InboundMessage) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *inboundRepository) GetCheckpoint(ctx context.Context, mailbox string) (time.Time, error) {
	var cp models.IngestCheckpoint
	err := r.db.WithContext(ctx).Where("mailbox = ?", mailbox).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return cp.LastFetchAt, nil
}

func (r *inboundRepository) SetCheckpoint(ctx context.Context, mailbox string, at time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mailbox"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_fetch_at": at}),
		}).
		Create(&models.IngestCheckpoint{Mailbox: mailbox, LastFetchAt: at}).Error
}
