package repository

import (
	"context"
	"errors"

	"github.com/cubridge/voiceline/internal/session/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *domain.IvrSession) error {
	if session == nil {
		return nil
	}
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindByCorrelationID(ctx context.Context, db *gorm.DB, correlationID string) (*domain.IvrSession, error) {
	var session domain.IvrSession
	err := db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, correlationID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.IvrSession{}).
		Where("correlation_id = ?", correlationID).
		Updates(updates).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, message *domain.ConversationMessage) error {
	if message == nil {
		return nil
	}
	return db.WithContext(ctx).Create(message).Error
}

func (r *repo) InsertEmotion(ctx context.Context, db *gorm.DB, sample *domain.EmotionSample) error {
	if sample == nil {
		return nil
	}
	return db.WithContext(ctx).Create(sample).Error
}
