package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/cubridge/voiceline/internal/member/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByPhone(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, phone string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	if member == nil {
		return nil
	}
	return db.WithContext(ctx).Create(member).Error
}
