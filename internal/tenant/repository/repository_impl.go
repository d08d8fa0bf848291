package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cubridge/voiceline/internal/tenant/domain"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, raw string) (*domain.Tenant, error) {
	normalized := slug.Make(strings.TrimSpace(raw))
	if normalized == "" {
		return nil, nil
	}

	var tenant domain.Tenant
	err := db.WithContext(ctx).Where("slug = ?", normalized).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	if tenant == nil {
		return nil
	}
	tenant.Slug = slug.Make(tenant.Slug)
	return db.WithContext(ctx).Create(tenant).Error
}
