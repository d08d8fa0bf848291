package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cubridge/voiceline/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("member.service"),
		repo: p.Repo,
	}
}

func (s *Service) FindByPhone(ctx context.Context, tenantID snowflake.ID, phone string) (*domain.Member, error) {
	normalized := domain.NormalizePhone(strings.TrimSpace(phone))
	if normalized == "" {
		return nil, nil
	}
	return s.repo.FindByPhone(ctx, s.db, tenantID, normalized)
}
