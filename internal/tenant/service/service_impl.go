package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cubridge/voiceline/internal/config"
	"github.com/cubridge/voiceline/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config

	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	cfg  config.Config
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tenant.service"),
		cfg:  p.Cfg,
		repo: p.Repo,
	}
}

// Resolve looks the tenant up by exact id first, then by legacy slug.
// First match wins.
func (s *Service) Resolve(ctx context.Context, ref domain.Ref) (*domain.Tenant, error) {
	if raw := strings.TrimSpace(ref.TenantID); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			tenant, err := s.repo.FindByID(ctx, s.db, snowflake.ID(id))
			if err != nil {
				return nil, err
			}
			if tenant != nil {
				return tenant, nil
			}
		}
		// Tenant ids issued by the legacy platform were not numeric; fall
		// through to the slug lookup with the same value.
		if tenant, err := s.repo.FindBySlug(ctx, s.db, raw); err != nil {
			return nil, err
		} else if tenant != nil {
			return tenant, nil
		}
	}

	if legacy := strings.TrimSpace(ref.LegacySlug); legacy != "" {
		tenant, err := s.repo.FindBySlug(ctx, s.db, legacy)
		if err != nil {
			return nil, err
		}
		if tenant != nil {
			return tenant, nil
		}
	}

	return nil, domain.ErrTenantNotFound
}

// ResolveIvrConfig returns the tenant's stored IVR override verbatim when one
// exists, otherwise a default synthesized from the profile display fields.
func (s *Service) ResolveIvrConfig(ctx context.Context, ref domain.Ref) (domain.IvrConfig, error) {
	tenant, err := s.Resolve(ctx, ref)
	if err != nil {
		return domain.IvrConfig{}, err
	}

	aiConfigID := strings.TrimSpace(tenant.AIConfigID)
	if aiConfigID == "" {
		aiConfigID = s.cfg.VoiceAI.DefaultConfigID
	}

	if len(tenant.IvrOverride) > 0 {
		cfg := domain.IvrConfig{
			TenantID:       tenant.ID,
			DisplayName:    tenant.Name,
			OutboundNumber: overrideString(tenant.IvrOverride, "outboundNumber", tenant.OutboundNumber),
			AIConfigID:     overrideString(tenant.IvrOverride, "aiConfigId", aiConfigID),
			Custom:         true,
			Override:       tenant.IvrOverride,
		}
		if cfg.OutboundNumber == "" {
			return domain.IvrConfig{}, domain.ErrMissingOutboundLine
		}
		return cfg, nil
	}

	if strings.TrimSpace(tenant.OutboundNumber) == "" {
		return domain.IvrConfig{}, domain.ErrMissingOutboundLine
	}

	return domain.IvrConfig{
		TenantID:       tenant.ID,
		DisplayName:    tenant.Name,
		OutboundNumber: tenant.OutboundNumber,
		SupportPhone:   tenant.SupportPhone,
		Timezone:       tenant.Timezone,
		Culture:        tenant.Culture,
		AssistantName:  tenant.Name + " Virtual Assistant",
		AIConfigID:     aiConfigID,
		Products:       decodeProducts(tenant),
		Features:       map[string]any(tenant.Features),
		Custom:         false,
	}, nil
}

func overrideString(override map[string]any, key, fallback string) string {
	if raw, ok := override[key]; ok {
		if value, ok := raw.(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return fallback
}

func decodeProducts(tenant *domain.Tenant) []string {
	if len(tenant.Products) == 0 {
		return nil
	}
	var products []string
	if err := json.Unmarshal(tenant.Products, &products); err != nil {
		return nil
	}
	return products
}
