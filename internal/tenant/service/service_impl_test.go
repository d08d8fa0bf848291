package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cubridge/voiceline/internal/config"
	"github.com/cubridge/voiceline/internal/tenant/domain"
	"github.com/cubridge/voiceline/internal/tenant/repository"
)

func newTenantService(t *testing.T) (domain.Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.Tenant{}))

	svc := NewService(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Cfg:  config.Config{VoiceAI: config.VoiceAIConfig{DefaultConfigID: "cfg-default"}},
		Repo: repository.Provide(),
	})
	return svc, db
}

func seedTenant(t *testing.T, db *gorm.DB, tenant *domain.Tenant) {
	assert.NoError(t, db.Create(tenant).Error)
}

func TestResolveByNumericID(t *testing.T) {
	svc, db := newTenantService(t)
	seedTenant(t, db, &domain.Tenant{ID: snowflake.ID(101), Slug: "harborview", Name: "Harborview CU"})

	got, err := svc.Resolve(context.Background(), domain.Ref{TenantID: "101"})
	assert.NoError(t, err)
	assert.Equal(t, snowflake.ID(101), got.ID)
}

func TestResolveFallsThroughToLegacySlug(t *testing.T) {
	svc, db := newTenantService(t)
	seedTenant(t, db, &domain.Tenant{ID: snowflake.ID(101), Slug: "harborview", Name: "Harborview CU"})

	// A non-numeric tenant id is retried as a slug with the same value.
	got, err := svc.Resolve(context.Background(), domain.Ref{TenantID: "harborview"})
	assert.NoError(t, err)
	assert.Equal(t, snowflake.ID(101), got.ID)

	got, err = svc.Resolve(context.Background(), domain.Ref{LegacySlug: "Harborview"})
	assert.NoError(t, err)
	assert.Equal(t, snowflake.ID(101), got.ID)
}

func TestResolveUnknownTenant(t *testing.T) {
	svc, _ := newTenantService(t)

	_, err := svc.Resolve(context.Background(), domain.Ref{TenantID: "999", LegacySlug: "nobody"})
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestResolveIvrConfigSynthesizesDefault(t *testing.T) {
	svc, db := newTenantService(t)
	seedTenant(t, db, &domain.Tenant{
		ID:             snowflake.ID(101),
		Slug:           "harborview",
		Name:           "Harborview CU",
		SupportPhone:   "+15552140000",
		Timezone:       "America/New_York",
		Culture:        "en-US",
		OutboundNumber: "+15559990000",
		Products:       datatypes.JSON([]byte(`["checking","savings"]`)),
	})

	cfg, err := svc.ResolveIvrConfig(context.Background(), domain.Ref{TenantID: "101"})
	assert.NoError(t, err)
	assert.False(t, cfg.Custom)
	assert.Equal(t, "+15559990000", cfg.OutboundNumber)
	assert.Equal(t, "Harborview CU Virtual Assistant", cfg.AssistantName)
	assert.Equal(t, "cfg-default", cfg.AIConfigID)
	assert.Equal(t, []string{"checking", "savings"}, cfg.Products)
}

func TestResolveIvrConfigHonorsOverride(t *testing.T) {
	svc, db := newTenantService(t)
	seedTenant(t, db, &domain.Tenant{
		ID:             snowflake.ID(101),
		Slug:           "harborview",
		Name:           "Harborview CU",
		OutboundNumber: "+15559990000",
		IvrOverride: datatypes.JSONMap{
			"outboundNumber": "+15551231234",
			"aiConfigId":     "cfg-custom",
			"greeting":       "Thanks for calling Harborview",
		},
	})

	cfg, err := svc.ResolveIvrConfig(context.Background(), domain.Ref{TenantID: "101"})
	assert.NoError(t, err)
	assert.True(t, cfg.Custom)
	assert.Equal(t, "+15551231234", cfg.OutboundNumber)
	assert.Equal(t, "cfg-custom", cfg.AIConfigID)
	assert.Equal(t, "Thanks for calling Harborview", cfg.Override["greeting"])
}

func TestResolveIvrConfigRequiresOutboundLine(t *testing.T) {
	svc, db := newTenantService(t)
	seedTenant(t, db, &domain.Tenant{ID: snowflake.ID(101), Slug: "harborview", Name: "Harborview CU"})

	_, err := svc.ResolveIvrConfig(context.Background(), domain.Ref{TenantID: "101"})
	assert.ErrorIs(t, err, domain.ErrMissingOutboundLine)
}
