package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrMissingOutboundLine = errors.New("tenant has no outbound voice number")
)

// Tenant is one credit union. All session, member and audit rows are scoped
// by its id. Slug is the legacy identifier carried over from the previous
// platform and still accepted on lookups.
type Tenant struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Slug           string            `gorm:"uniqueIndex;not null" json:"slug"`
	Name           string            `gorm:"not null" json:"name"`
	CharterNumber  string            `json:"charter_number,omitempty"`
	SupportPhone   string            `json:"support_phone,omitempty"`
	RoutingNumber  string            `json:"routing_number,omitempty"`
	Timezone       string            `json:"timezone,omitempty"`
	Domain         string            `json:"domain,omitempty"`
	OutboundNumber string            `json:"outbound_number,omitempty"`
	AIConfigID     string            `gorm:"column:ai_config_id" json:"ai_config_id,omitempty"`
	Products       datatypes.JSON    `gorm:"type:jsonb" json:"products,omitempty"`
	Culture        string            `json:"culture,omitempty"`
	Features       datatypes.JSONMap `gorm:"type:jsonb" json:"features,omitempty"`
	IvrOverride    datatypes.JSONMap `gorm:"type:jsonb" json:"ivr_override,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Ref identifies a tenant on inbound requests: by id, or by legacy slug.
type Ref struct {
	TenantID   string
	LegacySlug string
}

// IvrConfig is what call dispatch needs from a tenant: either the stored
// override verbatim, or a default synthesized from the profile.
type IvrConfig struct {
	TenantID       snowflake.ID      `json:"tenant_id"`
	DisplayName    string            `json:"display_name"`
	OutboundNumber string            `json:"outbound_number"`
	SupportPhone   string            `json:"support_phone,omitempty"`
	Timezone       string            `json:"timezone,omitempty"`
	Culture        string            `json:"culture,omitempty"`
	AssistantName  string            `json:"assistant_name,omitempty"`
	AIConfigID     string            `json:"ai_config_id,omitempty"`
	Products       []string          `json:"products,omitempty"`
	Features       map[string]any    `json:"features,omitempty"`
	Custom         bool              `json:"custom"`
	Override       datatypes.JSONMap `json:"override,omitempty"`
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Tenant, error)
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
}

type Service interface {
	Resolve(ctx context.Context, ref Ref) (*Tenant, error)
	ResolveIvrConfig(ctx context.Context, ref Ref) (IvrConfig, error)
}
