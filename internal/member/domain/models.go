package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Member is a credit-union member reachable at a known phone number.
// Phone is stored digits-only; recognition is an exact match within the
// tenant scope, no fuzzy matching.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index:idx_members_tenant_phone" json:"tenant_id"`
	Phone     string       `gorm:"not null;index:idx_members_tenant_phone" json:"phone"`
	Name      string       `json:"name,omitempty"`
	Status    string       `gorm:"not null;default:'active'" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// NormalizePhone strips everything but digits so lookups match regardless
// of how the caller formatted the number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type Repository interface {
	FindByPhone(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, phone string) (*Member, error)
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
}

type Service interface {
	// FindByPhone resolves a member by phone within a tenant; the number
	// is normalized to digits before matching. Absence is a normal
	// outcome and returns (nil, nil).
	FindByPhone(ctx context.Context, tenantID snowflake.ID, phone string) (*Member, error)
}
