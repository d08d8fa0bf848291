package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	memberdomain "github.com/cubridge/voiceline/internal/member/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

const (
	demoTenantSlug = "harborview"
	demoTenantName = "Harborview Credit Union"
	demoMemberName = "Dana Whitfield"
)

// EnsureDemoTenant seeds one credit union and one member so a fresh
// development install can place a call immediately. Idempotent by slug.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := ensureTenantTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureMemberTx(ctx, tx, node, tenant.ID)
	})
}

func ensureTenantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*tenantdomain.Tenant, error) {
	var existing tenantdomain.Tenant
	err := tx.WithContext(ctx).Where("slug = ?", demoTenantSlug).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	tenant := tenantdomain.Tenant{
		ID:             node.Generate(),
		Slug:           demoTenantSlug,
		Name:           demoTenantName,
		CharterNumber:  "68114",
		SupportPhone:   "+15552140000",
		RoutingNumber:  "211370545",
		Timezone:       "America/New_York",
		Domain:         "harborviewcu.example.org",
		OutboundNumber: "+15559990000",
		Products:       datatypes.JSON([]byte(`["checking","savings","auto-loans"]`)),
		Culture:        "en-US",
		Features:       datatypes.JSONMap{"voiceBanking": true},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func ensureMemberTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&memberdomain.Member{}).
		Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	member := memberdomain.Member{
		ID:        node.Generate(),
		TenantID:  tenantID,
		Phone:     memberdomain.NormalizePhone("+15550001111"),
		Name:      demoMemberName,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).Create(&member).Error
}
