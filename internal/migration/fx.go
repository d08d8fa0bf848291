package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/cubridge/voiceline/internal/audit/domain"
	"github.com/cubridge/voiceline/internal/config"
	memberdomain "github.com/cubridge/voiceline/internal/member/domain"
	"github.com/cubridge/voiceline/internal/seed"
	sessiondomain "github.com/cubridge/voiceline/internal/session/domain"
	tenantdomain "github.com/cubridge/voiceline/internal/tenant/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql get the schema from gorm; the SQL
			// migrations are written for postgres.
			if err := conn.AutoMigrate(
				&tenantdomain.Tenant{},
				&memberdomain.Member{},
				&sessiondomain.IvrSession{},
				&sessiondomain.ConversationMessage{},
				&sessiondomain.EmotionSample{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.Environment != "production" {
			return seed.EnsureDemoTenant(conn)
		}
		return nil
	}),
)
