package tenant

import (
	"github.com/cubridge/voiceline/internal/tenant/repository"
	"github.com/cubridge/voiceline/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
