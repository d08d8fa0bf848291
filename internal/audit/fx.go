package audit

import (
	"github.com/cubridge/voiceline/internal/audit/repository"
	"github.com/cubridge/voiceline/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
