package member

import (
	"github.com/cubridge/voiceline/internal/member/repository"
	"github.com/cubridge/voiceline/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
