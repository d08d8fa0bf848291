package session

import (
	"github.com/cubridge/voiceline/internal/session/repository"
	"github.com/cubridge/voiceline/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
