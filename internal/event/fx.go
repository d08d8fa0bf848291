package event

import (
	"github.com/cubridge/voiceline/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event",
	fx.Provide(service.NewService),
)
