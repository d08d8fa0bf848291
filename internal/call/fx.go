package call

import (
	"github.com/cubridge/voiceline/internal/call/service"
	"go.uber.org/fx"
)

var Module = fx.Module("call",
	fx.Provide(service.NewService),
)
