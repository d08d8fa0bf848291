package voiceai

import "go.uber.org/fx"

var Module = fx.Module("providers.voiceai",
	fx.Provide(NewFromConfig),
)
