package providers

import (
	"github.com/cubridge/voiceline/internal/providers/telephony"
	"github.com/cubridge/voiceline/internal/providers/voiceai"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	telephony.Module,
	voiceai.Module,
)
