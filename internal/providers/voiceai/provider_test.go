package voiceai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cubridge/voiceline/internal/config"
)

func newProvider(apiKey, defaultConfig, base string) *Provider {
	return NewFromConfig(config.Config{VoiceAI: config.VoiceAIConfig{
		APIKey:          apiKey,
		DefaultConfigID: defaultConfig,
		WebhookBaseURL:  base,
	}})
}

func TestVoiceWebhookURLEmbedsConfigID(t *testing.T) {
	p := newProvider("hk_test", "cfg-default", "https://voice.example.com/")

	url := p.VoiceWebhookURL("cfg-harborview")
	assert.Equal(t, "https://voice.example.com/twilio?api_key=hk_test&config_id=cfg-harborview", url)
}

func TestVoiceWebhookURLFallsBackToDefaultConfig(t *testing.T) {
	p := newProvider("hk_test", "cfg-default", "https://voice.example.com")

	url := p.VoiceWebhookURL("")
	assert.Contains(t, url, "config_id=cfg-default")
}

func TestConfigured(t *testing.T) {
	assert.True(t, newProvider("hk_test", "", "https://voice.example.com").Configured())
	assert.False(t, newProvider("", "cfg", "https://voice.example.com").Configured())
	assert.False(t, newProvider("hk_test", "cfg", "").Configured())
}
