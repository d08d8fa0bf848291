package voiceai

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cubridge/voiceline/internal/config"
)

// Provider holds the voice-AI platform credentials and builds the URLs the
// carrier hands a live call to.
type Provider struct {
	apiKey          string
	defaultConfigID string
	webhookBaseURL  string
}

func NewFromConfig(cfg config.Config) *Provider {
	return &Provider{
		apiKey:          cfg.VoiceAI.APIKey,
		defaultConfigID: cfg.VoiceAI.DefaultConfigID,
		webhookBaseURL:  strings.TrimRight(cfg.VoiceAI.WebhookBaseURL, "/"),
	}
}

func (p *Provider) Configured() bool {
	return p.apiKey != "" && p.webhookBaseURL != ""
}

// DefaultConfigID is the platform-level assistant configuration used when a
// tenant carries no override of its own.
func (p *Provider) DefaultConfigID() string {
	return p.defaultConfigID
}

// VoiceWebhookURL is the address the carrier connects an answered call to.
// The assistant configuration id rides along as a query parameter so the
// platform picks the tenant's persona.
func (p *Provider) VoiceWebhookURL(configID string) string {
	if configID == "" {
		configID = p.defaultConfigID
	}
	q := url.Values{}
	q.Set("config_id", configID)
	q.Set("api_key", p.apiKey)
	return fmt.Sprintf("%s/twilio?%s", p.webhookBaseURL, q.Encode())
}
