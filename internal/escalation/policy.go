// Package escalation decides whether a detected emotion signal warrants
// flagging a session for human follow-up. The policy only decides; acting on
// the flag (live transfer, paging) is a workflow hook that lives elsewhere.
package escalation

import (
	"strings"

	"github.com/cubridge/voiceline/internal/config"
	"go.uber.org/fx"
)

// Policy evaluates emotion-confidence signals against the reloadable IVR
// policy (emotions that escalate, confidence threshold).
type Policy struct {
	holder *config.IvrPolicyHolder
}

func NewPolicy(holder *config.IvrPolicyHolder) *Policy {
	return &Policy{holder: holder}
}

// ShouldEscalate returns true iff the dominant emotion is one of the
// configured distress labels and confidence is strictly above the threshold.
// The threshold itself does not escalate.
func (p *Policy) ShouldEscalate(dominantEmotion string, confidence float64) bool {
	policy := p.holder.Get()

	emotion := strings.ToLower(strings.TrimSpace(dominantEmotion))
	if emotion == "" {
		return false
	}

	matched := false
	for _, candidate := range policy.EscalationEmotions {
		if strings.EqualFold(strings.TrimSpace(candidate), emotion) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	return confidence > policy.EscalationConfidence
}

var Module = fx.Module("escalation.policy",
	fx.Provide(NewPolicy),
)
