package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// IvrPolicy holds operator-tunable IVR behavior that may change without a
// redeploy: escalation thresholds and the fallback destination used when a
// call-initiation request omits one.
type IvrPolicy struct {
	EscalationEmotions    []string `mapstructure:"escalationEmotions"`
	EscalationConfidence  float64  `mapstructure:"escalationConfidence"`
	DefaultTestNumber     string   `mapstructure:"defaultTestNumber"`
	DispatchTimeoutSecond int      `mapstructure:"dispatchTimeoutSeconds"`
}

func DefaultIvrPolicy() IvrPolicy {
	return IvrPolicy{
		EscalationEmotions:    []string{"frustration", "anger"},
		EscalationConfidence:  0.7,
		DefaultTestNumber:     "",
		DispatchTimeoutSecond: 15,
	}
}

// IvrPolicyHolder exposes the current policy behind an atomic.Value so
// concurrent readers never observe a partially reloaded config.
type IvrPolicyHolder struct {
	current atomic.Value // holds IvrPolicy
}

func NewIvrPolicyHolder() (*IvrPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("ivr")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/voiceline/config")
	v.AddConfigPath("/etc/voiceline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOICELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIvrPolicy()
	v.SetDefault("ivr.escalationEmotions", defaults.EscalationEmotions)
	v.SetDefault("ivr.escalationConfidence", defaults.EscalationConfidence)
	v.SetDefault("ivr.defaultTestNumber", defaults.DefaultTestNumber)
	v.SetDefault("ivr.dispatchTimeoutSeconds", defaults.DispatchTimeoutSecond)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy IvrPolicy
	if err := v.UnmarshalKey("ivr", &policy); err != nil {
		return nil, err
	}
	if err := validateIvrPolicy(policy); err != nil {
		return nil, err
	}

	holder := &IvrPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated IvrPolicy
		if err := v.UnmarshalKey("ivr", &updated); err != nil {
			log.Printf("[ivr-policy] reload failed: %v", err)
			return
		}
		if err := validateIvrPolicy(updated); err != nil {
			log.Printf("[ivr-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[ivr-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *IvrPolicyHolder) Get() IvrPolicy {
	return h.current.Load().(IvrPolicy)
}

// StaticIvrPolicyHolder wraps a fixed policy; used by tests.
func StaticIvrPolicyHolder(policy IvrPolicy) *IvrPolicyHolder {
	holder := &IvrPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func validateIvrPolicy(policy IvrPolicy) error {
	if len(policy.EscalationEmotions) == 0 {
		return errors.New("ivr.escalationEmotions cannot be empty")
	}
	if policy.EscalationConfidence < 0 || policy.EscalationConfidence >= 1 {
		return errors.New("ivr.escalationConfidence must be in [0, 1)")
	}
	if policy.DispatchTimeoutSecond <= 0 {
		return errors.New("ivr.dispatchTimeoutSeconds must be positive")
	}
	return nil
}
