package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// StrippedMode marks a demo deployment. It is injected here at startup
	// and attached per-request by middleware so audit entries can flag
	// activity that happened with demo gating relaxed.
	StrippedMode bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// PublicBaseURL is the externally reachable base URL used to build
	// webhook callbacks handed to the telephony provider.
	PublicBaseURL string

	Telephony TelephonyConfig
	VoiceAI   VoiceAIConfig
	RateLimit RateLimitConfig
}

// TelephonyConfig carries outbound-call credentials for the carrier API.
type TelephonyConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
}

// VoiceAIConfig carries credentials for the conversational-AI voice provider.
type VoiceAIConfig struct {
	APIKey          string
	DefaultConfigID string
	WebhookBaseURL  string
}

// RateLimitConfig controls the optional per-tenant call-initiation limiter.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InitiateRate  float64
	InitiateBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "voiceline"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		StrippedMode: getenvBool("STRIPPED_MODE", false),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "voiceline"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		Telephony: TelephonyConfig{
			AccountSID: strings.TrimSpace(getenv("TWILIO_ACCOUNT_SID", "")),
			AuthToken:  strings.TrimSpace(getenv("TWILIO_AUTH_TOKEN", "")),
			BaseURL:    getenv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
		},
		VoiceAI: VoiceAIConfig{
			APIKey:          strings.TrimSpace(getenv("HUME_API_KEY", "")),
			DefaultConfigID: strings.TrimSpace(getenv("HUME_CONFIG_ID", "")),
			WebhookBaseURL:  strings.TrimRight(getenv("HUME_EVI_BASE_URL", "https://api.hume.ai/v0/evi"), "/"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			InitiateRate:  getenvFloat("RATE_LIMIT_INITIATE_RATE", 1),
			InitiateBurst: getenvInt("RATE_LIMIT_INITIATE_BURST", 5),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
