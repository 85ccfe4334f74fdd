package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process-wide configuration, read once at startup and threaded
// into components so loop bodies never consult ambient env state.
type Config struct {
	DatabaseURL string // empty selects the JSON-file store
	DataDir     string // file-store directory (file mode only)
	Port        string

	AutoReplyEnabled  bool
	AutoReplyInterval time.Duration
	AllowedRatings    map[int]bool

	// Legacy single-tenant fallback, used only when no stored tenant is
	// eligible in a tick.
	FallbackAccountID  string
	FallbackLocationID string

	GoogleAPIBase    string
	GoogleToken      string
	GoogleRPS        float64
	GoogleBurst      int
	OpenAIKey        string
	OpenAIModel      string
	OpenAIBase       string
	ResendKey        string
	ResendBase       string
	FromEmail        string
	PublicOrigin     string
	UnsubscribeKey   string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	AlertPhone       string
	TwilioBase       string

	StripeProPriceID    string
	StripeWebhookSecret string

	RunRetentionDays int
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DataDir:     getenvDefault("DATA_DIR", "data"),
		Port:        getenvDefault("PORT", "18920"),

		AutoReplyEnabled:  boolEnv("AUTO_REPLY_ENABLED", true),
		AutoReplyInterval: durationMinutesEnv("AUTO_REPLY_INTERVAL_MINUTES", 30*time.Minute),
		AllowedRatings:    ratingsEnv("AUTO_REPLY_RATINGS"),

		FallbackAccountID:  os.Getenv("FALLBACK_ACCOUNT_ID"),
		FallbackLocationID: os.Getenv("FALLBACK_LOCATION_ID"),

		GoogleAPIBase:    getenvDefault("GOOGLE_MYBUSINESS_API_BASE", "https://mybusiness.googleapis.com/v4"),
		GoogleToken:      os.Getenv("GOOGLE_ACCESS_TOKEN"),
		GoogleRPS:        floatEnv("GOOGLE_RPS", 2),
		GoogleBurst:      intEnv("GOOGLE_BURST", 2),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getenvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBase:       getenvDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
		ResendKey:        os.Getenv("RESEND_API_KEY"),
		ResendBase:       getenvDefault("RESEND_API_BASE", "https://api.resend.com"),
		FromEmail:        getenvDefault("CAMPAIGN_FROM_EMAIL", "offers@replyhero.app"),
		PublicOrigin:     getenvDefault("PUBLIC_ORIGIN", "http://localhost"),
		UnsubscribeKey:   os.Getenv("UNSUBSCRIBE_SIGNING_KEY"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		AlertPhone:       os.Getenv("ALERT_PHONE_NUMBER"),
		TwilioBase:       getenvDefault("TWILIO_API_BASE", "https://api.twilio.com"),

		StripeProPriceID:    os.Getenv("STRIPE_PRO_PRICE_ID"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		RunRetentionDays: intEnv("REPLY_RUN_RETENTION_DAYS", 90),
	}
	return cfg
}

// UseDatabase reports whether the relational backend is configured. The
// campaign scheduler only runs in database mode.
func (c Config) UseDatabase() bool {
	return c.DatabaseURL != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[Config] ignoring invalid %s=%q", key, v)
	}
	return def
}

func floatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
		log.Printf("[Config] ignoring invalid %s=%q", key, v)
	}
	return def
}

func durationMinutesEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
		log.Printf("[Config] ignoring invalid %s=%q", key, v)
	}
	return def
}

// ratingsEnv parses a comma-separated star-rating allowlist (e.g. "1,2,3").
// Empty or invalid input allows all five ratings.
func ratingsEnv(key string) map[int]bool {
	allowed := map[int]bool{}
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= 5 {
			allowed[n] = true
		}
	}
	if len(allowed) == 0 {
		for i := 1; i <= 5; i++ {
			allowed[i] = true
		}
	}
	return allowed
}
