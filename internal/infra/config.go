package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings sources for mode/resolution. Two deployments of this service
// exist: one pins mode/resolution in the environment, the other reads them
// from the triggering record.
const (
	SettingsFixed  = "fixed"
	SettingsRecord = "record"
)

// Output field styles. Airtable accepts either a plain URL text cell or an
// attachment cell populated by URL.
const (
	OutputStyleURL        = "url"
	OutputStyleAttachment = "attachment"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	AirtableAPIKey string
	AirtableBaseID string
	AirtableTable  string

	WavespeedAPIKey     string
	WavespeedBaseURL    string
	WavespeedSubmitPath string
	WavespeedResultPath string

	Mode             string
	Resolution       string
	SettingsSource   string
	OutputFieldStyle string

	PollInterval    time.Duration
	PollMaxAttempts int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		AirtableAPIKey: os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:  getEnv("AIRTABLE_TABLE", "Animation Jobs"),

		WavespeedAPIKey:     os.Getenv("WAVESPEED_API_KEY"),
		WavespeedBaseURL:    getEnv("WAVESPEED_BASE_URL", "https://api.wavespeed.ai"),
		WavespeedSubmitPath: getEnv("WAVESPEED_SUBMIT_PATH", "/api/v3/wavespeed-ai/wan-2.2/animate"),
		WavespeedResultPath: getEnv("WAVESPEED_RESULT_PATH", "/api/v3/predictions"),

		Mode:             getEnv("ANIMATE_MODE", "animate"),
		Resolution:       getEnv("ANIMATE_RESOLUTION", "720p"),
		SettingsSource:   getEnv("SETTINGS_SOURCE", SettingsFixed),
		OutputFieldStyle: getEnv("OUTPUT_FIELD_STYLE", OutputStyleURL),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 120),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	if cfg.AirtableAPIKey == "" {
		return nil, fmt.Errorf("AIRTABLE_API_KEY is required")
	}
	if cfg.AirtableBaseID == "" {
		return nil, fmt.Errorf("AIRTABLE_BASE_ID is required")
	}
	if cfg.WavespeedAPIKey == "" {
		return nil, fmt.Errorf("WAVESPEED_API_KEY is required")
	}
	if cfg.SettingsSource != SettingsFixed && cfg.SettingsSource != SettingsRecord {
		return nil, fmt.Errorf("SETTINGS_SOURCE must be %q or %q, got %q", SettingsFixed, SettingsRecord, cfg.SettingsSource)
	}
	if cfg.OutputFieldStyle != OutputStyleURL && cfg.OutputFieldStyle != OutputStyleAttachment {
		return nil, fmt.Errorf("OUTPUT_FIELD_STYLE must be %q or %q, got %q", OutputStyleURL, OutputStyleAttachment, cfg.OutputFieldStyle)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
