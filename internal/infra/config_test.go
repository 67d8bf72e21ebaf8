package infra

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AIRTABLE_API_KEY", "key-test")
	t.Setenv("AIRTABLE_BASE_ID", "appTESTBASE")
	t.Setenv("WAVESPEED_API_KEY", "ws-test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AirtableTable != "Animation Jobs" {
		t.Fatalf("AirtableTable = %q, want %q", cfg.AirtableTable, "Animation Jobs")
	}
	if cfg.WavespeedBaseURL != "https://api.wavespeed.ai" {
		t.Fatalf("WavespeedBaseURL = %q", cfg.WavespeedBaseURL)
	}
	if cfg.Mode != "animate" || cfg.Resolution != "720p" {
		t.Fatalf("mode/resolution defaults = %q/%q", cfg.Mode, cfg.Resolution)
	}
	if cfg.SettingsSource != SettingsFixed {
		t.Fatalf("SettingsSource = %q, want %q", cfg.SettingsSource, SettingsFixed)
	}
	if cfg.OutputFieldStyle != OutputStyleURL {
		t.Fatalf("OutputFieldStyle = %q, want %q", cfg.OutputFieldStyle, OutputStyleURL)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 120 {
		t.Fatalf("PollMaxAttempts = %d, want 120", cfg.PollMaxAttempts)
	}
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	cases := []struct {
		name string
		omit string
	}{
		{"airtable key", "AIRTABLE_API_KEY"},
		{"airtable base", "AIRTABLE_BASE_ID"},
		{"wavespeed key", "WAVESPEED_API_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.omit, "")

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("expected error when %s is missing", tc.omit)
			}
			if !strings.Contains(err.Error(), tc.omit) {
				t.Fatalf("error %q does not name %s", err, tc.omit)
			}
		})
	}
}

func TestLoadConfigRejectsUnknownSettingsSource(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SETTINGS_SOURCE", "dynamic")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown settings source")
	}
}

func TestLoadConfigRejectsUnknownOutputStyle(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OUTPUT_FIELD_STYLE", "inline")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown output field style")
	}
}

func TestLoadConfigHonorsPollOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("POLL_MAX_ATTEMPTS", "30")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 30 {
		t.Fatalf("PollMaxAttempts = %d, want 30", cfg.PollMaxAttempts)
	}
}

func TestLoadConfigParsesCORSList(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v, want %#v", cfg.CORSAllowedOrigins, want)
	}
	for i, origin := range want {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
}
