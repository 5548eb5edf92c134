package main

import (
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JOBROW_INVISIBILITY_TIMEOUT", "45s")
	t.Setenv("JOBROW_EXPIRATION_BATCH_SIZE", "250")
	t.Setenv("JOBROW_DASHBOARD_JOB_LIST_LIMIT", "5000")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.InvisibilityTimeout != 45*time.Second {
		t.Errorf("InvisibilityTimeout = %s, want 45s", cfg.InvisibilityTimeout)
	}
	if cfg.ExpirationBatchSize != 250 {
		t.Errorf("ExpirationBatchSize = %d, want 250", cfg.ExpirationBatchSize)
	}
	if cfg.DashboardJobListLimit != 5000 {
		t.Errorf("DashboardJobListLimit = %d, want 5000", cfg.DashboardJobListLimit)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "JOBROW_QUEUE_POLL_INTERVAL", "soon"},
		{"bad int", "JOBROW_COUNTER_BATCH_SIZE", "many"},
		{"invalid value", "JOBROW_EXPIRATION_BATCH_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := loadConfig(); err == nil {
				t.Fatalf("loadConfig with %s=%q: want error", tt.key, tt.value)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "text", false},
		{"debug", "json", false},
		{"WARN", "", false},
		{"loud", "text", true},
		{"info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			_, err := newLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv(envDriver, "")
	if got := envOr(envDriver, "postgres"); got != "postgres" {
		t.Errorf("empty env: got %q", got)
	}
	t.Setenv(envDriver, "sqlite")
	if got := envOr(envDriver, "postgres"); got != "sqlite" {
		t.Errorf("set env: got %q", got)
	}
}
