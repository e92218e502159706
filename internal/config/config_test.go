package config

import (
	"testing"
	"time"
)

var allEnvVars = []string{
	"GW_DATABASE_URL", "GW_HTTP_ADDR", "GW_NATS_URL", "GW_AUTH_TOKEN",
	"GW_RULE_TIMEOUT", "GW_ARCHIVE_INTERVAL", "GW_ARCHIVE_S3_BUCKET",
	"GW_ARCHIVE_S3_ENDPOINT", "GW_ARCHIVE_S3_REGION", "GW_ARCHIVE_S3_KEY",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "Defaults",
			env:          map[string]string{"GW_DATABASE_URL": "postgres://localhost/gatewarden"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "Custom",
			env: map[string]string{
				"GW_DATABASE_URL": "postgres://db:5432/gatewarden",
				"GW_HTTP_ADDR":    ":3000",
				"GW_NATS_URL":     "nats://localhost:4222",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["GW_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["GW_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("GW_DATABASE_URL", "postgres://localhost/gatewarden")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuleTimeout != 5*time.Second {
		t.Errorf("RuleTimeout = %v, want 5s", cfg.RuleTimeout)
	}
	if cfg.ArchiveInterval != 10*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 10m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Region != "us-east-1" {
		t.Errorf("ArchiveS3Region = %q, want %q", cfg.ArchiveS3Region, "us-east-1")
	}
	if cfg.ArchiveS3Key != "gatewarden/timeline.jsonl" {
		t.Errorf("ArchiveS3Key = %q", cfg.ArchiveS3Key)
	}
}

func TestLoadArchiveCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("GW_DATABASE_URL", "postgres://localhost/gatewarden")
	t.Setenv("GW_ARCHIVE_INTERVAL", "30m")
	t.Setenv("GW_ARCHIVE_S3_BUCKET", "audit-bucket")
	t.Setenv("GW_ARCHIVE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("GW_RULE_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ArchiveInterval != 30*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 30m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Bucket != "audit-bucket" {
		t.Errorf("ArchiveS3Bucket = %q", cfg.ArchiveS3Bucket)
	}
	if cfg.ArchiveS3Endpoint != "http://minio:9000" {
		t.Errorf("ArchiveS3Endpoint = %q", cfg.ArchiveS3Endpoint)
	}
	if cfg.RuleTimeout != 2*time.Second {
		t.Errorf("RuleTimeout = %v, want 2s", cfg.RuleTimeout)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("GW_DATABASE_URL", "postgres://localhost/gatewarden")
	t.Setenv("GW_RULE_TIMEOUT", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid GW_RULE_TIMEOUT")
	}
}

func TestLoadArchiveDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("GW_DATABASE_URL", "postgres://localhost/gatewarden")
	t.Setenv("GW_ARCHIVE_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ArchiveInterval != 0 {
		t.Errorf("ArchiveInterval = %v, want 0 (disabled)", cfg.ArchiveInterval)
	}
}
