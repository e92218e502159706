package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL string // GW_DATABASE_URL (required)
	HTTPAddr    string // GW_HTTP_ADDR (default ":8080")
	NATSURL     string // GW_NATS_URL (optional, empty = no events)
	AuthToken   string // GW_AUTH_TOKEN (optional, empty = auth disabled)

	// RuleTimeout bounds a single rule predicate during evaluation.
	RuleTimeout time.Duration // GW_RULE_TIMEOUT (default 5s)

	// Archive settings
	ArchiveInterval   time.Duration // GW_ARCHIVE_INTERVAL (default 10m; 0 = disabled)
	ArchiveS3Bucket   string        // GW_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // GW_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // GW_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Key      string        // GW_ARCHIVE_S3_KEY (default "gatewarden/timeline.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:       os.Getenv("GW_DATABASE_URL"),
		HTTPAddr:          envOrDefault("GW_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("GW_NATS_URL"),
		AuthToken:         os.Getenv("GW_AUTH_TOKEN"),
		ArchiveS3Bucket:   os.Getenv("GW_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("GW_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("GW_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Key:      envOrDefault("GW_ARCHIVE_S3_KEY", "gatewarden/timeline.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("GW_DATABASE_URL is required")
	}

	var err error
	if c.RuleTimeout, err = envDuration("GW_RULE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if c.ArchiveInterval, err = envDuration("GW_ARCHIVE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
