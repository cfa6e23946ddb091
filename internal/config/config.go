// Package config reads the environment of a pipeline stage once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"

	DefaultMaxAgeHours           = 48
	DefaultAISummaryMaxGraphemes = 280
	DefaultBlueskyHost           = "https://bsky.social"
)

// Needs selects which groups of variables a stage requires.
type Needs uint8

const (
	NeedStorage Needs = 1 << iota
	NeedFeed
	NeedSummary
	NeedBluesky
	NeedFailureQueue
)

// Config is the parsed, immutable stage configuration.
type Config struct {
	StorageBackend        string
	TableName             string
	PostgresURL           string
	FeedURL               string
	MaxAgeHours           int
	EnableAISummary       bool
	AIModelID             string
	AISummaryMaxGraphemes int
	BlueskySecretName     string
	BlueskyHost           string
	FailureQueueName      string
	LogLevel              string

	// Warnings lists values that were replaced by defaults. They are logged
	// once the logger exists.
	Warnings []string
}

// FromEnv loads .env when present and parses the process environment.
func FromEnv(needs Needs) (*Config, error) {
	_ = godotenv.Load()

	return Parse(os.LookupEnv, needs)
}

// Parse builds a Config from lookup. Required values must be non-blank after
// trimming.
func Parse(lookup func(string) (string, bool), needs Needs) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		StorageBackend:    strings.ToLower(get("STORAGE_BACKEND")),
		TableName:         get("DYNAMODB_TABLE_NAME"),
		PostgresURL:       get("POSTGRES_URL"),
		FeedURL:           get("FEED_URL"),
		AIModelID:         get("AI_MODEL_ID"),
		EnableAISummary:   strings.EqualFold(get("ENABLE_AI_SUMMARY"), "true"),
		BlueskySecretName: get("BLUESKY_CREDENTIALS_SECRET_NAME"),
		BlueskyHost:       get("BLUESKY_HOST"),
		FailureQueueName:  get("FAILURE_QUEUE_NAME"),
		LogLevel:          get("LOG_LEVEL"),
	}

	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendDynamoDB
	}

	if cfg.BlueskyHost == "" {
		cfg.BlueskyHost = DefaultBlueskyHost
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var errs []error

	if needs&NeedStorage != 0 {
		switch cfg.StorageBackend {
		case BackendDynamoDB:
			errs = append(errs, required("DYNAMODB_TABLE_NAME", cfg.TableName))
		case BackendPostgres:
			errs = append(errs, required("POSTGRES_URL", cfg.PostgresURL))
		default:
			errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendDynamoDB, BackendPostgres, cfg.StorageBackend))
		}
	}

	if needs&NeedFeed != 0 {
		errs = append(errs, required("FEED_URL", cfg.FeedURL))

		n, err := cfg.positiveInt(get("MAX_AGE_HOURS"), "MAX_AGE_HOURS", DefaultMaxAgeHours)
		errs = append(errs, err)
		cfg.MaxAgeHours = n
	}

	if needs&NeedSummary != 0 {
		if cfg.EnableAISummary {
			errs = append(errs, required("AI_MODEL_ID", cfg.AIModelID))
		}

		n, err := cfg.positiveInt(get("AI_SUMMARY_MAX_GRAPHEMES"), "AI_SUMMARY_MAX_GRAPHEMES", DefaultAISummaryMaxGraphemes)
		errs = append(errs, err)
		cfg.AISummaryMaxGraphemes = n
	}

	if needs&NeedBluesky != 0 {
		errs = append(errs, required("BLUESKY_CREDENTIALS_SECRET_NAME", cfg.BlueskySecretName))
	}

	if needs&NeedFailureQueue != 0 && cfg.FailureQueueName != "" && !strings.HasSuffix(cfg.FailureQueueName, ".fifo") {
		errs = append(errs, fmt.Errorf("FAILURE_QUEUE_NAME must name a FIFO queue, got %q", cfg.FailureQueueName))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s environment variable not set", key)
	}

	return nil
}

// positiveInt parses raw. Absent or non-positive values fall back to def with
// a warning; unparsable values are an error.
func (c *Config) positiveInt(raw, key string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s as an integer: %w", key, err)
	}

	if n <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s is %d, defaulting to %d", key, n, def))
		return def, nil
	}

	return n, nil
}
