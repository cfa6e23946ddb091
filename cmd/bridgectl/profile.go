package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/goccy/go-yaml"
)

// Profile is the YAML file bridgectl reads its connection settings from.
type Profile struct {
	StorageBackend   string `yaml:"storage_backend"`
	TableName        string `yaml:"table_name"`
	PostgresURL      string `yaml:"postgres_url"`
	FailureQueueName string `yaml:"failure_queue_name"`
	LogLevel         string `yaml:"log_level"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".bridgectl.yaml")
}

// loadProfile reads path. A missing file is only an error when the path was
// given explicitly.
func loadProfile(path string, explicit bool) (Profile, error) {
	var p Profile

	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}

		return p, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return p, nil
}

// merge returns p with every non-empty field of override applied.
func (p Profile) merge(override Profile) Profile {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&p.StorageBackend, override.StorageBackend)
	set(&p.TableName, override.TableName)
	set(&p.PostgresURL, override.PostgresURL)
	set(&p.FailureQueueName, override.FailureQueueName)
	set(&p.LogLevel, override.LogLevel)

	return p
}

// config validates the profile through the same rules the stages use.
func (p Profile) config(needs config.Needs) (*config.Config, error) {
	values := map[string]string{
		"STORAGE_BACKEND":     p.StorageBackend,
		"DYNAMODB_TABLE_NAME": p.TableName,
		"POSTGRES_URL":        p.PostgresURL,
		"FAILURE_QUEUE_NAME":  p.FailureQueueName,
		"LOG_LEVEL":           p.LogLevel,
	}

	return config.Parse(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}, needs)
}
