// Package config loads the message server's settings from environment
// variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the message server.
type Config struct {
	// HTTPPort is the listen address, e.g. ":8080".
	HTTPPort string
	LogLevel string

	ProjectID      string
	CollectionName string
	TopicID        string

	// LocalMode swaps Firestore and Pub/Sub for the in-memory store and the
	// log-only publisher. Useful for development and smoke tests.
	LocalMode bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ProjectID:      os.Getenv("GCP_PROJECT_ID"),
		CollectionName: getEnv("MESSAGE_COLLECTION", "messages"),
		TopicID:        getEnv("BROADCAST_TOPIC", "messages"),
		LocalMode:      getEnvBool("LOCAL_MODE", false),
	}

	if !cfg.LocalMode && cfg.ProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID environment variable is required unless LOCAL_MODE=true")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
