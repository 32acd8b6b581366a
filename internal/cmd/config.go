package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. A YAML file is optional; every
// value has a default and the environment overrides both.
type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"server"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Server.AllowedOrigin = "*"
	config.NATS.SubjectPrefix = "focusroom.events"
	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig builds the runtime configuration: defaults, then the YAML file
// at path (if non-empty), then environment overrides.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Server.AllowedOrigin = getEnv("ALLOWED_ORIGIN", config.Server.AllowedOrigin)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", config.NATS.SubjectPrefix)
	config.Database.URL = getEnv("DATABASE_URL", config.Database.URL)

	return config, nil
}
