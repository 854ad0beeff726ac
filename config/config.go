// Copyright 2025 ChurchOps
// SPDX-License-Identifier: Apache-2.0

// Package config loads service configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// CatalogPath points at the pre-generated route index file.
	CatalogPath string `yaml:"catalog_path"`

	// Completion configures the completion-service client.
	Completion CompletionConfig `yaml:"completion"`

	// ServiceURLs maps canonical downstream service names to base origins.
	// Entries override the built-in defaults.
	ServiceURLs map[string]string `yaml:"service_urls"`

	// HistoryDSN is the PostgreSQL DSN for the question/answer history
	// store. History recording is disabled when empty.
	HistoryDSN string `yaml:"history_dsn"`
}

// CompletionConfig configures the completion-service client.
type CompletionConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Load reads the YAML config at path and applies environment overrides.
// An empty path yields defaults plus environment values.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr:  ":8085",
		CatalogPath: "route-index.json",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Completion.APIKey == "" {
		return nil, fmt.Errorf("completion api key is required (set completion.api_key or COMPLETION_API_KEY)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ROUTE_CATALOG_PATH"); v != "" {
		cfg.CatalogPath = v
	}
	if v := os.Getenv("COMPLETION_API_KEY"); v != "" {
		cfg.Completion.APIKey = v
	}
	if v := os.Getenv("COMPLETION_BASE_URL"); v != "" {
		cfg.Completion.BaseURL = v
	}
	if v := os.Getenv("COMPLETION_MODEL"); v != "" {
		cfg.Completion.Model = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		cfg.HistoryDSN = v
	}
}
