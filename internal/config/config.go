// bblocks-data-importers - Importers for international development datasets
// Copyright 2026 The ONE Campaign
// SPDX-License-Identifier: MIT
// https://github.com/ONEcampaign/bblocks-data-importers-sub000

// Package config loads importer configuration with koanf: built-in defaults
// first, then BBLOCKS_-prefixed environment variables on top.
//
//	BBLOCKS_CACHE_DIR=/var/cache/bblocks
//	BBLOCKS_HTTP_TIMEOUT=10m
//	BBLOCKS_LOG_LEVEL=debug
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "BBLOCKS_"

// Config holds configuration shared by the importers in this module.
type Config struct {
	// BACI holds settings for the CEPII BACI importer.
	BACI BACIConfig `koanf:"baci"`

	// WorldBank holds settings for the World Bank indicator importer.
	WorldBank WorldBankConfig `koanf:"worldbank"`

	// CacheDir is a persistent directory for extracted datasets. Empty
	// means a scratch temporary directory per session, removed on
	// ClearCache or process exit.
	CacheDir string `koanf:"cache_dir"`

	// HTTPTimeout bounds every HTTP request. Archives run to gigabytes,
	// so the default is generous. Zero disables the timeout.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is the log output format: json or console.
	LogFormat string `koanf:"log_format"`
}

// BACIConfig holds CEPII endpoint settings. Overridable for tests and for
// mirror hosts; the defaults point at the public CEPII site.
type BACIConfig struct {
	// CatalogURL is the version-listing page scraped for available
	// releases.
	CatalogURL string `koanf:"catalog_url"`

	// DownloadBaseURL is the base under which versioned archives live:
	// {base}/BACI_{hs}_V{version}.zip
	DownloadBaseURL string `koanf:"download_base_url"`
}

// WorldBankConfig holds World Bank API endpoint settings.
type WorldBankConfig struct {
	// APIBaseURL is the base of the indicator API:
	// {base}/country/{countries}/indicator/{id}
	APIBaseURL string `koanf:"api_base_url"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by environment variables.
func defaultConfig() *Config {
	return &Config{
		BACI: BACIConfig{
			CatalogURL:      "https://www.cepii.fr/CEPII/en/bdd_modele/bdd_modele_item.asp?id=37",
			DownloadBaseURL: "https://www.cepii.fr/DATA_DOWNLOAD/baci/data",
		},
		WorldBank: WorldBankConfig{
			APIBaseURL: "https://api.worldbank.org/v2",
		},
		CacheDir:    "",
		HTTPTimeout: 30 * time.Minute,
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

// Load builds the configuration: struct defaults, then environment
// variables with the BBLOCKS_ prefix.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// BBLOCKS_BACI_CATALOG_URL -> baci.catalog_url
	// BBLOCKS_CACHE_DIR -> cache_dir
	envProvider := env.Provider(EnvPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps an environment variable name to a koanf path. Only the
// per-importer keys are nested; everything else is a top-level key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(s, "baci_"); ok {
		return "baci." + rest
	}
	if rest, ok := strings.CutPrefix(s, "worldbank_"); ok {
		return "worldbank." + rest
	}
	return s
}

// Validate checks the configuration for malformed values.
func (c *Config) Validate() error {
	if c.BACI.CatalogURL == "" {
		return fmt.Errorf("baci.catalog_url must not be empty")
	}
	if c.BACI.DownloadBaseURL == "" {
		return fmt.Errorf("baci.download_base_url must not be empty")
	}
	if c.WorldBank.APIBaseURL == "" {
		return fmt.Errorf("worldbank.api_base_url must not be empty")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console", "":
	default:
		return fmt.Errorf("log_format %q is not one of json, console", c.LogFormat)
	}
	return nil
}
