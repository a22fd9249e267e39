// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Turnstile
// components.
//
// Configuration is loaded from a single file specified by:
//   - TURNSTILE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Turnstile.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Ledger configures the object store.
	Ledger LedgerConfig `yaml:"ledger"`

	// Service configures the mutation service.
	Service ServiceConfig `yaml:"service"`

	// Platform configures genesis parameters.
	Platform PlatformConfig `yaml:"platform"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Ledger  *LedgerConfig  `yaml:"ledger,omitempty"`
	Service *ServiceConfig `yaml:"service,omitempty"`
}

// LedgerConfig configures the object store.
type LedgerConfig struct {
	// Path is the SQLite database file backing the ledger.
	Path string `yaml:"path"`

	// SegmentDir is where exported log segments are written.
	SegmentDir string `yaml:"segment_dir"`
}

// ServiceConfig configures the mutation service.
type ServiceConfig struct {
	// SocketPath is the Unix socket the service listens on.
	// Default: /run/turnstile/service.sock
	SocketPath string `yaml:"socket_path"`

	// TokenKeyFile is the path of the Ed25519 signing key for access
	// tokens (raw private key bytes; the public key lives alongside
	// at TokenKeyFile+".pub"). Required: the service generates a
	// keypair there on first boot and refuses to start without a
	// path.
	TokenKeyFile string `yaml:"token_key_file"`
}

// PlatformConfig configures genesis parameters. These only matter the
// first time a ledger is opened; afterwards the on-ledger values win.
type PlatformConfig struct {
	// SuperAdmin is the address receiving the genesis admin
	// capability.
	SuperAdmin string `yaml:"super_admin"`

	// FeeBps is the platform fee in basis points, fixed at genesis.
	FeeBps uint64 `yaml:"fee_bps"`
}

// Default returns the default configuration for development.
func Default() *Config {
	return &Config{
		Environment: Development,
		Ledger: LedgerConfig{
			Path:       "${HOME}/.turnstile/ledger.db",
			SegmentDir: "${HOME}/.turnstile/segments",
		},
		Service: ServiceConfig{
			SocketPath: "/run/turnstile/service.sock",
		},
		Platform: PlatformConfig{
			FeeBps: 250,
		},
	}
}

// Load loads configuration from the TURNSTILE_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit
// path. There are no fallbacks or defaults: if TURNSTILE_CONFIG is
// not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("TURNSTILE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TURNSTILE_CONFIG environment variable not set; " +
			"set it to the path of your turnstile.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching the active
// environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Ledger != nil {
		if overrides.Ledger.Path != "" {
			c.Ledger.Path = overrides.Ledger.Path
		}
		if overrides.Ledger.SegmentDir != "" {
			c.Ledger.SegmentDir = overrides.Ledger.SegmentDir
		}
	}
	if overrides.Service != nil {
		if overrides.Service.SocketPath != "" {
			c.Service.SocketPath = overrides.Service.SocketPath
		}
		if overrides.Service.TokenKeyFile != "" {
			c.Service.TokenKeyFile = overrides.Service.TokenKeyFile
		}
	}
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandVariables expands ${VAR} references in path fields.
func (c *Config) expandVariables() {
	expand := func(s string) string {
		return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := match[2 : len(match)-1]
			if value := os.Getenv(name); value != "" {
				return value
			}
			return match
		})
	}
	c.Ledger.Path = expand(c.Ledger.Path)
	c.Ledger.SegmentDir = expand(c.Ledger.SegmentDir)
	c.Service.SocketPath = expand(c.Service.SocketPath)
	c.Service.TokenKeyFile = expand(c.Service.TokenKeyFile)
}
