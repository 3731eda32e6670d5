// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiln-foundation/kiln/lib/audit"
	"github.com/kiln-foundation/kiln/lib/did"
)

// Config is the daemon configuration, loaded from a YAML file.
type Config struct {
	// SocketPath is the Unix socket the daemon listens on.
	// Defaults to /run/kiln/authd.sock.
	SocketPath string `yaml:"socket_path"`

	// RegistryPath is the JSONC identity registry. When empty, every
	// DID resolves through the builtin did:key and did:pkh rules with
	// no parent links.
	RegistryPath string `yaml:"registry_path"`

	// MetricsAddress is the listen address for the Prometheus
	// /metrics endpoint (e.g. "127.0.0.1:9464"). Metrics are not
	// served when empty.
	MetricsAddress string `yaml:"metrics_address"`

	// AuditPath is the decision audit log. Auditing is disabled when
	// empty.
	AuditPath string `yaml:"audit_path"`

	// AuditCompression selects the audit frame compression: "none",
	// "lz4", or "zstd". Defaults to zstd.
	AuditCompression string `yaml:"audit_compression"`

	// ResolverCacheTTL bounds how long a resolved identity is reused
	// before the resolver is consulted again. Zero disables the
	// cache.
	ResolverCacheTTL Duration `yaml:"resolver_cache_ttl"`

	// Revokers lists the DIDs whose signed revocation requests the
	// daemon accepts. When empty, the revoke action refuses all
	// requests.
	Revokers []string `yaml:"revokers"`
}

// Duration wraps time.Duration so YAML configs can use the string
// forms time.ParseDuration accepts ("30s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar value")
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q is negative", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig loads a configuration from a YAML file and applies
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if config.SocketPath == "" {
		config.SocketPath = "/run/kiln/authd.sock"
	}
	if config.AuditCompression == "" {
		config.AuditCompression = "zstd"
	}

	return &config, nil
}

// Validate checks the configuration for errors that LoadConfig's
// decoding cannot catch.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path is required")
	}
	if _, err := audit.ParseCompression(c.AuditCompression); err != nil {
		return fmt.Errorf("audit_compression: %w", err)
	}
	if _, err := c.RevokerSet(); err != nil {
		return err
	}
	return nil
}

// RevokerSet parses the configured revoker DIDs into a lookup set.
func (c *Config) RevokerSet() (map[did.DID]struct{}, error) {
	set := make(map[did.DID]struct{}, len(c.Revokers))
	for i, raw := range c.Revokers {
		id, err := did.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("revokers[%d]: %w", i, err)
		}
		if _, dup := set[id]; dup {
			return nil, fmt.Errorf("revoker %s listed twice", id)
		}
		set[id] = struct{}{}
	}
	return set, nil
}
