// Package config provides configuration management for the debug
// broker.
//
// Configuration controls:
//   - Capability mode (readonly vs full): determines which tools are
//     available on the command surface
//   - The target URL admission policy: which hosts connect_session may
//     dial without explicit confirmation
//   - Safety limits: maximum concurrent sessions and per-command timeout
//
// Configuration can be loaded from a JSON file or use sensible
// defaults. Readonly mode exposes only the inspection operations;
// full mode also enables execution control (breakpoints, stepping,
// variable modification).
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ctagard/inspector-broker/internal/registry"
)

// CapabilityMode defines the level of debugging capabilities exposed.
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly"
	ModeFull     CapabilityMode = "full"
)

// Config holds the broker's configuration.
type Config struct {
	Mode CapabilityMode `json:"mode"`

	AllowedHosts       []string `json:"allowedHosts"`
	AllowUnlistedHosts bool     `json:"allowUnlistedHosts"`

	MaxSessions           int `json:"maxSessions"`
	CommandTimeoutSeconds int `json:"commandTimeoutSeconds"`
}

// DefaultConfig returns a configuration with sensible defaults: full
// capability mode, a localhost-only allow-list, ten concurrent
// sessions, a five second per-command timeout.
func DefaultConfig() *Config {
	return &Config{
		Mode:                  ModeFull,
		AllowedHosts:          []string{"localhost", "127.0.0.1", "::1"},
		AllowUnlistedHosts:    false,
		MaxSessions:           10,
		CommandTimeoutSeconds: 5,
	}
}

// LoadConfig loads configuration from a JSON file, falling back to
// DefaultConfig if path is empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AdmissionPolicy projects the config's host allow-list settings into
// the shape internal/registry consumes.
func (c *Config) AdmissionPolicy() registry.AdmissionPolicy {
	return registry.AdmissionPolicy{
		AllowedHosts:  c.AllowedHosts,
		AllowUnlisted: c.AllowUnlistedHosts,
	}
}

// CommandTimeout returns the per-command deadline as a time.Duration.
func (c *Config) CommandTimeout() time.Duration {
	if c.CommandTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// CanUseControlTools returns true if breakpoint/step/continue/pause/
// set-variable operations are enabled.
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}
