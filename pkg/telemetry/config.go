package telemetry

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config errors.
var (
	ErrNoSessionName = errors.New("session name must not be empty")
)

// Config holds engine configuration.
type Config struct {
	// SessionName names this engine instance in logs and metrics.
	SessionName string `yaml:"session_name"`

	// Adapter is the address hint handed to the transport driver
	// (e.g. "192.168.0.10:35000" for a WiFi adapter). Interpretation is
	// up to the driver; the core never dials it itself.
	Adapter string `yaml:"adapter,omitempty"`

	// ScanOnConnect controls whether a trouble-code scan runs after a
	// successful handshake.
	ScanOnConnect bool `yaml:"scan_on_connect"`

	// EventLog is the path for the CBOR event log. Empty disables it.
	EventLog string `yaml:"event_log,omitempty"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables metrics serving.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SessionName:   "obdkit",
		ScanOnConnect: true,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.SessionName == "" {
		return ErrNoSessionName
	}
	return nil
}

// LoadConfig reads a YAML config file, applying defaults for absent fields.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
