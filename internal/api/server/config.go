// Package server provides HTTP server configuration and lifecycle management.
package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	// Host is the address to bind to (default: "").
	Host string `yaml:"host"`

	// Port is the HTTPS port.
	Port int `yaml:"port"`

	// CADir is the path to the CA directory.
	CADir string `yaml:"ca_dir"`

	// CAPassphrase decrypts the CA private key.
	CAPassphrase string `yaml:"ca_passphrase"`

	// ServerName is the subject CN (and DNS SAN) of the server certificate.
	ServerName string `yaml:"server_name"`

	// ValidityDays is the validity of issued client certificates.
	ValidityDays int `yaml:"validity_days"`

	// RotationThreshold is the required-rotation window in days.
	RotationThreshold int `yaml:"rotation_threshold"`

	// Timeouts
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "",
		Port:            8443,
		ServerName:      "localhost",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Address returns the full listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
