// Package config loads the optional per-user CLI configuration from
// ~/.poselab/config.yaml. The library layer never reads it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the in-memory representation of ~/.poselab/config.yaml.
type Config struct {
	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string `yaml:"log_level,omitempty"`
	// DefaultFormat is the format name used by convert when neither the
	// destination extension nor --format decide.
	DefaultFormat string `yaml:"default_format,omitempty"`
}

// Path returns the absolute path to ~/.poselab/config.yaml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".poselab", "config.yaml"), nil
}

// Load reads and parses the config file. A missing file yields the zero
// config without error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to ~/.poselab/config.yaml.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
