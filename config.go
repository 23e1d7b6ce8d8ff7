package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Device is the path to the PMU's serial port (e.g. "/dev/ttyLP2")
	Device string `yaml:"device"`
	// Baud is the baud rate for serial communication with the PMU
	Baud int `yaml:"baud"`
	// Timeout is the overall per-command reply deadline
	Timeout time.Duration `yaml:"timeout"`
	// IdleWindow is the maximum gap between reply bytes before the reply
	// is considered finished
	IdleWindow time.Duration `yaml:"idle_window"`
	// DrainWindow bounds the pre-send read discarding stale bytes
	DrainWindow time.Duration `yaml:"drain_window"`
	// Terminators overrides the prompt markers ending a reply; the set is
	// firmware-build dependent
	Terminators []string `yaml:"terminators"`
	// Format selects the output rendering (human, json, csv)
	Format string `yaml:"format"`
	// LogLevel sets the logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// Quiet suppresses non-error output
	Quiet bool `yaml:"quiet"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.Device = "/dev/ttyLP2"
		c.Baud = 115200
		c.Timeout = 3 * time.Second
		c.Format = "human"
		c.LogLevel = "warn"
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is a no-op so
// the option can be applied unconditionally.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if device := os.Getenv("PMUCTL_DEVICE"); device != "" {
			c.Device = device
		}

		if baud := os.Getenv("PMUCTL_BAUD"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.Baud = b
			}
		}

		if timeout := os.Getenv("PMUCTL_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.Timeout = d
			}
		}

		if format := os.Getenv("PMUCTL_FORMAT"); format != "" {
			c.Format = format
		}

		if level := os.Getenv("PMUCTL_LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "device":
				c.Device = f.Value.String()
			case "baud":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.Baud = b
				}
			case "timeout":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.Timeout = d
				}
			case "format":
				c.Format = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "quiet":
				c.Quiet = f.Value.String() == "true"
			}
		})
		return nil
	}
}
