// Package config loads the hub's yaml configuration file.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Log       LogConfig     `yaml:"log"`
	Monitor   MonitorConfig `yaml:"monitor"`
	Variables []VariableDef `yaml:"variables"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	MaxClients int    `yaml:"max_clients"`

	// Password is the shared secret gating every session. When empty,
	// the hub refuses all authentication attempts.
	Password string `yaml:"password"`
}

type LogConfig struct {
	// File receives log lines when set; otherwise lines go to stdout.
	File string `yaml:"file"`

	// Level is the minimum severity recorded, by name (debug, info,
	// normal, warning, error, critical).
	Level string `yaml:"level"`

	// ReplicateStdout mirrors file-bound lines to stdout.
	ReplicateStdout bool `yaml:"replicate_stdout"`

	// Journal is the path of the SQLite log journal. Empty disables it.
	Journal string `yaml:"journal"`
}

type MonitorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// Duration accepts Go duration strings ("5s", "100ms") in yaml, which
// yaml.v3 does not do for time.Duration itself.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// VariableDef declares one shared variable created at startup.
type VariableDef struct {
	Name     string  `yaml:"name"`
	Default  float64 `yaml:"default"`
	ReadOnly bool    `yaml:"readonly"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       31427,
			MaxClients: 128,
		},
		Log: LogConfig{
			Level:           "normal",
			ReplicateStdout: true,
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: Duration(5 * time.Second),
		},
	}
}

// Load reads and validates the configuration file at path, applied on
// top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Server.MaxClients < 1 {
		return fmt.Errorf("config: max_clients must be positive, got %d", c.Server.MaxClients)
	}
	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("config: monitor interval must be positive, got %v", c.Monitor.Interval)
	}

	seen := make(map[string]bool, len(c.Variables))
	for _, v := range c.Variables {
		if v.Name == "" {
			return fmt.Errorf("config: variable with empty name")
		}
		if seen[v.Name] {
			return fmt.Errorf("config: duplicate variable %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
