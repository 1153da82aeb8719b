// Package config loads the registry server configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BlockSourceLocal    = "local"
	BlockSourceEthereum = "ethereum"
)

// DefaultGenesis anchors local block numbers. It must stay fixed across restarts of the same
// deployment or block numbers would jump.
var DefaultGenesis = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Config is the registryd configuration. Every field has a matching command line flag.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`

	// Stores lists proof store URIs. The first one is authoritative, the rest are mirrors.
	Stores []string    `yaml:"stores"`
	Blocks BlockConfig `yaml:"blocks"`

	// Sinks lists event sink URIs (log://, redis://, amqp://).
	Sinks []string `yaml:"sinks,omitempty"`
}

type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	MetricsAddr  string `yaml:"metrics_addr"`
	Pprof        bool   `yaml:"pprof,omitempty"`
	DrainSeconds int64  `yaml:"drain_seconds"`
}

type LogConfig struct {
	JSON    bool   `yaml:"json,omitempty"`
	Debug   bool   `yaml:"debug,omitempty"`
	UID     bool   `yaml:"uid,omitempty"`
	Service string `yaml:"service,omitempty"`
}

// BlockConfig selects where block numbers come from.
type BlockConfig struct {
	Source string `yaml:"source"`

	// local
	Genesis   time.Time     `yaml:"genesis,omitempty"`
	BlockTime time.Duration `yaml:"block_time,omitempty"`

	// ethereum
	RPCURL       string        `yaml:"rpc_url,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// Defaults returns a configuration that runs a single node with an in-memory store.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   "127.0.0.1:8080",
			MetricsAddr:  "127.0.0.1:8090",
			DrainSeconds: 45,
		},
		Log: LogConfig{
			Service: "proof-registry",
		},
		Stores: []string{"memory://"},
		Blocks: BlockConfig{
			Source:       BlockSourceLocal,
			Genesis:      DefaultGenesis,
			BlockTime:    6 * time.Second,
			PollInterval: 2 * time.Second,
		},
	}
}

// Load reads the file at path on top of Defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Stores) == 0 {
		return errors.New("at least one store location is required")
	}
	if c.Server.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.Server.DrainSeconds < 0 {
		return errors.New("drain_seconds must not be negative")
	}

	switch c.Blocks.Source {
	case BlockSourceLocal:
		if c.Blocks.BlockTime <= 0 {
			return errors.New("block_time must be positive")
		}
		if c.Blocks.Genesis.IsZero() {
			return errors.New("genesis is required for the local block source")
		}
	case BlockSourceEthereum:
		if c.Blocks.RPCURL == "" {
			return errors.New("rpc_url is required for the ethereum block source")
		}
		if c.Blocks.PollInterval <= 0 {
			return errors.New("poll_interval must be positive")
		}
	default:
		return fmt.Errorf("unknown block source %q", c.Blocks.Source)
	}
	return nil
}
