package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Filter modes.
const (
	ModeBlock = "block" // drop lines containing a keyword
	ModeAllow = "allow" // keep only lines containing a keyword
)

// Config holds the specific configuration for the KeywordGate instance.
type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Redis        RedisConfig    `yaml:"redis"`
	Filter       FilterConfig   `yaml:"filter"`
	Pipeline     PipelineConfig `yaml:"pipeline"`
	Log          LogConfig      `yaml:"log"`
	ManifestFile string         `yaml:"manifest_file"` // optional; watched with fsnotify
}

type ServerConfig struct {
	TCPPort int `yaml:"tcp_port"`
	UDPPort int `yaml:"udp_port"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	ConfigKey string `yaml:"config_key"` // key holding the manifest JSON
	Channel   string `yaml:"channel"`    // PubSub channel announcing manifest updates
}

// FilterConfig describes the keyword filter installed at startup, before any
// manifest arrives.
type FilterConfig struct {
	CaseSensitive     bool     `yaml:"case_sensitive"`
	Mode              string   `yaml:"mode"`
	Keywords          []string `yaml:"keywords"`
	InitialBufferSize int      `yaml:"initial_buffer_size"`
	MaxBufferSize     int      `yaml:"max_buffer_size"`
	MaxStates         int      `yaml:"max_states"`
}

type PipelineConfig struct {
	RingSize      uint64  `yaml:"ring_size"` // power of 2
	BatchSize     int     `yaml:"batch_size"`
	Workers       int     `yaml:"workers"`
	FailOpenRatio float64 `yaml:"fail_open_ratio"` // bypass processing above this ring usage
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			TCPPort: 8081,
			UDPPort: 8082,
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			ConfigKey: "keywordgate_config",
			Channel:   "keywordgate_updates",
		},
		Filter: FilterConfig{
			Mode:              ModeAllow,
			InitialBufferSize: 1 << 20,
			MaxBufferSize:     64 << 20,
			MaxStates:         1 << 18,
		},
		Pipeline: PipelineConfig{
			RingSize:      65536,
			BatchSize:     100,
			Workers:       1,
			FailOpenRatio: 0.80,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.RingSize == 0 || c.Pipeline.RingSize&(c.Pipeline.RingSize-1) != 0 {
		errs = append(errs, fmt.Errorf("pipeline.ring_size must be a power of 2, got %d", c.Pipeline.RingSize))
	}
	if c.Pipeline.FailOpenRatio <= 0 || c.Pipeline.FailOpenRatio > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fail_open_ratio must be in (0,1], got %v", c.Pipeline.FailOpenRatio))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers))
	}
	if c.Filter.Mode != ModeBlock && c.Filter.Mode != ModeAllow {
		errs = append(errs, fmt.Errorf("filter.mode must be %q or %q, got %q", ModeBlock, ModeAllow, c.Filter.Mode))
	}
	if c.Filter.MaxBufferSize > 0 && c.Filter.InitialBufferSize > c.Filter.MaxBufferSize {
		errs = append(errs, errors.New("filter.initial_buffer_size exceeds filter.max_buffer_size"))
	}
	return errors.Join(errs...)
}
