// Package config loads the bus server configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/life-stream-dev/life-stream-go-bus/internal/utils"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where ReadConfig looks when no path is given.
const DefaultPath = "config.yaml"

// ErrConfigCreated is returned when the configuration file did not exist and
// a default one has been written in its place.
var ErrConfigCreated = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")

// Config is the root configuration of a bus server.
type Config struct {
	AppName   string        `yaml:"app_name"`
	DebugMode bool          `yaml:"debug_mode"`
	Server    ServerConfig  `yaml:"server"`
	Session   SessionConfig `yaml:"session"`
	Router    RouterConfig  `yaml:"router"`
	Log       LogConfig     `yaml:"log"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Address        string          `yaml:"address"`
	MaxConnections int             `yaml:"max_connections"`
	WebSocket      WebSocketConfig `yaml:"websocket"`
}

// WebSocketConfig controls the optional HTTP/WebSocket listener.
type WebSocketConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Address         string `yaml:"address"`
	ReadBufferSize  int    `yaml:"read_buffer_size"`
	WriteBufferSize int    `yaml:"write_buffer_size"`
}

// SessionConfig bounds per-connection resources.
type SessionConfig struct {
	SendQueueSize  int      `yaml:"send_queue_size"`
	ReadBufferSize int      `yaml:"read_buffer_size"`
	MaxLineLength  int      `yaml:"max_line_length"`
	MaxPayloadSize int      `yaml:"max_payload_size"`
	WriteTimeout   Duration `yaml:"write_timeout"`
}

// RouterConfig tunes the publish match cache. MatchCacheSize -1 turns the
// cache off.
type RouterConfig struct {
	MatchCacheSize int `yaml:"match_cache_size"`
}

// LogConfig controls the log sink.
type LogConfig struct {
	Directory string   `yaml:"directory"`
	Retention Duration `yaml:"retention"`
}

// MetricsConfig controls periodic metric reports.
type MetricsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// Duration is a time.Duration that reads strings like "10s" or "30d".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := utils.ParseStringTime(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ReadConfig loads the configuration at path (DefaultPath when empty). A
// missing file is replaced by a default one and ErrConfigCreated is returned.
func ReadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	bytes, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return nil, fmt.Errorf("error occured while creating configuration file: %w", err)
		}
		return nil, ErrConfigCreated
	}
	if err != nil {
		return nil, fmt.Errorf("error occured while reading configuration file: %w", err)
	}

	return Parse(bytes)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("the configuration file does not contain valid YAML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
