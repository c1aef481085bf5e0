package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete receiver configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains WebSocket listener configuration
type ServerConfig struct {
	BindAddress    string `yaml:"bind_address"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	ReadBufferSize int    `yaml:"read_buffer_size"`
	MaxMessageSize int64  `yaml:"max_message_size"` // bytes, 0 = transport default
}

// HTTPConfig contains the optional monitoring API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// DisplayConfig contains optional output toggles
type DisplayConfig struct {
	ShowHeartbeats   bool `yaml:"show_heartbeats"`
	ShowVideoDetails bool `yaml:"show_video_details"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no config file is present.
// Port 8766 avoids the common local services around 8765 (AnkiConnect).
// Logs default to stderr so they never interleave with the stdout subtitle
// output.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:    "localhost",
			Port:           8766,
			Path:           "/",
			ReadBufferSize: 4096,
			MaxMessageSize: 1 << 20,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "localhost",
			Port:    9090,
		},
		Display: DisplayConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. A missing file is not an
// error: the defaults apply, so the receiver works with zero setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the complete configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the WebSocket listener configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path must start with '/', got %q", s.Path)
	}

	if s.ReadBufferSize < 0 {
		return fmt.Errorf("read_buffer_size cannot be negative, got %d", s.ReadBufferSize)
	}

	if s.MaxMessageSize < 0 {
		return fmt.Errorf("max_message_size cannot be negative, got %d", s.MaxMessageSize)
	}

	return nil
}

// Validate validates the monitoring API configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr, or a file path; nothing to reject here.
	return nil
}

// ListenAddr returns the host:port string the WebSocket listener binds to.
func (s *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// ListenAddr returns the host:port string the monitoring API binds to.
func (h *HTTPConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}
