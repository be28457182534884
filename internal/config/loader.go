package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	StreamAddr     string   `json:"stream_addr" yaml:"stream_addr" toml:"stream_addr"`
	PacketPath     string   `json:"packet_path" yaml:"packet_path" toml:"packet_path"`
	Transports     []string `json:"transports" yaml:"transports" toml:"transports"`
	StopTimeoutMS  int      `json:"stop_timeout_ms" yaml:"stop_timeout_ms" toml:"stop_timeout_ms"`
	MailboxSize    int      `json:"mailbox_size" yaml:"mailbox_size" toml:"mailbox_size"`
	MaxReportBytes int      `json:"max_report_bytes" yaml:"max_report_bytes" toml:"max_report_bytes"`
	Instances      []int    `json:"instances" yaml:"instances" toml:"instances"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values that cannot be defaulted away.
func (c Config) Validate() error {
	for _, t := range c.Transports {
		if t != "stream" && t != "packet" {
			return fmt.Errorf("unknown transport %q", t)
		}
	}
	for _, id := range c.Instances {
		if id < 0 || id > 0xFF {
			return fmt.Errorf("instance id %d out of range 0-255", id)
		}
	}
	if c.StopTimeoutMS < 0 {
		return fmt.Errorf("negative stop_timeout_ms")
	}
	if c.MailboxSize < 0 {
		return fmt.Errorf("negative mailbox_size")
	}
	if c.MaxReportBytes < 0 {
		return fmt.Errorf("negative max_report_bytes")
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}
