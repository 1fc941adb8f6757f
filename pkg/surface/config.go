package surface

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/apisurface/internal/descriptor"
	"github.com/PentesterFlow/apisurface/internal/discovery"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/scope"
)

// Config holds all scanner configuration.
type Config struct {
	// Timeout for the root page fetch
	RootTimeout time.Duration `json:"root_timeout" yaml:"root_timeout" validate:"gt=0"`

	// Timeout for each probe
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout" validate:"gt=0"`

	// Timeout for each descriptor request
	DescriptorTimeout time.Duration `json:"descriptor_timeout" yaml:"descriptor_timeout" validate:"gt=0"`

	// Maximum in-flight probes, 0 for unbounded
	Concurrency int `json:"concurrency" yaml:"concurrency" validate:"gte=0,lte=1024"`

	// Request pacing, 0 disables it
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `json:"burst" yaml:"burst" validate:"gte=0"`

	// Maximum bytes read from any response body
	MaxBodySize int64 `json:"max_body_size" yaml:"max_body_size" validate:"gt=0"`

	UserAgent string `json:"user_agent" yaml:"user_agent" validate:"required"`

	// Extra headers sent with every request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	DescriptorPaths []string `json:"descriptor_paths" yaml:"descriptor_paths" validate:"dive,startswith=/"`
	FallbackPaths   []string `json:"fallback_paths" yaml:"fallback_paths" validate:"dive,startswith=/"`

	// Regexps for candidate paths that must never be probed
	ExcludePatterns []string `json:"exclude_patterns,omitempty" yaml:"exclude_patterns,omitempty"`

	// Regexps a candidate path must match to be probed, empty allows all
	IncludePatterns []string `json:"include_patterns,omitempty" yaml:"include_patterns,omitempty"`

	SkipTLSVerify bool `json:"skip_tls_verify" yaml:"skip_tls_verify"`

	// Scan history file, empty disables history
	HistoryPath string `json:"history_path,omitempty" yaml:"history_path,omitempty"`

	Log LogConfig `json:"log" yaml:"log"`
}

// LogConfig configures scanner logging.
type LogConfig struct {
	Level      string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Pretty     bool   `json:"pretty" yaml:"pretty"`
	FilePath   string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootTimeout:       8 * time.Second,
		ProbeTimeout:      discovery.DefaultProbeTimeout,
		DescriptorTimeout: descriptor.DefaultTimeout,
		Concurrency:       discovery.DefaultProbeConcurrency,
		RequestsPerSecond: 0,
		Burst:             1,
		MaxBodySize:       5 * 1024 * 1024,
		UserAgent:         "apisurface/1.0",
		DescriptorPaths:   append([]string(nil), descriptor.DefaultPaths...),
		FallbackPaths:     append([]string(nil), discovery.FallbackPaths...),
		SkipTLSVerify:     true,
		Log: LogConfig{
			Level:      "warn",
			Pretty:     true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON). Unset
// fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file. A .json suffix selects JSON,
// anything else YAML.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := scope.ValidatePatterns(c.ExcludePatterns); err != nil {
		return fmt.Errorf("invalid exclude pattern: %w", err)
	}
	if err := scope.ValidatePatterns(c.IncludePatterns); err != nil {
		return fmt.Errorf("invalid include pattern: %w", err)
	}

	return nil
}

// LoggerConfig converts the log settings into a logger configuration.
func (c *Config) LoggerConfig() (logger.Config, error) {
	cfg := logger.DefaultConfig()
	cfg.Pretty = c.Log.Pretty
	cfg.FilePath = c.Log.FilePath
	if c.Log.MaxSizeMB > 0 {
		cfg.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		cfg.MaxBackups = c.Log.MaxBackups
	}

	if c.Log.Level != "" {
		level, err := logger.ParseLevel(c.Log.Level)
		if err != nil {
			return cfg, fmt.Errorf("invalid log level: %w", err)
		}
		cfg.Level = level
	}

	return cfg, nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	if c.Headers != nil {
		clone.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			clone.Headers[k] = v
		}
	}
	clone.DescriptorPaths = append([]string(nil), c.DescriptorPaths...)
	clone.FallbackPaths = append([]string(nil), c.FallbackPaths...)
	clone.ExcludePatterns = append([]string(nil), c.ExcludePatterns...)
	clone.IncludePatterns = append([]string(nil), c.IncludePatterns...)

	return &clone
}
