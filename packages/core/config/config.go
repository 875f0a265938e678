package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the jsonprobe configuration
type Config struct {
	BaseURL        string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	MaxRetries     *int              `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	BackoffFactor  *float64          `json:"backoffFactor,omitempty" yaml:"backoffFactor,omitempty"` // seconds
	Timeout        int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`             // milliseconds
	RateLimit      float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`         // requests per second, 0 = unlimited
	ValidateSSL    *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy          string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	DefinitionsDir string            `json:"definitionsDir,omitempty" yaml:"definitionsDir,omitempty"`
	EnvFile        string            `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Reporters      []string          `json:"reporters,omitempty" yaml:"reporters,omitempty"` // Output reporters
	HistoryDB      string            `json:"historyDB,omitempty" yaml:"historyDB,omitempty"`
	Bail           *bool             `json:"bail,omitempty" yaml:"bail,omitempty"`
	NoColor        *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetMaxRetries returns the retry count, defaulting to DefaultMaxRetries
func (c *Config) GetMaxRetries() int {
	if c.MaxRetries == nil || *c.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// GetBackoffFactor returns the backoff factor in seconds, defaulting to DefaultBackoffFactor
func (c *Config) GetBackoffFactor() float64 {
	if c.BackoffFactor == nil || *c.BackoffFactor < 0 {
		return DefaultBackoffFactor
	}
	return *c.BackoffFactor
}

// GetTimeout returns the per-request timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout * time.Millisecond
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	"jsonprobe.yaml",
	"jsonprobe.yml",
	".jsonprobe.yaml",
	".jsonprobe.yml",
	"jsonprobe.config.json",
	".jsonprobe.config.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isJSON(path) {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.DefinitionsDir != "" {
		result.DefinitionsDir = other.DefinitionsDir
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}

	// Pointer fields - only override if explicitly set in other config
	if other.MaxRetries != nil {
		result.MaxRetries = other.MaxRetries
	}
	if other.BackoffFactor != nil {
		result.BackoffFactor = other.BackoffFactor
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers into a fresh map so c is left untouched
	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

// SaveConfig saves the configuration to a file, as JSON for .json paths and YAML otherwise
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
