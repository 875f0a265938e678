package config

const (
	DefaultMaxRetries     = 2
	DefaultBackoffFactor  = 0.5
	DefaultTimeout        = 15000 // milliseconds
	DefaultDefinitionsDir = "."
	DefaultEnvFile        = ".env"
	DefaultReporter       = "console"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     IntPtr(DefaultMaxRetries),
		BackoffFactor:  Float64Ptr(DefaultBackoffFactor),
		Timeout:        DefaultTimeout,
		ValidateSSL:    BoolPtr(true),
		DefinitionsDir: DefaultDefinitionsDir,
		EnvFile:        DefaultEnvFile,
		Reporters:      []string{DefaultReporter},
		Bail:           BoolPtr(false),
		NoColor:        BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == "" &&
		len(c.Headers) == 0 &&
		c.GetMaxRetries() == defaults.GetMaxRetries() &&
		c.GetBackoffFactor() == defaults.GetBackoffFactor() &&
		c.GetTimeout() == defaults.GetTimeout() &&
		c.RateLimit == 0 &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		c.DefinitionsDir == defaults.DefinitionsDir &&
		c.EnvFile == defaults.EnvFile &&
		len(c.Reporters) == 1 && c.Reporters[0] == DefaultReporter &&
		c.HistoryDB == "" &&
		c.GetBail() == defaults.GetBail() &&
		c.GetNoColor() == defaults.GetNoColor()
}
