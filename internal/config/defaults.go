package config

// DefaultTimeoutSeconds bounds each strategy attempt.
const DefaultTimeoutSeconds = 45

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Probe: ProbeConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
			CacheSize:      128,
			Python:         []string{"python", "python3"},
			Pip:            []string{"pip", "pip3"},
			Conda:          "conda",
		},
		Search: SearchConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
