package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cudadoctor/internal/configdir"
	"cudadoctor/internal/fsutil"
)

const (
	systemConfigFile = "config.yaml"
	userConfigDir    = ".cudadoctor"
	userConfigFile   = "config.yaml"
	dotEnvFile       = ".env"
)

// Environment overrides, applied after every file.
const (
	EnvLogLevel     = "CUDA_DOCTOR_LOG_LEVEL"
	EnvLogFormat    = "CUDA_DOCTOR_LOG_FORMAT"
	EnvProbeTimeout = "CUDA_DOCTOR_PROBE_TIMEOUT"
)

// Load loads and merges configuration.
// Priority: defaults < system config < user config < explicit file < environment.
// A .env file in the working directory is read into the environment first.
// explicit may be empty; when set, the file must exist.
func Load(explicit string) (Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
	}

	cfg := DefaultConfig()

	if err := mergeConfigFile(&cfg, SystemConfigPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load system config: %w", err)
	}

	if userPath := UserConfigPath(); userPath != "" {
		if err := mergeConfigFile(&cfg, userPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicit != "" {
		path := fsutil.ExpandHome(explicit)
		if err := mergeConfigFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}

	return cfg, nil
}

// LoadFrom loads configuration from a specific file path over the defaults
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := mergeConfigFile(&cfg, path); err != nil {
		return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}

	return cfg, nil
}

// mergeConfigFile decodes a YAML file over cfg. Keys absent from the file keep
// their current value; lists present in the file replace the current list.
// Unknown keys are rejected.
func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is constructed from trusted sources
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyEnv applies the CUDA_DOCTOR_* overrides.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if level := getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if format := getenv(EnvLogFormat); format != "" {
		cfg.Logging.Format = format
	}
	if raw := getenv(EnvProbeTimeout); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvProbeTimeout, raw, err)
		}
		cfg.Probe.TimeoutSeconds = seconds
	}
	return nil
}

// Timeout returns the per-attempt probe timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// SystemConfigPath returns the path to the system configuration file
func SystemConfigPath() string {
	return filepath.Join(configdir.ConfigDir(), systemConfigFile)
}

// UserConfigPath returns the path to the user configuration file
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir, userConfigFile)
}
