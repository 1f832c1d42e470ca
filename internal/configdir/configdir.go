package configdir

import (
	"os"
	"path/filepath"
)

// EnvConfigDir overrides the system configuration directory.
const EnvConfigDir = "CUDA_DOCTOR_CONFIG_DIR"

const defaultConfigDir = "/etc/cudadoctor"

// ConfigDir resolves the configuration directory respecting overrides
func ConfigDir() string {
	if env := os.Getenv(EnvConfigDir); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	return defaultConfigDir
}
