package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cudadoctor/internal/logging"
)

const (
	// DefaultDirPermissions is the permission for directories created on export
	DefaultDirPermissions = 0o750
	// DefaultFilePermissions is the permission for exported snapshots
	DefaultFilePermissions = 0o600
)

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, path[1:])
}

// EnsureParentDirectory creates the directory that will hold path.
func EnsureParentDirectory(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// AtomicWriteFile writes data to a file atomically by first writing to a temp file
// and then renaming it to the target path. A failed write never leaves a
// partial file at path.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, logger *logging.Logger) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		cleanupTemp(tmpPath, logger)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanupTemp(tmpPath, logger)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

func cleanupTemp(tmpPath string, logger *logging.Logger) {
	if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
		logger.Warn("fsutil.cleanup.failed", "Failed to remove temp file", map[string]interface{}{
			"path":  tmpPath,
			"error": removeErr.Error(),
		})
	}
}

// CloseWithError closes a resource and logs any error if a logger is provided.
// This is useful for defer statements where close errors should be handled.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		logger.Warn("fsutil.close.failed", fmt.Sprintf("Failed to close %s", resource), map[string]interface{}{
			"error": err.Error(),
		})
	}
}
