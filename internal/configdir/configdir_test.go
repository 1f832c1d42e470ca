package configdir

import (
	"path/filepath"
	"testing"
)

func TestConfigDir_Default(t *testing.T) {
	t.Setenv(EnvConfigDir, "")

	if got := ConfigDir(); got != defaultConfigDir {
		t.Errorf("ConfigDir() = %s, want %s", got, defaultConfigDir)
	}
}

func TestConfigDir_Override(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	if got := ConfigDir(); got != dir {
		t.Errorf("ConfigDir() = %s, want %s", got, dir)
	}
}

func TestConfigDir_RelativeOverrideIsAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "conf")

	if got := ConfigDir(); !filepath.IsAbs(got) {
		t.Errorf("ConfigDir() = %s, want an absolute path", got)
	}
}
