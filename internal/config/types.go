package config

// Config represents the complete cudadoctor configuration
type Config struct {
	Probe   ProbeConfig   `yaml:"probe"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
}

// ProbeConfig controls how detection strategies are executed
type ProbeConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"min=1,max=600"`
	CacheSize      int      `yaml:"cache_size" validate:"min=0,max=4096"`
	Python         []string `yaml:"python" validate:"min=1,dive,required"`
	Pip            []string `yaml:"pip" validate:"min=1,dive,required"`
	Conda          string   `yaml:"conda" validate:"required"`
}

// SearchConfig controls filesystem scans
type SearchConfig struct {
	// CUDARoots replaces the platform default roots when non-empty.
	CUDARoots []string `yaml:"cuda_roots" validate:"dive,required"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
