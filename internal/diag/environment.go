package diag

import "github.com/samber/lo"

// ImportantVariables are shown by the system information report.
var ImportantVariables = []string{
	"CUDA_PATH", "CUDA_HOME", "PATH", "LD_LIBRARY_PATH",
	"PYTHONPATH", "VIRTUAL_ENV", "CONDA_DEFAULT_ENV",
}

const (
	maxDisplayValue = 60
	ellipsis        = "..."
)

// EnvVar is one environment variable prepared for display.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Set   bool   `json:"set"`
}

// Environment reads ImportantVariables through lookup, redacting secrets
// and shortening long values.
func (r *Redactor) Environment(lookup func(string) (string, bool)) []EnvVar {
	return lo.Map(ImportantVariables, func(name string, _ int) EnvVar {
		value, ok := lookup(name)
		if !ok {
			return EnvVar{Name: name}
		}
		return EnvVar{Name: name, Value: Truncate(r.RedactEnv(name, value)), Set: true}
	})
}

// Truncate shortens values longer than 60 characters to 57 plus "...".
func Truncate(value string) string {
	runes := []rune(value)
	if len(runes) <= maxDisplayValue {
		return value
	}
	return string(runes[:maxDisplayValue-len(ellipsis)]) + ellipsis
}

// ActiveEnvironment names the Python virtual or conda environment in use,
// or returns "" when none is active.
func ActiveEnvironment(lookup func(string) (string, bool)) string {
	if venv, ok := lookup("VIRTUAL_ENV"); ok && venv != "" {
		return venv
	}
	if conda, ok := lookup("CONDA_DEFAULT_ENV"); ok && conda != "" {
		return "conda:" + conda
	}
	return ""
}
