package diag

// Status is the outcome of one configuration check.
type Status string

const (
	// StatusOK means the check passed.
	StatusOK Status = "ok"
	// StatusWarning means the item is present but possibly misconfigured, or could not be checked.
	StatusWarning Status = "warning"
	// StatusMissing means the item is absent.
	StatusMissing Status = "missing"
)

// Group names used to section the validation report.
const (
	GroupEnvironment = "environment"
	GroupLibraries   = "libraries"
	GroupDevices     = "devices"
	GroupContainer   = "container"
)

// Check is the result of one configuration check.
type Check struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Manifest describes the contents of a diagnostic bundle
type Manifest struct {
	Timestamp string         `json:"timestamp"`
	Host      string         `json:"host"`
	Version   string         `json:"cudadoctor_version"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the diagnostic bundle
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}
