package diag

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cudadoctor/internal/fsutil"
	"cudadoctor/internal/logging"
)

// ManifestName is the bundle entry listing every other entry.
const ManifestName = "diag_manifest.json"

// Packager writes diagnostic bundles: a ZIP of JSON documents plus a
// manifest with their sizes and checksums.
type Packager struct {
	version  string
	logger   *logging.Logger
	clock    func() time.Time
	hostname func() string
}

// NewPackager creates a new diagnostic packager
func NewPackager(version string, hostname func() string, logger *logging.Logger) *Packager {
	return &Packager{
		version:  version,
		logger:   logger,
		clock:    time.Now,
		hostname: hostname,
	}
}

// JSONFile renders v as an indented bundle entry.
func JSONFile(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle entry: %w", err)
	}
	return append(data, '\n'), nil
}

// Write creates the bundle at path. Entries are stored in name order and the
// archive replaces path atomically.
func (p *Packager) Write(path string, files map[string][]byte) error {
	p.logger.Info("diag.package.start", "Creating diagnostic bundle", map[string]interface{}{
		"output": path,
	})

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	manifestJSON, err := JSONFile(p.createManifest(names, files))
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	for _, name := range append(names, ManifestName) {
		content := files[name]
		if name == ManifestName {
			content = manifestJSON
		}
		writer, err := zipWriter.Create(name)
		if err != nil {
			return fmt.Errorf("failed to add %s to bundle: %w", name, err)
		}
		if _, err := writer.Write(content); err != nil {
			return fmt.Errorf("failed to write %s to bundle: %w", name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish bundle: %w", err)
	}

	path = fsutil.ExpandHome(path)
	if err := fsutil.EnsureParentDirectory(path); err != nil {
		return err
	}
	if err := fsutil.AtomicWriteFile(path, buf.Bytes(), fsutil.DefaultFilePermissions, p.logger); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	p.logger.Info("diag.package.complete", "Diagnostic bundle created", map[string]interface{}{
		"output":     path,
		"file_count": len(files) + 1,
	})
	return nil
}

func (p *Packager) createManifest(names []string, files map[string][]byte) Manifest {
	manifest := Manifest{
		Timestamp: p.clock().UTC().Format(time.RFC3339),
		Host:      p.hostname(),
		Version:   p.version,
		Files:     make([]ManifestFile, 0, len(names)),
	}
	for _, name := range names {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      name,
			SizeBytes: int64(len(files[name])),
			SHA256:    CalculateSHA256(files[name]),
		})
	}
	return manifest
}

// CalculateSHA256 computes the SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// DefaultBundleName names a bundle after the time it was taken.
func DefaultBundleName(now time.Time) string {
	return "cudadoctor-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
