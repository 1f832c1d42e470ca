package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/fsutil"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/parse"
)

var (
	// ErrMissingField marks a required field absent from a document.
	ErrMissingField = errors.New("missing required field")
	// ErrMalformed marks a document that is not valid JSON or has a field of the wrong type.
	ErrMalformed = errors.New("malformed snapshot")
)

// DecodeError reports why a persisted snapshot could not be decoded.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid snapshot: %v", e.Err)
	}
	return fmt.Sprintf("invalid snapshot field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed snapshot export.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write snapshot to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Wire representation. Pointers distinguish absent from zero; optional
// fields are omitted entirely when not detected.
type document struct {
	SystemInfo *systemDoc     `json:"system_info"`
	CUDAInfo   *cudaDoc       `json:"cuda_info"`
	Frameworks *frameworksDoc `json:"frameworks"`
	Timestamp  *string        `json:"timestamp"`
	Hostname   *string        `json:"hostname"`
}

type systemDoc struct {
	OS            *string  `json:"os"`
	Arch          *string  `json:"arch"`
	CPU           *string  `json:"cpu"`
	TotalMemoryGB *float64 `json:"total_memory_gb"`
	PythonVersion *string  `json:"python_version,omitempty"`
}

type cudaDoc struct {
	DriverVersion *string  `json:"driver_version,omitempty"`
	CUDAVersion   *string  `json:"cuda_version,omitempty"`
	CuDNNVersion  *string  `json:"cudnn_version,omitempty"`
	GPUs          []gpuDoc `json:"gpus"`
}

type gpuDoc struct {
	Name              *string  `json:"name"`
	MemoryGB          *float64 `json:"memory_gb,omitempty"`
	ComputeCapability *string  `json:"compute_capability,omitempty"`
}

type frameworksDoc struct {
	TensorFlow *string `json:"tensorflow,omitempty"`
	PyTorch    *string `json:"pytorch,omitempty"`
}

func str(s string) *string {
	return &s
}

// Encode renders a snapshot as indented JSON. Facts that were not detected
// are omitted from the document. A nil GPU list is written as an empty list,
// so it decodes as an empty, non-nil slice.
func Encode(s Snapshot) ([]byte, error) {
	gpus := make([]gpuDoc, 0, len(s.CUDA.GPUs))
	for _, d := range s.CUDA.GPUs {
		gpus = append(gpus, gpuDoc{
			Name:              str(d.Name),
			MemoryGB:          d.MemoryGB,
			ComputeCapability: d.ComputeCapability,
		})
	}

	mem := s.System.TotalMemoryGB
	doc := document{
		SystemInfo: &systemDoc{
			OS:            str(s.System.OS),
			Arch:          str(s.System.Arch),
			CPU:           str(s.System.CPU),
			TotalMemoryGB: &mem,
			PythonVersion: s.System.Python.Ptr(),
		},
		CUDAInfo: &cudaDoc{
			DriverVersion: s.CUDA.Driver.Ptr(),
			CUDAVersion:   s.CUDA.Toolkit.Ptr(),
			CuDNNVersion:  s.CUDA.CuDNN.Ptr(),
			GPUs:          gpus,
		},
		Frameworks: &frameworksDoc{
			TensorFlow: s.Frameworks.TensorFlow.Ptr(),
			PyTorch:    s.Frameworks.PyTorch.Ptr(),
		},
		Timestamp: str(s.Timestamp.UTC().Format(time.RFC3339Nano)),
		Hostname:  str(s.Hostname),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted snapshot. Optional facts that are absent or
// null decode as not detected; a missing required field or a field of the
// wrong type is a *DecodeError. Unknown fields are ignored.
func Decode(data []byte) (Snapshot, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Snapshot{}, &DecodeError{Field: typeErr.Field, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		return Snapshot{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return Snapshot{}, &DecodeError{Err: fmt.Errorf("%w: trailing data after document", ErrMalformed)}
	}

	missing := func(field string) error {
		return &DecodeError{Field: field, Err: ErrMissingField}
	}

	sys := doc.SystemInfo
	switch {
	case sys == nil:
		return Snapshot{}, missing("system_info")
	case sys.OS == nil:
		return Snapshot{}, missing("system_info.os")
	case sys.Arch == nil:
		return Snapshot{}, missing("system_info.arch")
	case sys.CPU == nil:
		return Snapshot{}, missing("system_info.cpu")
	case sys.TotalMemoryGB == nil:
		return Snapshot{}, missing("system_info.total_memory_gb")
	case doc.CUDAInfo == nil:
		return Snapshot{}, missing("cuda_info")
	case doc.Frameworks == nil:
		return Snapshot{}, missing("frameworks")
	case doc.Timestamp == nil:
		return Snapshot{}, missing("timestamp")
	case doc.Hostname == nil:
		return Snapshot{}, missing("hostname")
	}

	ts, err := time.Parse(time.RFC3339Nano, *doc.Timestamp)
	if err != nil {
		return Snapshot{}, &DecodeError{Field: "timestamp", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	gpus := make([]capability.Device, 0, len(doc.CUDAInfo.GPUs))
	for i, g := range doc.CUDAInfo.GPUs {
		if g.Name == nil {
			return Snapshot{}, missing("cuda_info.gpus[" + strconv.Itoa(i) + "].name")
		}
		gpus = append(gpus, capability.Device{
			Name:              *g.Name,
			MemoryGB:          g.MemoryGB,
			ComputeCapability: g.ComputeCapability,
		})
	}

	return Snapshot{
		System: System{
			OS:            *sys.OS,
			Arch:          *sys.Arch,
			CPU:           *sys.CPU,
			TotalMemoryGB: *sys.TotalMemoryGB,
			Python:        pythonFact(sys.PythonVersion),
		},
		CUDA: CUDA{
			Driver:  capability.FromPtr(doc.CUDAInfo.DriverVersion),
			Toolkit: capability.FromPtr(doc.CUDAInfo.CUDAVersion),
			CuDNN:   capability.FromPtr(doc.CUDAInfo.CuDNNVersion),
			GPUs:    gpus,
		},
		Frameworks: Frameworks{
			TensorFlow: capability.FromPtr(doc.Frameworks.TensorFlow),
			PyTorch:    capability.FromPtr(doc.Frameworks.PyTorch),
		},
		Timestamp: ts.UTC(),
		Hostname:  *doc.Hostname,
	}, nil
}

// WriteFile exports a snapshot. The document is written to a temporary
// sibling first and renamed into place, so path never holds a partial file.
func WriteFile(path string, s Snapshot, logger *logging.Logger) error {
	path = fsutil.ExpandHome(path)

	data, err := Encode(s)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := fsutil.EnsureParentDirectory(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := fsutil.AtomicWriteFile(path, data, fsutil.DefaultFilePermissions, logger); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	logger.Info("snapshot.export.complete", "Snapshot exported", map[string]interface{}{
		"path":  path,
		"bytes": len(data),
	})
	return nil
}

// ReadFile imports a snapshot previously written by WriteFile.
func ReadFile(path string) (Snapshot, error) {
	path = fsutil.ExpandHome(path)
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Decode(data)
}

// pythonFact accepts both the bare token ("3.11.4") and the full
// interpreter banner ("Python 3.11.4") written by older exports.
func pythonFact(v *string) capability.Fact {
	if v == nil {
		return capability.NotDetected
	}
	if token, ok := parse.PythonVersion(*v); ok {
		return capability.Detected(token)
	}
	return capability.Detected(*v)
}
