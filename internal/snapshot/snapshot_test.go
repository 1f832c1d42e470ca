package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/sysinfo"
)

func ptr[T any](v T) *T { return &v }

var fixedTime = time.Date(2024, 3, 14, 9, 26, 53, 589000000, time.UTC)

func fullSnapshot() Snapshot {
	return Snapshot{
		System: System{
			OS:            "Ubuntu 22.04.3 LTS",
			Arch:          "amd64",
			CPU:           "AMD EPYC 7763 64-Core Processor",
			TotalMemoryGB: 503.5,
			Python:        capability.Detected("3.11.4"),
		},
		CUDA: CUDA{
			Driver:  capability.Detected("535.104.05"),
			Toolkit: capability.Detected("12.2"),
			CuDNN:   capability.Detected("8.9.2"),
			GPUs: []capability.Device{
				{Name: "NVIDIA A100-SXM4-40GB", MemoryGB: ptr(40.0), ComputeCapability: ptr("8.0")},
				{Name: "NVIDIA Corporation GA102 [GeForce RTX 3090]"},
			},
		},
		Frameworks: Frameworks{
			TensorFlow: capability.Detected("2.15.0"),
			PyTorch:    capability.Detected("2.1.0+cu121"),
		},
		Timestamp: fixedTime,
		Hostname:  "gpu-node-01",
	}
}

func emptySnapshot() Snapshot {
	return Snapshot{
		System:    System{OS: "Linux", Arch: "arm64"},
		CUDA:      CUDA{GPUs: []capability.Device{}},
		Timestamp: fixedTime,
		Hostname:  "laptop",
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for name, snap := range map[string]Snapshot{"full": fullSnapshot(), "nothing detected": emptySnapshot()} {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(snap)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, snap, got)
		})
	}
}

func TestEncodeDecode_ZeroSnapshot(t *testing.T) {
	data, err := Encode(Snapshot{})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	want := Snapshot{CUDA: CUDA{GPUs: []capability.Device{}}}
	assert.Equal(t, want, got, "a nil GPU list comes back empty, everything else unchanged")
}

func TestDecode_PythonBanner(t *testing.T) {
	doc := strings.Replace(validDoc, `"total_memory_gb": 64.0`, `"total_memory_gb": 64.0, "python_version": "Python 3.11.4"`, 1)
	snap, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, capability.Detected("3.11.4"), snap.System.Python)

	doc = strings.Replace(validDoc, `"total_memory_gb": 64.0`, `"total_memory_gb": 64.0, "python_version": "3.11.4"`, 1)
	snap, err = Decode([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, capability.Detected("3.11.4"), snap.System.Python)
}

func TestEncode_OmitsUndetectedFields(t *testing.T) {
	data, err := Encode(emptySnapshot())
	require.NoError(t, err)

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(stripScalars(t, data), &raw))

	assert.NotContains(t, raw["system_info"], "python_version")
	assert.NotContains(t, raw["cuda_info"], "driver_version")
	assert.NotContains(t, raw["cuda_info"], "cuda_version")
	assert.NotContains(t, raw["cuda_info"], "cudnn_version")
	assert.Equal(t, []interface{}{}, raw["cuda_info"]["gpus"])
	assert.Empty(t, raw["frameworks"])
	assert.NotContains(t, string(data), "null")
}

// stripScalars drops the top-level timestamp and hostname so the rest of the
// document decodes as a map of objects.
func stripScalars(t *testing.T, data []byte) []byte {
	t.Helper()
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	delete(top, "timestamp")
	delete(top, "hostname")
	out, err := json.Marshal(top)
	require.NoError(t, err)
	return out
}

func TestEncode_Layout(t *testing.T) {
	data, err := Encode(fullSnapshot())
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "{\n  \"system_info\": {"), "document is indented JSON: %s", text)
	assert.Contains(t, text, `"timestamp": "2024-03-14T09:26:53.589Z"`)
	assert.Contains(t, text, `"compute_capability": "8.0"`)
	assert.Less(t, strings.Index(text, "system_info"), strings.Index(text, "cuda_info"))
	assert.Less(t, strings.Index(text, "cuda_info"), strings.Index(text, "frameworks"))
}

const validDoc = `{
  "system_info": {"os": "Ubuntu", "arch": "x86_64", "cpu": "Xeon", "total_memory_gb": 64.0},
  "cuda_info": {"driver_version": "535.104.05", "gpus": [{"name": "Tesla T4"}]},
  "frameworks": {},
  "timestamp": "2024-01-01T12:00:00+00:00",
  "hostname": "remote"
}`

func TestDecode_Valid(t *testing.T) {
	snap, err := Decode([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, capability.Detected("535.104.05"), snap.CUDA.Driver)
	assert.Equal(t, capability.NotDetected, snap.CUDA.Toolkit)
	assert.Equal(t, capability.NotDetected, snap.Frameworks.PyTorch)
	require.Len(t, snap.CUDA.GPUs, 1)
	assert.Nil(t, snap.CUDA.GPUs[0].MemoryGB)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), snap.Timestamp)
}

func TestDecode_NullIsAbsent(t *testing.T) {
	doc := strings.Replace(validDoc, `"frameworks": {}`, `"frameworks": {"pytorch": null, "tensorflow": "2.15.0"}`, 1)
	snap, err := Decode([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, capability.NotDetected, snap.Frameworks.PyTorch)
	assert.Equal(t, capability.Detected("2.15.0"), snap.Frameworks.TensorFlow)
}

func TestDecode_MissingGPUsIsEmpty(t *testing.T) {
	doc := strings.Replace(validDoc, `, "gpus": [{"name": "Tesla T4"}]`, "", 1)
	snap, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.NotNil(t, snap.CUDA.GPUs)
	assert.Empty(t, snap.CUDA.GPUs)
}

func TestDecode_MissingRequiredField(t *testing.T) {
	tests := []struct {
		field string
		doc   string
	}{
		{"system_info.cpu", strings.Replace(validDoc, `"cpu": "Xeon", `, "", 1)},
		{"system_info.total_memory_gb", strings.Replace(validDoc, `, "total_memory_gb": 64.0`, "", 1)},
		{"hostname", strings.Replace(validDoc, `,
  "hostname": "remote"`, "", 1)},
		{"frameworks", strings.Replace(validDoc, `"frameworks": {},`, "", 1)},
		{"cuda_info.gpus[0].name", strings.Replace(validDoc, `{"name": "Tesla T4"}`, `{"memory_gb": 15.0}`, 1)},
		{"timestamp", strings.Replace(validDoc, `"timestamp": "2024-01-01T12:00:00+00:00",`, "", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected *DecodeError, got %T", err)
			assert.Equal(t, tt.field, decodeErr.Field)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":         "{system_info:",
		"wrong type":       strings.Replace(validDoc, `"total_memory_gb": 64.0`, `"total_memory_gb": "64"`, 1),
		"bad timestamp":    strings.Replace(validDoc, "2024-01-01T12:00:00+00:00", "yesterday", 1),
		"array at top":     "[]",
		"gpus wrong shape": strings.Replace(validDoc, `[{"name": "Tesla T4"}]`, `"Tesla T4"`, 1),
		"trailing garbage": validDoc + "\nthis is not json {{{",
		"second document":  validDoc + "\n{}",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "snapshot.json")
	snap := fullSnapshot()

	require.NoError(t, WriteFile(path, snap, logging.Nop()))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestWriteFile_Failure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := WriteFile(filepath.Join(blocker, "snapshot.json"), emptySnapshot(), logging.Nop())
	require.Error(t, err)

	var writeErr *WriteError
	assert.True(t, errors.As(err, &writeErr))
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeDetector struct {
	calls []string
	gpus  []capability.Device
}

func (f *fakeDetector) record(name string, fact capability.Fact) capability.Fact {
	f.calls = append(f.calls, name)
	return fact
}

func (f *fakeDetector) DriverVersion(context.Context) capability.Fact {
	return f.record("driver", capability.Detected("535.104.05"))
}
func (f *fakeDetector) ToolkitVersion(context.Context) capability.Fact {
	return f.record("toolkit", capability.Detected("12.2"))
}
func (f *fakeDetector) CuDNNVersion(context.Context) capability.Fact {
	return f.record("cudnn", capability.NotDetected)
}
func (f *fakeDetector) TensorFlowVersion(context.Context) capability.Fact {
	return f.record("tensorflow", capability.NotDetected)
}
func (f *fakeDetector) PyTorchVersion(context.Context) capability.Fact {
	return f.record("pytorch", capability.Detected("2.1.0"))
}
func (f *fakeDetector) PythonVersion(context.Context) capability.Fact {
	return f.record("python", capability.Detected("3.11.4"))
}
func (f *fakeDetector) GPUs(context.Context) []capability.Device {
	f.calls = append(f.calls, "gpus")
	return f.gpus
}

type staticSystem sysinfo.Info

func (s staticSystem) Read(context.Context) sysinfo.Info { return sysinfo.Info(s) }

func TestBuilder_Build(t *testing.T) {
	det := &fakeDetector{}
	local := time.FixedZone("CET", 3600)
	b := NewBuilder(det, staticSystem{OS: "Ubuntu", Arch: "amd64", CPU: "Xeon", TotalMemoryGB: 31.2}, logging.Nop(),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, local) }),
		WithHostname(func() string { return "gpu-01" }),
	)

	snap := b.Build(context.Background())

	assert.Equal(t, []string{"python", "driver", "toolkit", "cudnn", "gpus", "tensorflow", "pytorch"}, det.calls)
	assert.Equal(t, "Ubuntu", snap.System.OS)
	assert.Equal(t, capability.Detected("3.11.4"), snap.System.Python)
	assert.Equal(t, capability.NotDetected, snap.CUDA.CuDNN)
	assert.Equal(t, "gpu-01", snap.Hostname)
	assert.Equal(t, time.UTC, snap.Timestamp.Location())
	assert.Equal(t, 12, snap.Timestamp.Hour())
	assert.NotNil(t, snap.CUDA.GPUs, "no GPUs is an empty list")
	assert.Equal(t, 4, snap.DetectedCount())
	assert.False(t, snap.NothingDetected())
}

func TestSnapshot_NothingDetected(t *testing.T) {
	assert.True(t, emptySnapshot().NothingDetected())

	withGPU := emptySnapshot()
	withGPU.CUDA.GPUs = []capability.Device{{Name: "Tesla T4"}}
	assert.False(t, withGPU.NothingDetected())
}
