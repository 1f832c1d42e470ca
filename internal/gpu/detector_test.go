//go:build cuda

package gpu

import (
	"context"
	"strings"
	"testing"

	"cudadoctor/internal/logging"
	"cudadoctor/internal/parse"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	mockDriverVersion = "535.104.05"
)

func twoDeviceMock() *MockNVML {
	mockNVML := NewMockNVML()
	mockNVML.DriverVersion = mockDriverVersion
	mockNVML.DeviceCount = 2
	mockNVML.Devices = []MockDevice{
		{
			Name:              "NVIDIA GeForce RTX 4090",
			NameReturn:        nvml.SUCCESS,
			UUID:              "GPU-12345678-1234-1234-1234-123456789012",
			UUIDReturn:        nvml.SUCCESS,
			MemoryTotal:       24 * 1024 * 1024 * 1024,
			MemoryUsed:        2 * 1024 * 1024 * 1024,
			MemoryFree:        22 * 1024 * 1024 * 1024,
			MemoryInfoReturn:  nvml.SUCCESS,
			GPUUtil:           37,
			MemUtil:           12,
			UtilizationReturn: nvml.SUCCESS,
			PowerUsage:        120500,
			PowerUsageReturn:  nvml.SUCCESS,
			PowerLimit:        450000,
			PowerLimitReturn:  nvml.SUCCESS,
			Temperature:       54,
			TemperatureReturn: nvml.SUCCESS,
			CCMajor:           8,
			CCMinor:           9,
			CCReturn:          nvml.SUCCESS,
		},
		{
			Name:              "NVIDIA GeForce RTX 3080",
			NameReturn:        nvml.SUCCESS,
			UUIDReturn:        nvml.ERROR_NOT_SUPPORTED,
			MemoryTotal:       10 * 1024 * 1024 * 1024,
			MemoryInfoReturn:  nvml.SUCCESS,
			UtilizationReturn: nvml.ERROR_NOT_SUPPORTED,
			PowerUsageReturn:  nvml.ERROR_NOT_SUPPORTED,
			PowerLimitReturn:  nvml.ERROR_NOT_SUPPORTED,
			TemperatureReturn: nvml.ERROR_NOT_SUPPORTED,
			CCReturn:          nvml.ERROR_NOT_SUPPORTED,
		},
	}
	return mockNVML
}

func TestDetector_DriverVersion_Success(t *testing.T) {
	mockNVML := twoDeviceMock()
	detector := NewDetectorWithNVML(mockNVML, logging.Nop())

	version, err := detector.DriverVersion(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if version != mockDriverVersion {
		t.Errorf("Expected driver version %s, got: %s", mockDriverVersion, version)
	}
	if mockNVML.InitCalls != 1 || mockNVML.ShutdownCalls != 1 {
		t.Errorf("Expected one NVML session, got init=%d shutdown=%d", mockNVML.InitCalls, mockNVML.ShutdownCalls)
	}
}

func TestDetector_InitFailed(t *testing.T) {
	mockNVML := NewMockNVML()
	mockNVML.InitReturn = nvml.ERROR_LIBRARY_NOT_FOUND
	detector := NewDetectorWithNVML(mockNVML, logging.Nop())

	if _, err := detector.DriverVersion(context.Background()); err == nil {
		t.Error("Expected error when NVML init fails")
	}
	if _, err := detector.DeviceTable(context.Background()); err == nil {
		t.Error("Expected error when NVML init fails")
	}
	if mockNVML.ShutdownCalls != 0 {
		t.Error("Shutdown must not be called after a failed init")
	}
}

func TestDetector_DeviceTable_FeedsParser(t *testing.T) {
	detector := NewDetectorWithNVML(twoDeviceMock(), logging.Nop())

	table, err := detector.DeviceTable(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	devices, ok := parse.GPUTable(true)(table)
	if !ok {
		t.Fatalf("Rendered table did not parse: %q", table)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}
	if devices[0].Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("Unexpected name: %s", devices[0].Name)
	}
	if devices[0].MemoryGB == nil || *devices[0].MemoryGB != 24 {
		t.Errorf("Expected 24 GB, got %v", devices[0].MemoryGB)
	}
	if devices[0].ComputeCapability == nil || *devices[0].ComputeCapability != "8.9" {
		t.Errorf("Expected compute capability 8.9, got %v", devices[0].ComputeCapability)
	}
	if devices[1].ComputeCapability != nil {
		t.Errorf("Expected no compute capability for device 1, got %v", *devices[1].ComputeCapability)
	}
}

func TestDetector_DeviceTable_NoDevices(t *testing.T) {
	mockNVML := NewMockNVML()
	mockNVML.DeviceCount = 0
	detector := NewDetectorWithNVML(mockNVML, logging.Nop())

	if _, err := detector.DeviceTable(context.Background()); err == nil {
		t.Error("Expected error for zero devices so the chain falls through")
	}
}

func TestDetector_DeviceCountFailed(t *testing.T) {
	mockNVML := NewMockNVML()
	mockNVML.DeviceCountReturn = nvml.ERROR_UNKNOWN
	detector := NewDetectorWithNVML(mockNVML, logging.Nop())

	if _, err := detector.StatusTable(context.Background()); err == nil {
		t.Error("Expected error when device count fails")
	}
}

func TestDetector_StatusTable_FeedsParser(t *testing.T) {
	detector := NewDetectorWithNVML(twoDeviceMock(), logging.Nop())

	table, err := detector.StatusTable(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	devices, ok := ParseStatus(table)
	if !ok {
		t.Fatalf("Rendered status did not parse: %q", table)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}

	first := devices[0]
	if first.UUID != "GPU-12345678-1234-1234-1234-123456789012" {
		t.Errorf("Unexpected uuid: %s", first.UUID)
	}
	if first.MemoryTotalMB == nil || *first.MemoryTotalMB != 24576 {
		t.Errorf("Expected 24576 MB total, got %v", first.MemoryTotalMB)
	}
	if first.PowerDrawW == nil || *first.PowerDrawW != 120.5 {
		t.Errorf("Expected 120.5 W, got %v", first.PowerDrawW)
	}

	second := devices[1]
	if second.UUID != "" || second.TemperatureC != nil || second.GPUUtilization != nil {
		t.Errorf("Expected unsupported metrics to be empty, got %+v", second)
	}
	if !strings.Contains(table, "[N/A]") {
		t.Error("Expected unsupported metrics to be rendered as [N/A]")
	}
}
