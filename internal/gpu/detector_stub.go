//go:build !cuda

package gpu

import (
	"context"

	"cudadoctor/internal/logging"
)

// Detector is the NVML-less detector of builds without the cuda tag. Its
// NVML queries always fail, so strategy chains fall through to nvidia-smi.
type Detector struct {
	logger *logging.Logger
}

// NewDetector creates a GPU detector that skips NVML when CUDA support is disabled.
func NewDetector(logger *logging.Logger) *Detector {
	return &Detector{logger: logger}
}

// NewDetectorWithNVML is provided for API compatibility; NVML is ignored when CUDA is disabled.
func NewDetectorWithNVML(_ NVMLInterface, logger *logging.Logger) *Detector {
	return NewDetector(logger)
}

// NVMLEnabled reports whether this build can talk to NVML.
func (d *Detector) NVMLEnabled() bool {
	return false
}

// DriverVersion always fails without NVML.
func (d *Detector) DriverVersion(_ context.Context) (string, error) {
	return "", ErrNVMLUnavailable
}

// DeviceTable always fails without NVML.
func (d *Detector) DeviceTable(_ context.Context) (string, error) {
	return "", ErrNVMLUnavailable
}

// StatusTable always fails without NVML.
func (d *Detector) StatusTable(_ context.Context) (string, error) {
	return "", ErrNVMLUnavailable
}
