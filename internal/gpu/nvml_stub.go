//go:build !cuda

package gpu

// NVMLInterface stands in for the NVML binding when the cuda tag is off.
type NVMLInterface interface{}

// DeviceInterface stands in for an NVML device handle when the cuda tag is off.
type DeviceInterface interface{}

// NewRealNVML returns nil; the stub detector never calls into NVML.
func NewRealNVML() NVMLInterface {
	return nil
}
