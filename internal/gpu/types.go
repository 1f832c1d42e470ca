package gpu

import "errors"

// ErrNVMLUnavailable is returned by NVML queries in builds without the cuda tag.
var ErrNVMLUnavailable = errors.New("NVML disabled: rebuild with -tags cuda")

// DeviceStatus is the live state of one GPU.
// Metrics the device does not report are nil.
type DeviceStatus struct {
	Index             int      `json:"index"`
	Name              string   `json:"name"`
	UUID              string   `json:"uuid,omitempty"`
	MemoryTotalMB     *float64 `json:"memory_total_mb,omitempty"`
	MemoryUsedMB      *float64 `json:"memory_used_mb,omitempty"`
	MemoryFreeMB      *float64 `json:"memory_free_mb,omitempty"`
	GPUUtilization    *float64 `json:"gpu_utilization,omitempty"`
	MemoryUtilization *float64 `json:"memory_utilization,omitempty"`
	TemperatureC      *float64 `json:"temperature_c,omitempty"`
	PowerDrawW        *float64 `json:"power_draw_w,omitempty"`
	PowerLimitW       *float64 `json:"power_limit_w,omitempty"`
}

// StatusReport lists every GPU with its current metrics.
type StatusReport struct {
	Source  string         `json:"source"`
	Devices []DeviceStatus `json:"devices"`
}

// ContainerToolkitReport represents NVIDIA Container Toolkit detection
type ContainerToolkitReport struct {
	DockerSupport  bool   `json:"docker_support"`
	ToolkitVersion string `json:"toolkit_version,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}
