//go:build cuda

package gpu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cudadoctor/internal/logging"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const notAvailable = "[N/A]"

// Detector queries NVML. Each query opens and closes its own NVML session
// and renders the answer in the same text shape nvidia-smi prints, so the
// regular parsers consume both.
type Detector struct {
	nvml   NVMLInterface
	logger *logging.Logger
	mu     sync.Mutex
}

// NewDetector creates a new GPU detector
func NewDetector(logger *logging.Logger) *Detector {
	return &Detector{
		nvml:   NewRealNVML(),
		logger: logger,
	}
}

// NewDetectorWithNVML creates a detector with a custom NVML interface (for testing)
func NewDetectorWithNVML(nvmlInterface NVMLInterface, logger *logging.Logger) *Detector {
	return &Detector{
		nvml:   nvmlInterface,
		logger: logger,
	}
}

// NVMLEnabled reports whether this build can talk to NVML.
func (d *Detector) NVMLEnabled() bool {
	return d.nvml != nil
}

func (d *Detector) session(fn func() error) error {
	if d.nvml == nil {
		return ErrNVMLUnavailable
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ret := d.nvml.Init()
	if ret != nvml.SUCCESS {
		msg := nvml.ErrorString(ret)
		d.logger.Debug("gpu.nvml.init.failed", "NVML initialization failed", map[string]interface{}{
			"error": msg,
		})
		return fmt.Errorf("failed to initialize NVML: %s", msg)
	}
	defer d.nvml.Shutdown()

	return fn()
}

// DriverVersion returns the driver version reported by NVML.
func (d *Detector) DriverVersion(_ context.Context) (string, error) {
	var version string
	err := d.session(func() error {
		v, ret := d.nvml.SystemGetDriverVersion()
		if ret != nvml.SUCCESS {
			return fmt.Errorf("failed to get driver version: %s", nvml.ErrorString(ret))
		}
		version = v
		return nil
	})
	return version, err
}

// DeviceTable renders one "name, memory MiB, compute capability" row per GPU.
func (d *Detector) DeviceTable(_ context.Context) (string, error) {
	var rows []string
	err := d.session(func() error {
		return d.eachDevice(func(i int, device DeviceInterface) {
			name, ret := device.GetName()
			if ret != nvml.SUCCESS {
				return
			}

			memory := notAvailable
			if info, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
				memory = strconv.FormatUint(info.Total/(1024*1024), 10)
			}

			capability := notAvailable
			if major, minor, ret := device.GetCudaComputeCapability(); ret == nvml.SUCCESS {
				capability = fmt.Sprintf("%d.%d", major, minor)
			}

			rows = append(rows, strings.Join([]string{name, memory, capability}, ", "))
		})
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.New("NVML reported no devices")
	}
	return strings.Join(rows, "\n"), nil
}

// StatusTable renders one row per GPU in the column order of StatusQuery.
func (d *Detector) StatusTable(_ context.Context) (string, error) {
	var rows []string
	err := d.session(func() error {
		return d.eachDevice(func(i int, device DeviceInterface) {
			cells := []string{strconv.Itoa(i), notAvailable, notAvailable}

			if name, ret := device.GetName(); ret == nvml.SUCCESS {
				cells[1] = name
			}
			if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
				cells[2] = uuid
			}

			if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
				cells = append(cells,
					mib(mem.Total),
					mib(mem.Used),
					mib(mem.Free),
				)
			} else {
				cells = append(cells, notAvailable, notAvailable, notAvailable)
			}

			if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
				cells = append(cells, strconv.FormatUint(uint64(util.Gpu), 10), strconv.FormatUint(uint64(util.Memory), 10))
			} else {
				cells = append(cells, notAvailable, notAvailable)
			}

			if temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
				cells = append(cells, strconv.FormatUint(uint64(temp), 10))
			} else {
				cells = append(cells, notAvailable)
			}

			cells = append(cells, milliwatts(device.GetPowerUsage()), milliwatts(device.GetPowerManagementLimit()))
			rows = append(rows, strings.Join(cells, ", "))
		})
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.New("NVML reported no devices")
	}
	return strings.Join(rows, "\n"), nil
}

func (d *Detector) eachDevice(fn func(index int, device DeviceInterface)) error {
	count, ret := d.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("failed to get device count: %s", nvml.ErrorString(ret))
	}

	d.logger.Debug("gpu.device.count", "Found GPU devices", map[string]interface{}{
		"count": count,
	})

	for i := 0; i < count; i++ {
		device, ret := d.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			d.logger.Warn("gpu.device.handle.failed", "Failed to get device handle", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}
		fn(i, device)
	}
	return nil
}

func mib(bytes uint64) string {
	return strconv.FormatUint(bytes/(1024*1024), 10)
}

func milliwatts(value uint32, ret nvml.Return) string {
	if ret != nvml.SUCCESS {
		return notAvailable
	}
	return strconv.FormatFloat(float64(value)/1000.0, 'f', 2, 64)
}
