package gpu

import (
	"context"
	"strconv"
	"strings"

	"cudadoctor/internal/parse"
	"cudadoctor/internal/probe"
)

// statusMetricColumns is the number of numeric columns after the uuid.
const statusMetricColumns = 8

// StatusQuery is the nvidia-smi invocation whose rows ParseStatus reads.
var StatusQuery = []string{
	"nvidia-smi",
	"--query-gpu=index,name,uuid,memory.total,memory.used,memory.free,utilization.gpu,utilization.memory,temperature.gpu,power.draw,power.limit",
	"--format=csv,noheader,nounits",
}

// ParseStatus reads StatusQuery rows. The name may contain commas; it is
// whatever lies between the index and the uuid.
func ParseStatus(raw string) ([]DeviceStatus, bool) {
	var devices []DeviceStatus
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cells := parse.CSVCells(line)
		if len(cells) < statusMetricColumns+3 {
			return nil, false
		}

		index, err := strconv.Atoi(cells[0])
		if err != nil {
			return nil, false
		}

		uuidAt := len(cells) - statusMetricColumns - 1
		status := DeviceStatus{
			Index: index,
			Name:  strings.Join(cells[1:uuidAt], ", "),
		}
		if !parse.Unavailable(cells[uuidAt]) {
			status.UUID = cells[uuidAt]
		}

		metrics := cells[uuidAt+1:]
		targets := []**float64{
			&status.MemoryTotalMB,
			&status.MemoryUsedMB,
			&status.MemoryFreeMB,
			&status.GPUUtilization,
			&status.MemoryUtilization,
			&status.TemperatureC,
			&status.PowerDrawW,
			&status.PowerLimitW,
		}
		for i, target := range targets {
			*target = metric(metrics[i])
		}

		devices = append(devices, status)
	}
	return devices, len(devices) > 0
}

func metric(cell string) *float64 {
	if parse.Unavailable(cell) {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

// StatusSteps lists the ways of reading live GPU status, NVML first.
func (d *Detector) StatusSteps() []probe.Step[StatusReport] {
	from := func(source string) func(string) (StatusReport, bool) {
		return func(raw string) (StatusReport, bool) {
			devices, ok := ParseStatus(raw)
			return StatusReport{Source: source, Devices: devices}, ok
		}
	}

	return []probe.Step[StatusReport]{
		{
			Strategy: probe.Strategy{Name: "nvml status", Kind: probe.KindLibrary, Query: d.StatusTable},
			Parse:    from("nvml"),
		},
		{
			Strategy: probe.Strategy{Name: "nvidia-smi status", Kind: probe.KindCommand, Command: StatusQuery},
			Parse:    from("nvidia-smi"),
		},
	}
}

// Status reports every GPU with its current metrics. The second result is
// false when no strategy could read any device.
func (d *Detector) Status(ctx context.Context, runner *probe.Runner) (StatusReport, bool) {
	report, ok := probe.Run(ctx, runner, "gpu_status", d.StatusSteps())
	if !ok {
		return StatusReport{Devices: []DeviceStatus{}}, false
	}

	d.logger.Info("gpu.status.collected", "GPU status collected", map[string]interface{}{
		"source": report.Source,
		"count":  len(report.Devices),
	})
	return report, true
}

// topologyLines caps the interconnect matrix shown with the status report.
const topologyLines = 10

// ParseTopology keeps the first non-empty lines of `nvidia-smi topo -m`.
func ParseTopology(raw string) ([]string, bool) {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t\r"))
		if len(out) == topologyLines {
			break
		}
	}
	return out, len(out) > 0
}

// Topology reads the NVLink/PCIe interconnect matrix between GPUs.
func Topology(ctx context.Context, runner *probe.Runner) ([]string, bool) {
	return probe.Run(ctx, runner, "gpu_topology", []probe.Step[[]string]{{
		Strategy: probe.Strategy{Name: "nvidia-smi topo", Kind: probe.KindCommand, Command: []string{"nvidia-smi", "topo", "-m"}},
		Parse:    ParseTopology,
	}})
}
