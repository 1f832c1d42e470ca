package report

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/diag"
	"cudadoctor/internal/gpu"
	"cudadoctor/internal/sysinfo"
)

// SystemView is everything the system information report shows.
type SystemView struct {
	Info        sysinfo.Info
	Hostname    string
	GPUs        []capability.Device
	Python      capability.Fact
	Pip         capability.Fact
	VirtualEnv  string
	Environment []diag.EnvVar
}

// SystemInfo renders the detailed system information report.
func (r *Reporter) SystemInfo(v SystemView) {
	r.title("System information")

	r.section("System")
	r.field("OS", v.Info.OS)
	r.field("Architecture", v.Info.Arch)
	r.field("Hostname", v.Hostname)
	r.field("CPU", lo.Ternary(v.Info.CPU == "", "unknown", v.Info.CPU))
	r.field("Total RAM", fmt.Sprintf("%.1f GB", v.Info.TotalMemoryGB))

	r.printf("\n")
	r.section("GPU")
	if len(v.GPUs) == 0 {
		r.printf("  %s\n", r.style.missing.Render("No NVIDIA GPU detected"))
	}
	for i, d := range v.GPUs {
		r.field(fmt.Sprintf("GPU %d", i), DescribeDevice(d))
	}

	r.printf("\n")
	r.section("Python environment")
	r.field("Python", v.Python.String())
	r.field("pip", v.Pip.String())
	r.field("Virtual env", lo.Ternary(v.VirtualEnv == "", "none", v.VirtualEnv))

	r.printf("\n")
	r.section("Environment variables")
	for _, e := range v.Environment {
		r.field(e.Name, lo.Ternary(e.Set, e.Value, "not set"))
	}
}

// Checks renders configuration validation results grouped by check group.
func (r *Reporter) Checks(checks []diag.Check) {
	r.title("Configuration validation")

	titles := map[string]string{
		diag.GroupEnvironment: "Environment variables",
		diag.GroupLibraries:   "Library linking",
		diag.GroupDevices:     "Device permissions",
		diag.GroupContainer:   "Container runtime",
	}

	var group string
	for _, c := range checks {
		if c.Group != group {
			if group != "" {
				r.printf("\n")
			}
			group = c.Group
			title, ok := titles[group]
			if !ok {
				title = group
			}
			r.section(title)
		}
		r.printf("  %s %s: %s\n", r.statusMark(c.Status), c.Name, c.Detail)
	}

	counts := lo.CountValuesBy(checks, func(c diag.Check) diag.Status { return c.Status })
	r.printf("\n%s\n", r.style.label.Render(fmt.Sprintf("%d ok, %d warnings, %d missing",
		counts[diag.StatusOK], counts[diag.StatusWarning], counts[diag.StatusMissing])))
}

func (r *Reporter) statusMark(s diag.Status) string {
	switch s {
	case diag.StatusOK:
		return r.style.ok.Render(markOK)
	case diag.StatusWarning:
		return r.style.warn.Render(markWarn)
	default:
		return r.style.missing.Render(markMissing)
	}
}

// MultiGPU renders live per-device status. When no status source worked the
// plain device list is shown instead.
func (r *Reporter) MultiGPU(status gpu.StatusReport, topology []string, devices []capability.Device) {
	r.title("Multi-GPU status")

	if len(status.Devices) == 0 {
		if len(devices) == 0 {
			r.printf("  %s\n", r.style.missing.Render("No NVIDIA GPU detected"))
			return
		}
		r.printf("  %s\n", r.style.value.Render(fmt.Sprintf("Found %d NVIDIA GPU(s):", len(devices))))
		for i, d := range devices {
			r.field(fmt.Sprintf("GPU %d", i), DescribeDevice(d))
		}
		r.printf("  %s\n", r.style.hint.Render("Install nvidia-smi or build with -tags cuda for live metrics"))
		return
	}

	for _, d := range status.Devices {
		r.section(fmt.Sprintf("GPU %d: %s", d.Index, d.Name))
		if d.UUID != "" {
			r.field("UUID", d.UUID)
		}
		r.field("Memory", fmt.Sprintf("%s MB used / %s MB total (%s MB free)",
			number(d.MemoryUsedMB, 0), number(d.MemoryTotalMB, 0), number(d.MemoryFreeMB, 0)))
		r.field("Utilization", fmt.Sprintf("%s%% GPU, %s%% memory",
			number(d.GPUUtilization, 0), number(d.MemoryUtilization, 0)))
		r.field("Temperature", number(d.TemperatureC, 0)+" °C")
		r.field("Power", fmt.Sprintf("%s W / %s W", number(d.PowerDrawW, 1), number(d.PowerLimitW, 1)))
		r.printf("\n")
	}
	r.printf("%s\n", r.style.label.Render("source: "+status.Source))

	if len(topology) > 0 {
		r.printf("\n")
		r.section("Topology")
		r.printf("%s\n", strings.Join(lo.Map(topology, func(line string, _ int) string { return "  " + line }), "\n"))
	}
}

func number(v *float64, decimals int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}
