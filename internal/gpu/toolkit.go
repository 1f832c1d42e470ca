package gpu

import (
	"context"
	"encoding/json"
	"strings"

	"cudadoctor/internal/logging"
	"cudadoctor/internal/probe"
)

// ToolkitDetector handles NVIDIA Container Toolkit detection
type ToolkitDetector struct {
	exec   probe.Executor
	logger *logging.Logger
}

// NewToolkitDetector creates a new toolkit detector
func NewToolkitDetector(exec probe.Executor, logger *logging.Logger) *ToolkitDetector {
	return &ToolkitDetector{
		exec:   exec,
		logger: logger,
	}
}

// DetectContainerToolkit checks whether Docker has the NVIDIA runtime
// registered and which toolkit version is installed.
func (td *ToolkitDetector) DetectContainerToolkit(ctx context.Context) ContainerToolkitReport {
	td.logger.Debug("gpu.toolkit.detect.start", "Starting Container Toolkit detection", nil)

	report := ContainerToolkitReport{}

	runtimes := td.exec.Execute(ctx, probe.Strategy{
		Name:    "docker runtimes",
		Kind:    probe.KindCommand,
		Command: []string{"docker", "info", "--format", "{{json .Runtimes}}"},
	})

	switch {
	case runtimes.OK():
		report.DockerSupport = hasNvidiaRuntime(runtimes.Output)
	default:
		info := td.exec.Execute(ctx, probe.Strategy{
			Name:    "docker info",
			Kind:    probe.KindCommand,
			Command: []string{"docker", "info"},
		})
		if !info.OK() {
			report.ErrorMessage = "Docker is not available"
			td.logger.Debug("gpu.toolkit.docker.unavailable", "Docker not found", map[string]interface{}{
				"error": info.Err.Error(),
			})
			return report
		}
		report.DockerSupport = strings.Contains(info.Output, "Runtimes: nvidia") ||
			strings.Contains(info.Output, "nvidia-container-runtime")
	}

	if !report.DockerSupport {
		report.ErrorMessage = "NVIDIA runtime not listed in docker info"
	}

	report.ToolkitVersion = td.toolkitVersion(ctx)

	td.logger.Debug("gpu.toolkit.detected", "Container Toolkit probed", map[string]interface{}{
		"docker_support": report.DockerSupport,
		"version":        report.ToolkitVersion,
	})

	return report
}

func hasNvidiaRuntime(raw string) bool {
	runtimes := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &runtimes); err != nil {
		return false
	}
	_, ok := runtimes["nvidia"]
	return ok
}

// toolkitVersion reads "NVIDIA Container Toolkit CLI version 1.14.3" style output.
func (td *ToolkitDetector) toolkitVersion(ctx context.Context) string {
	for _, argv := range [][]string{
		{"nvidia-ctk", "--version"},
		{"nvidia-container-toolkit", "--version"},
	} {
		res := td.exec.Execute(ctx, probe.Strategy{Kind: probe.KindCommand, Command: argv})
		if !res.OK() {
			continue
		}
		if v := versionAfterKeyword(res.Output); v != "" {
			return v
		}
	}
	return ""
}

func versionAfterKeyword(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "version") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) > 0 {
			return parts[len(parts)-1]
		}
	}
	return ""
}
