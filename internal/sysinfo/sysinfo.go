// Package sysinfo reads host facts that do not need strategy chains:
// operating system, architecture, CPU model and installed memory.
package sysinfo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/jaypipes/ghw"

	"cudadoctor/internal/logging"
)

const bytesPerGB = 1024 * 1024 * 1024

// Info holds the host facts of a snapshot's system section.
type Info struct {
	OS            string
	Arch          string
	CPU           string
	TotalMemoryGB float64
}

// Reader reads host facts.
type Reader interface {
	Read(ctx context.Context) Info
}

// HostReader reads the local machine.
type HostReader struct {
	logger        *logging.Logger
	goos          string
	goarch        string
	osReleasePath string
	cpuModel      func() (string, error)
	totalMemory   func() (int64, error)
}

// NewHostReader creates a reader backed by ghw and /etc/os-release.
func NewHostReader(logger *logging.Logger) *HostReader {
	return &HostReader{
		logger:        logger,
		goos:          runtime.GOOS,
		goarch:        runtime.GOARCH,
		osReleasePath: "/etc/os-release",
		cpuModel:      ghwCPUModel,
		totalMemory:   ghwTotalMemory,
	}
}

func ghwCPUModel() (string, error) {
	info, err := ghw.CPU(ghw.WithDisableWarnings())
	if err != nil {
		return "", err
	}
	for _, p := range info.Processors {
		if p != nil && strings.TrimSpace(p.Model) != "" {
			return strings.TrimSpace(p.Model), nil
		}
	}
	return "", errors.New("no processor model reported")
}

func ghwTotalMemory() (int64, error) {
	info, err := ghw.Memory(ghw.WithDisableWarnings())
	if err != nil {
		return 0, err
	}
	if info.TotalPhysicalBytes > 0 {
		return info.TotalPhysicalBytes, nil
	}
	return info.TotalUsableBytes, nil
}

// Read collects host facts. Facts that cannot be read are left empty.
func (r *HostReader) Read(_ context.Context) Info {
	info := Info{
		OS:   r.osName(),
		Arch: r.goarch,
	}

	if model, err := r.cpuModel(); err == nil {
		info.CPU = model
	} else {
		r.logger.Warn("sysinfo.cpu.failed", "Failed to read CPU model", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if total, err := r.totalMemory(); err == nil && total > 0 {
		info.TotalMemoryGB = float64(total) / bytesPerGB
	} else if err != nil {
		r.logger.Warn("sysinfo.memory.failed", "Failed to read total memory", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return info
}

func (r *HostReader) osName() string {
	switch r.goos {
	case "linux":
		data, err := os.ReadFile(r.osReleasePath)
		if err == nil {
			if name := ParseOSRelease(data); name != "" {
				return name
			}
		}
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return r.goos
	}
}

// ParseOSRelease returns PRETTY_NAME from an os-release file, or NAME and
// VERSION_ID when PRETTY_NAME is absent.
func ParseOSRelease(data []byte) string {
	values := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[key] = strings.Trim(value, `"'`)
	}

	if pretty := values["PRETTY_NAME"]; pretty != "" {
		return pretty
	}
	return strings.TrimSpace(values["NAME"] + " " + values["VERSION_ID"])
}

// Hostname returns the machine's host name, or "unknown".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}
