package diag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/samber/lo"

	"cudadoctor/internal/gpu"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/probe"
)

// LinkedLibraries are the shared objects a CUDA workload loads at runtime.
var LinkedLibraries = []string{"libcuda.so.1", "libcudart.so", "libcublas.so", "libcudnn.so"}

// DeviceNodes are the character devices the driver creates on Linux.
var DeviceNodes = []string{"/dev/nvidia0", "/dev/nvidiactl"}

// ToolkitProber reports the NVIDIA Container Toolkit state.
type ToolkitProber interface {
	DetectContainerToolkit(ctx context.Context) gpu.ContainerToolkitReport
}

// Validator checks how the CUDA installation is wired into the environment.
type Validator struct {
	exec    probe.Executor
	toolkit ToolkitProber
	logger  *logging.Logger

	goos   string
	getenv func(string) string
	stat   func(string) (fs.FileInfo, error)
}

// NewValidator creates a validator for the running platform.
func NewValidator(exec probe.Executor, toolkit ToolkitProber, logger *logging.Logger) *Validator {
	return &Validator{
		exec:    exec,
		toolkit: toolkit,
		logger:  logger,
		goos:    runtime.GOOS,
		getenv:  os.Getenv,
		stat:    os.Stat,
	}
}

// Validate runs every check group in order.
func (v *Validator) Validate(ctx context.Context) []Check {
	var checks []Check
	checks = append(checks, v.Environment()...)
	checks = append(checks, v.Libraries(ctx)...)
	checks = append(checks, v.Devices()...)
	if v.toolkit != nil {
		checks = append(checks, v.ContainerToolkit(ctx))
	}

	v.logger.Info("diag.validate.complete", "Configuration validated", map[string]interface{}{
		"checks":  len(checks),
		"warning": len(lo.Filter(checks, func(c Check, _ int) bool { return c.Status == StatusWarning })),
		"missing": len(lo.Filter(checks, func(c Check, _ int) bool { return c.Status == StatusMissing })),
	})
	return checks
}

// Environment checks the CUDA related environment variables.
func (v *Validator) Environment() []Check {
	checks := []Check{
		v.variable("CUDA_PATH", "CUDA installation path"),
		v.variable("CUDA_HOME", "CUDA home directory"),
		v.searchPath("PATH", "a CUDA bin directory", func(dir string) bool {
			return filepath.Base(dir) == "bin"
		}),
	}
	if v.goos == "linux" {
		checks = append(checks, v.searchPath("LD_LIBRARY_PATH", "a CUDA lib directory", func(dir string) bool {
			return strings.HasPrefix(filepath.Base(dir), "lib")
		}))
	}
	return checks
}

func (v *Validator) variable(name, purpose string) Check {
	value := v.getenv(name)
	if value == "" {
		return Check{Group: GroupEnvironment, Name: name, Status: StatusWarning, Detail: "not set (" + purpose + ")"}
	}
	return Check{Group: GroupEnvironment, Name: name, Status: StatusOK, Detail: fmt.Sprintf("set (%d chars)", len(value))}
}

func (v *Validator) searchPath(name, want string, leaf func(string) bool) Check {
	value := v.getenv(name)
	if value == "" {
		return Check{Group: GroupEnvironment, Name: name, Status: StatusWarning, Detail: "not set (should include " + want + ")"}
	}

	dir, found := lo.Find(filepath.SplitList(value), func(dir string) bool {
		return strings.Contains(strings.ToLower(dir), "cuda") && leaf(dir)
	})
	if !found {
		return Check{Group: GroupEnvironment, Name: name, Status: StatusWarning, Detail: "does not include " + want}
	}
	return Check{Group: GroupEnvironment, Name: name, Status: StatusOK, Detail: "includes " + dir}
}

// Libraries checks the dynamic linker cache for the CUDA runtime libraries.
// The cache is listed once and searched for every library.
func (v *Validator) Libraries(ctx context.Context) []Check {
	if v.goos != "linux" {
		return []Check{{Group: GroupLibraries, Name: "ldconfig", Status: StatusWarning, Detail: "library checks are only available on Linux"}}
	}

	res := v.exec.Execute(ctx, probe.Strategy{
		Name:    "linker cache",
		Kind:    probe.KindCommand,
		Command: []string{"ldconfig", "-p"},
	})

	return lo.Map(LinkedLibraries, func(lib string, _ int) Check {
		switch {
		case !res.OK():
			return Check{Group: GroupLibraries, Name: lib, Status: StatusWarning, Detail: "cannot check: " + res.Err.Error()}
		case strings.Contains(res.Output, lib):
			return Check{Group: GroupLibraries, Name: lib, Status: StatusOK, Detail: "found"}
		default:
			return Check{Group: GroupLibraries, Name: lib, Status: StatusMissing, Detail: "not in linker cache"}
		}
	})
}

// Devices checks that the driver's device nodes exist and can be inspected.
func (v *Validator) Devices() []Check {
	if v.goos != "linux" {
		return []Check{{Group: GroupDevices, Name: "device nodes", Status: StatusWarning, Detail: "device checks are only available on Linux"}}
	}

	return lo.Map(DeviceNodes, func(node string, _ int) Check {
		info, err := v.stat(node)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Check{Group: GroupDevices, Name: node, Status: StatusMissing, Detail: "not found"}
		case err != nil:
			return Check{Group: GroupDevices, Name: node, Status: StatusWarning, Detail: "not accessible, check permissions"}
		case info.Mode()&fs.ModeCharDevice == 0:
			return Check{Group: GroupDevices, Name: node, Status: StatusWarning, Detail: "not a character device"}
		default:
			return Check{Group: GroupDevices, Name: node, Status: StatusOK, Detail: info.Mode().String()}
		}
	})
}

// ContainerToolkit checks whether Docker can hand GPUs to containers.
func (v *Validator) ContainerToolkit(ctx context.Context) Check {
	report := v.toolkit.DetectContainerToolkit(ctx)
	check := Check{Group: GroupContainer, Name: "nvidia-container-toolkit"}

	switch {
	case report.DockerSupport:
		check.Status = StatusOK
		check.Detail = "nvidia runtime registered"
		if report.ToolkitVersion != "" {
			check.Detail += ", version " + report.ToolkitVersion
		}
	case report.ToolkitVersion != "":
		check.Status = StatusWarning
		check.Detail = "toolkit " + report.ToolkitVersion + " installed: " + report.ErrorMessage
	default:
		check.Status = StatusMissing
		check.Detail = report.ErrorMessage
	}
	return check
}
