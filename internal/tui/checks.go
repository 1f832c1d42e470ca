package tui

import (
	"context"
	"fmt"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/report"
)

// Result is the outcome of one interactive check.
type Result struct {
	Value string
	OK    bool
}

// Check is one step of the interactive sweep.
type Check struct {
	Label string
	Run   func(ctx context.Context) Result
}

// Detector is the detection surface the sweep walks through.
type Detector interface {
	DriverVersion(ctx context.Context) capability.Fact
	ToolkitVersion(ctx context.Context) capability.Fact
	CuDNNVersion(ctx context.Context) capability.Fact
	TensorFlowVersion(ctx context.Context) capability.Fact
	PyTorchVersion(ctx context.Context) capability.Fact
	PythonVersion(ctx context.Context) capability.Fact
	PipVersion(ctx context.Context) capability.Fact
	GPUs(ctx context.Context) []capability.Device
}

func factCheck(name string, detect func(context.Context) capability.Fact) Check {
	return Check{
		Label: report.Labels[name],
		Run: func(ctx context.Context) Result {
			f := detect(ctx)
			return Result{Value: f.String(), OK: f.IsDetected()}
		},
	}
}

// DefaultChecks lists the sweep in the same order as the plain report.
func DefaultChecks(d Detector) []Check {
	return []Check{
		{
			Label: "NVIDIA GPU",
			Run: func(ctx context.Context) Result {
				gpus := d.GPUs(ctx)
				switch len(gpus) {
				case 0:
					return Result{Value: "not detected"}
				case 1:
					return Result{Value: report.DescribeDevice(gpus[0]), OK: true}
				default:
					return Result{Value: fmt.Sprintf("%d devices, %s", len(gpus), report.DescribeDevice(gpus[0])), OK: true}
				}
			},
		},
		factCheck(capability.Driver, d.DriverVersion),
		factCheck(capability.Toolkit, d.ToolkitVersion),
		factCheck(capability.CuDNN, d.CuDNNVersion),
		factCheck(capability.TensorFlow, d.TensorFlowVersion),
		factCheck(capability.PyTorch, d.PyTorchVersion),
		factCheck(capability.Python, d.PythonVersion),
		factCheck(capability.Pip, d.PipVersion),
	}
}
