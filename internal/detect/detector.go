package detect

import (
	"context"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/probe"
)

// Detector is the detection facade: one method per capability, each running
// the capability's chain from the plan. No method ever fails; a capability
// that no strategy could establish is capability.NotDetected.
type Detector struct {
	runner *probe.Runner
	plan   Plan
	logger *logging.Logger
}

// NewDetector creates a detection facade.
func NewDetector(runner *probe.Runner, plan Plan, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Detector{runner: runner, plan: plan, logger: logger}
}

// Plan returns the chains this detector runs.
func (d *Detector) Plan() Plan {
	return d.plan
}

func (d *Detector) fact(ctx context.Context, name string, steps []probe.Step[string]) capability.Fact {
	fact := d.runner.Fact(ctx, name, steps)
	d.logger.Debug("detect.capability.result", "Capability probed", map[string]interface{}{
		"capability": name,
		"result":     fact.String(),
	})
	return fact
}

// DriverVersion detects the NVIDIA driver version.
func (d *Detector) DriverVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.Driver, d.plan.Driver)
}

// ToolkitVersion detects the CUDA toolkit version.
func (d *Detector) ToolkitVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.Toolkit, d.plan.Toolkit)
}

// CuDNNVersion detects the cuDNN version.
func (d *Detector) CuDNNVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.CuDNN, d.plan.CuDNN)
}

// TensorFlowVersion detects the installed TensorFlow version.
func (d *Detector) TensorFlowVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.TensorFlow, d.plan.TensorFlow)
}

// PyTorchVersion detects the installed PyTorch version.
func (d *Detector) PyTorchVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.PyTorch, d.plan.PyTorch)
}

// PythonVersion detects the Python interpreter version.
func (d *Detector) PythonVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.Python, d.plan.Python)
}

// PipVersion detects the pip version.
func (d *Detector) PipVersion(ctx context.Context) capability.Fact {
	return d.fact(ctx, capability.Pip, d.plan.Pip)
}

// GPUs lists GPU devices. An empty, non-nil list means no device was found,
// which is a normal outcome on CPU-only machines.
func (d *Detector) GPUs(ctx context.Context) []capability.Device {
	devices, ok := probe.Run(ctx, d.runner, "gpus", d.plan.GPUs)
	if !ok || devices == nil {
		return []capability.Device{}
	}
	d.logger.Debug("detect.gpus.result", "GPU devices listed", map[string]interface{}{
		"count": len(devices),
	})
	return devices
}
