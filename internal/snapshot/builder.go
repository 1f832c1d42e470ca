package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/logging"
	"cudadoctor/internal/sysinfo"
)

// CapabilityDetector answers one question per capability. *detect.Detector
// implements it.
type CapabilityDetector interface {
	DriverVersion(ctx context.Context) capability.Fact
	ToolkitVersion(ctx context.Context) capability.Fact
	CuDNNVersion(ctx context.Context) capability.Fact
	TensorFlowVersion(ctx context.Context) capability.Fact
	PyTorchVersion(ctx context.Context) capability.Fact
	PythonVersion(ctx context.Context) capability.Fact
	GPUs(ctx context.Context) []capability.Device
}

// Builder assembles a Snapshot of the local machine.
type Builder struct {
	detector CapabilityDetector
	system   sysinfo.Reader
	logger   *logging.Logger
	clock    func() time.Time
	hostname func() string
}

// Option customises a Builder.
type Option func(*Builder)

// WithClock overrides the time source used for the snapshot timestamp.
func WithClock(clock func() time.Time) Option {
	return func(b *Builder) { b.clock = clock }
}

// WithHostname overrides the host identifier source.
func WithHostname(hostname func() string) Option {
	return func(b *Builder) { b.hostname = hostname }
}

// NewBuilder creates a snapshot builder.
func NewBuilder(detector CapabilityDetector, system sysinfo.Reader, logger *logging.Logger, opts ...Option) *Builder {
	b := &Builder{
		detector: detector,
		system:   system,
		logger:   logger,
		clock:    time.Now,
		hostname: sysinfo.Hostname,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs every capability chain, one after another, and returns the
// resulting snapshot. It never fails: undetectable capabilities are recorded
// as not detected.
func (b *Builder) Build(ctx context.Context) Snapshot {
	logger := b.logger.With(map[string]interface{}{"run_id": uuid.NewString()})
	started := time.Now()

	logger.Info("snapshot.build.start", "Collecting environment facts", nil)

	info := b.system.Read(ctx)

	snap := Snapshot{
		System: System{
			OS:            info.OS,
			Arch:          info.Arch,
			CPU:           info.CPU,
			TotalMemoryGB: info.TotalMemoryGB,
			Python:        b.detector.PythonVersion(ctx),
		},
		CUDA: CUDA{
			Driver:  b.detector.DriverVersion(ctx),
			Toolkit: b.detector.ToolkitVersion(ctx),
			CuDNN:   b.detector.CuDNNVersion(ctx),
			GPUs:    b.detector.GPUs(ctx),
		},
		Frameworks: Frameworks{
			TensorFlow: b.detector.TensorFlowVersion(ctx),
			PyTorch:    b.detector.PyTorchVersion(ctx),
		},
		Timestamp: b.clock().UTC(),
		Hostname:  b.hostname(),
	}
	if snap.CUDA.GPUs == nil {
		snap.CUDA.GPUs = []capability.Device{}
	}

	logger.Info("snapshot.build.complete", "Environment facts collected", map[string]interface{}{
		"detected":    snap.DetectedCount(),
		"gpus":        len(snap.CUDA.GPUs),
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return snap
}
