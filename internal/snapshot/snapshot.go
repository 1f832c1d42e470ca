// Package snapshot holds the fact snapshot of one machine, the builder
// that assembles it from detection, and its persisted JSON form.
package snapshot

import (
	"time"

	"cudadoctor/internal/capability"
)

// System holds host facts.
type System struct {
	OS            string
	Arch          string
	CPU           string
	TotalMemoryGB float64
	Python        capability.Fact
}

// CUDA holds the GPU stack facts.
type CUDA struct {
	Driver  capability.Fact
	Toolkit capability.Fact
	CuDNN   capability.Fact
	GPUs    []capability.Device
}

// Frameworks holds deep-learning framework facts.
type Frameworks struct {
	TensorFlow capability.Fact
	PyTorch    capability.Fact
}

// Snapshot is everything known about one machine at one point in time.
// It is never modified after it has been built or decoded.
type Snapshot struct {
	System     System
	CUDA       CUDA
	Frameworks Frameworks
	Timestamp  time.Time
	Hostname   string
}

// Capabilities returns the version facts of the snapshot by capability name.
func (s Snapshot) Capabilities() map[string]capability.Fact {
	return map[string]capability.Fact{
		capability.Python:     s.System.Python,
		capability.Driver:     s.CUDA.Driver,
		capability.Toolkit:    s.CUDA.Toolkit,
		capability.CuDNN:      s.CUDA.CuDNN,
		capability.TensorFlow: s.Frameworks.TensorFlow,
		capability.PyTorch:    s.Frameworks.PyTorch,
	}
}

// DetectedCount returns how many version facts were detected.
func (s Snapshot) DetectedCount() int {
	n := 0
	for _, f := range s.Capabilities() {
		if f.IsDetected() {
			n++
		}
	}
	return n
}

// NothingDetected reports whether the sweep found no GPU and no capability.
func (s Snapshot) NothingDetected() bool {
	return len(s.CUDA.GPUs) == 0 && s.DetectedCount() == 0
}
