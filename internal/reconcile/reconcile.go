// Package reconcile compares two fact snapshots field by field.
package reconcile

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/snapshot"
)

// Outcome classifies one (local, remote) pair.
type Outcome int

const (
	// Match means both sides report the same token.
	Match Outcome = iota
	// Mismatch means both sides report different tokens.
	Mismatch
	// LocalOnly means only this machine reports a value.
	LocalOnly
	// RemoteOnly means only the imported snapshot reports a value.
	RemoteOnly
	// BothAbsent means neither side reports a value.
	BothAbsent
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case LocalOnly:
		return "local-only"
	case RemoteOnly:
		return "remote-only"
	case BothAbsent:
		return "both-absent"
	default:
		return "unknown"
	}
}

// Section groups entries for display.
type Section string

const (
	// SectionSystem holds host facts and the Python version.
	SectionSystem Section = "system"
	// SectionCUDA holds the driver, toolkit, cuDNN and GPU list.
	SectionCUDA Section = "cuda"
	// SectionFrameworks holds TensorFlow and PyTorch.
	SectionFrameworks Section = "frameworks"
)

// Entry is the classification of one tracked field.
type Entry struct {
	Field   string
	Label   string
	Section Section
	Local   capability.Fact
	Remote  capability.Fact
	Outcome Outcome
}

// Classify compares two facts by exact string equality.
func Classify(local, remote capability.Fact) Outcome {
	lv, lok := local.Version()
	rv, rok := remote.Version()
	switch {
	case lok && rok && lv == rv:
		return Match
	case lok && rok:
		return Mismatch
	case lok:
		return LocalOnly
	case rok:
		return RemoteOnly
	default:
		return BothAbsent
	}
}

type field struct {
	name    string
	label   string
	section Section
	value   func(snapshot.Snapshot) capability.Fact
}

// checklist fixes the order of the diff: system, driver, toolkit, library,
// frameworks.
var checklist = []field{
	{"system_info.os", "Operating system", SectionSystem, func(s snapshot.Snapshot) capability.Fact { return text(s.System.OS) }},
	{"system_info.arch", "Architecture", SectionSystem, func(s snapshot.Snapshot) capability.Fact { return text(s.System.Arch) }},
	{"system_info.cpu", "CPU", SectionSystem, func(s snapshot.Snapshot) capability.Fact { return text(s.System.CPU) }},
	{"system_info.total_memory_gb", "Memory (GB)", SectionSystem, func(s snapshot.Snapshot) capability.Fact { return memory(s.System.TotalMemoryGB) }},
	{"system_info.python_version", "Python", SectionSystem, func(s snapshot.Snapshot) capability.Fact { return s.System.Python }},
	{"cuda_info.driver_version", "Driver", SectionCUDA, func(s snapshot.Snapshot) capability.Fact { return s.CUDA.Driver }},
	{"cuda_info.cuda_version", "CUDA", SectionCUDA, func(s snapshot.Snapshot) capability.Fact { return s.CUDA.Toolkit }},
	{"cuda_info.cudnn_version", "cuDNN", SectionCUDA, func(s snapshot.Snapshot) capability.Fact { return s.CUDA.CuDNN }},
	{"cuda_info.gpus", "GPUs", SectionCUDA, func(s snapshot.Snapshot) capability.Fact { return gpuNames(s.CUDA.GPUs) }},
	{"frameworks.tensorflow", "TensorFlow", SectionFrameworks, func(s snapshot.Snapshot) capability.Fact { return s.Frameworks.TensorFlow }},
	{"frameworks.pytorch", "PyTorch", SectionFrameworks, func(s snapshot.Snapshot) capability.Fact { return s.Frameworks.PyTorch }},
}

// Reconcile classifies every tracked field of local against remote. Neither
// snapshot is modified.
func Reconcile(local, remote snapshot.Snapshot) []Entry {
	return lo.Map(checklist, func(f field, _ int) Entry {
		l, r := f.value(local), f.value(remote)
		return Entry{
			Field:   f.name,
			Label:   f.label,
			Section: f.section,
			Local:   l,
			Remote:  r,
			Outcome: Classify(l, r),
		}
	})
}

// Summary counts entries per outcome.
func Summary(entries []Entry) map[Outcome]int {
	return lo.CountValuesBy(entries, func(e Entry) Outcome { return e.Outcome })
}

// Differs reports whether any entry is a mismatch or present on one side only.
func Differs(entries []Entry) bool {
	return lo.SomeBy(entries, func(e Entry) bool {
		return e.Outcome == Mismatch || e.Outcome == LocalOnly || e.Outcome == RemoteOnly
	})
}

func text(v string) capability.Fact {
	if strings.TrimSpace(v) == "" {
		return capability.NotDetected
	}
	return capability.Detected(v)
}

func memory(gb float64) capability.Fact {
	if gb <= 0 {
		return capability.NotDetected
	}
	return capability.Detected(strconv.FormatFloat(gb, 'f', 1, 64))
}

// gpuNames renders the device list as one comparable token.
func gpuNames(devices []capability.Device) capability.Fact {
	if len(devices) == 0 {
		return capability.NotDetected
	}
	names := lo.Map(devices, func(d capability.Device, _ int) string { return d.Name })
	return capability.Detected(strings.Join(names, ", "))
}
