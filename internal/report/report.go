// Package report renders human readable output for every mode of the tool.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/snapshot"
)

// Labels maps capability names to display names.
var Labels = map[string]string{
	capability.Driver:     "NVIDIA Driver",
	capability.Toolkit:    "CUDA Toolkit",
	capability.CuDNN:      "cuDNN",
	capability.TensorFlow: "TensorFlow",
	capability.PyTorch:    "PyTorch",
	capability.Python:     "Python",
	capability.Pip:        "pip",
}

const (
	markOK      = "✓"
	markMissing = "✗"
	markWarn    = "!"
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	missing lipgloss.Style
	hint    lipgloss.Style
	fix     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd700")),
		label:   r.NewStyle().Foreground(lipgloss.Color("#87d7af")),
		value:   r.NewStyle().Foreground(lipgloss.Color("#ffffff")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#5fd75f")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("#ffaf00")),
		missing: r.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
		hint:    r.NewStyle().Foreground(lipgloss.Color("#5fafff")),
		fix:     r.NewStyle().Foreground(lipgloss.Color("#808080")).PaddingLeft(4),
	}
}

// Reporter writes styled reports. Colours are only emitted when w is a
// terminal.
type Reporter struct {
	w     io.Writer
	goos  string
	style styles
}

// New creates a reporter for the given platform's fix suggestions.
func New(w io.Writer, goos string) *Reporter {
	return &Reporter{
		w:     w,
		goos:  goos,
		style: newStyles(lipgloss.NewRenderer(w)),
	}
}

func (r *Reporter) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func (r *Reporter) title(text string) {
	r.printf("%s\n\n", r.style.title.Render(text))
}

func (r *Reporter) section(text string) {
	r.printf("%s\n", r.style.section.Render(text))
}

func (r *Reporter) field(label, value string) {
	r.printf("  %s %s\n", r.style.label.Render(label+":"), r.style.value.Render(value))
}

// fact prints one capability line and, when asked, the fix for a missing one.
func (r *Reporter) fact(name string, f capability.Fact, showfix bool) {
	label := Labels[name]
	if v, ok := f.Version(); ok {
		r.printf("  %s %s: %s\n", r.style.ok.Render(markOK), label, r.style.value.Render(v))
		return
	}
	r.printf("  %s %s: %s\n", r.style.missing.Render(markMissing), label, r.style.missing.Render("not detected"))
	if showfix {
		r.printFix(Fix(name, r.goos))
	}
}

func (r *Reporter) printFix(text string) {
	for _, line := range strings.Split(text, "\n") {
		r.printf("%s\n", r.style.fix.Render(line))
	}
}

// Sweep renders the default diagnostic report for a freshly built snapshot.
func (r *Reporter) Sweep(snap snapshot.Snapshot, pip capability.Fact, showfix bool) {
	r.title("CUDA Doctor: environment check")

	r.section("GPU")
	if len(snap.CUDA.GPUs) == 0 {
		r.printf("  %s %s\n", r.style.missing.Render(markMissing), r.style.missing.Render("No NVIDIA GPU detected"))
		if showfix {
			r.printFix(Fix(GPUFix, r.goos))
		}
	}
	for i, d := range snap.CUDA.GPUs {
		r.printf("  %s GPU %d: %s\n", r.style.ok.Render(markOK), i, r.style.value.Render(DescribeDevice(d)))
	}

	r.printf("\n")
	r.section("CUDA stack")
	r.fact(capability.Driver, snap.CUDA.Driver, showfix)
	r.fact(capability.Toolkit, snap.CUDA.Toolkit, showfix)
	r.fact(capability.CuDNN, snap.CUDA.CuDNN, showfix)

	r.printf("\n")
	r.section("Frameworks")
	r.fact(capability.TensorFlow, snap.Frameworks.TensorFlow, showfix)
	r.fact(capability.PyTorch, snap.Frameworks.PyTorch, showfix)

	r.printf("\n")
	r.section("Python")
	r.fact(capability.Python, snap.System.Python, showfix)
	r.fact(capability.Pip, pip, showfix)

	missing := len(snap.Capabilities()) - snap.DetectedCount()
	r.printf("\n%s\n", r.style.label.Render(fmt.Sprintf("%d of %d components detected", snap.DetectedCount(), len(snap.Capabilities()))))
	if (missing > 0 || len(snap.CUDA.GPUs) == 0) && !showfix {
		r.printf("%s\n", r.style.hint.Render("Use --showfix to see installation guides for missing components."))
	}
}

// DescribeDevice renders a device with whichever optional facts are known.
func DescribeDevice(d capability.Device) string {
	var extra []string
	if d.MemoryGB != nil {
		extra = append(extra, fmt.Sprintf("%.1f GB", *d.MemoryGB))
	}
	if d.ComputeCapability != nil {
		extra = append(extra, "compute "+*d.ComputeCapability)
	}
	if len(extra) == 0 {
		return d.Name
	}
	return d.Name + " (" + strings.Join(extra, ", ") + ")"
}

// Exported confirms a snapshot export.
func (r *Reporter) Exported(path string, snap snapshot.Snapshot) {
	r.printf("%s %s\n", r.style.ok.Render(markOK), r.style.value.Render("Environment exported to "+path))
	r.field("Components detected", fmt.Sprintf("%d of %d", snap.DetectedCount(), len(snap.Capabilities())))
	r.field("GPUs", fmt.Sprintf("%d", len(snap.CUDA.GPUs)))
}

// Bundled confirms a diagnostic bundle.
func (r *Reporter) Bundled(path string, files int) {
	r.printf("%s %s\n", r.style.ok.Render(markOK), r.style.value.Render(fmt.Sprintf("Diagnostic bundle with %d files written to %s", files, path)))
}
