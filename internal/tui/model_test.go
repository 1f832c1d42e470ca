package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"cudadoctor/internal/capability"
	"cudadoctor/internal/logging"
)

func staticCheck(label string, ran *[]string, result Result) Check {
	return Check{
		Label: label,
		Run: func(context.Context) Result {
			*ran = append(*ran, label)
			return result
		},
	}
}

func newTestModel(ran *[]string) Model {
	checks := []Check{
		staticCheck("Driver", ran, Result{Value: "535.104.05", OK: true}),
		staticCheck("cuDNN", ran, Result{Value: "not detected"}),
	}
	return NewModel(context.Background(), checks, logging.Nop())
}

// runCmd executes cmd and returns its message.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	return cmd()
}

func TestModel_RunsChecksSequentially(t *testing.T) {
	var ran []string
	m := newTestModel(&ran)

	if m.Init() == nil {
		t.Fatal("Expected Init to start the sweep")
	}

	// Drive the first check directly; Init batches it with the spinner tick.
	msg := runCmd(t, m.run(0))
	if len(ran) != 1 || ran[0] != "Driver" {
		t.Fatalf("Expected only the first check to run, got %v", ran)
	}

	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if m.current != 1 {
		t.Errorf("Expected current check 1, got %d", m.current)
	}
	if !strings.Contains(m.View(), "checking...") {
		t.Error("Expected the second check to show as running")
	}

	updated, cmd = m.Update(runCmd(t, cmd))
	m = updated.(Model)
	if cmd != nil {
		t.Error("Expected no further command after the last check")
	}
	if !m.Done() {
		t.Fatal("Expected sweep to be done")
	}
	if strings.Join(ran, ",") != "Driver,cuDNN" {
		t.Errorf("Unexpected check order %v", ran)
	}

	view := m.View()
	if !strings.Contains(view, "Driver: 535.104.05") {
		t.Errorf("Expected driver result in view, got %q", view)
	}
	if !strings.Contains(view, "cuDNN: not detected") {
		t.Errorf("Expected cuDNN result in view, got %q", view)
	}
	if !strings.Contains(view, "Finished") {
		t.Error("Expected completion hint")
	}
}

func TestModel_IgnoresStaleResults(t *testing.T) {
	var ran []string
	m := newTestModel(&ran)

	updated, cmd := m.Update(checkDoneMsg{index: 1, result: Result{OK: true}})
	m = updated.(Model)
	if cmd != nil || m.current != 0 {
		t.Error("Expected an out-of-order result to be ignored")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		var ran []string
		updated, cmd := newTestModel(&ran).Update(msg)
		m := updated.(Model)

		if !m.quitting {
			t.Errorf("Expected quitting after %q", msg.String())
		}
		if cmd == nil {
			t.Errorf("Expected quit command after %q", msg.String())
		}
		if m.View() != "" {
			t.Error("Expected empty view when quitting")
		}
	}
}

func TestModel_SpinnerStopsWhenDone(t *testing.T) {
	m := NewModel(context.Background(), nil, logging.Nop())

	if m.Init() != nil {
		t.Error("Expected no command without checks")
	}
	if _, cmd := m.Update(spinner.TickMsg{}); cmd != nil {
		t.Error("Expected spinner to stop once every check is done")
	}
}

type fakeDetector struct{}

func (fakeDetector) DriverVersion(context.Context) capability.Fact {
	return capability.Detected("535.104.05")
}
func (fakeDetector) ToolkitVersion(context.Context) capability.Fact { return capability.NotDetected }
func (fakeDetector) CuDNNVersion(context.Context) capability.Fact   { return capability.NotDetected }
func (fakeDetector) TensorFlowVersion(context.Context) capability.Fact {
	return capability.NotDetected
}
func (fakeDetector) PyTorchVersion(context.Context) capability.Fact { return capability.Detected("2.1.0") }
func (fakeDetector) PythonVersion(context.Context) capability.Fact  { return capability.Detected("3.11.4") }
func (fakeDetector) PipVersion(context.Context) capability.Fact     { return capability.NotDetected }
func (fakeDetector) GPUs(context.Context) []capability.Device {
	return []capability.Device{{Name: "Tesla T4"}, {Name: "Tesla T4"}}
}

func TestDefaultChecks(t *testing.T) {
	checks := DefaultChecks(fakeDetector{})
	if len(checks) != 8 {
		t.Fatalf("Expected 8 checks, got %d", len(checks))
	}

	gpu := checks[0].Run(context.Background())
	if !gpu.OK || gpu.Value != "2 devices, Tesla T4" {
		t.Errorf("Unexpected GPU result %+v", gpu)
	}

	driver := checks[1]
	if driver.Label != "NVIDIA Driver" {
		t.Errorf("Unexpected label %q", driver.Label)
	}
	if res := driver.Run(context.Background()); !res.OK || res.Value != "535.104.05" {
		t.Errorf("Unexpected driver result %+v", res)
	}
	if res := checks[2].Run(context.Background()); res.OK || res.Value != "not detected" {
		t.Errorf("Unexpected toolkit result %+v", res)
	}
}
