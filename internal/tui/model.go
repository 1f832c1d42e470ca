// Package tui runs the capability sweep interactively.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cudadoctor/internal/logging"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd700"))
)

// checkDoneMsg carries the result of the check at index.
type checkDoneMsg struct {
	index  int
	result Result
}

// Model walks the checks one at a time. A check only starts after the
// previous one has reported.
type Model struct {
	ctx       context.Context
	logger    *logging.Logger
	checks    []Check
	results   []*Result
	current   int
	spinner   spinner.Model
	startTime time.Time
	elapsed   time.Duration
	quitting  bool
}

// NewModel creates the interactive sweep over checks.
func NewModel(ctx context.Context, checks []Check, logger *logging.Logger) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		ctx:       ctx,
		logger:    logger,
		checks:    checks,
		results:   make([]*Result, len(checks)),
		spinner:   s,
		startTime: time.Now(),
	}
}

// Init starts the spinner and the first check.
func (m Model) Init() tea.Cmd {
	if len(m.checks) == 0 {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.run(0))
}

func (m Model) run(index int) tea.Cmd {
	check := m.checks[index]
	ctx := m.ctx
	return func() tea.Msg {
		return checkDoneMsg{index: index, result: check.Run(ctx)}
	}
}

// Done reports whether every check has finished.
func (m Model) Done() bool {
	return m.current >= len(m.checks)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case checkDoneMsg:
		if msg.index != m.current || m.Done() {
			return m, nil
		}
		result := msg.result
		m.results[msg.index] = &result
		m.current++

		m.logger.Debug("tui.check.done", "Interactive check finished", map[string]interface{}{
			"check": m.checks[msg.index].Label,
			"ok":    result.OK,
		})

		if m.Done() {
			m.elapsed = time.Since(m.startTime)
			return m, nil
		}
		return m, m.run(m.current)

	case spinner.TickMsg:
		if m.Done() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("CUDA Doctor"))
	b.WriteString("\n")

	for i, check := range m.checks {
		label := labelStyle.Render(check.Label + ":")
		switch {
		case m.results[i] != nil && m.results[i].OK:
			fmt.Fprintf(&b, "  %s %s %s\n", okStyle.Render("✓"), label, valueStyle.Render(m.results[i].Value))
		case m.results[i] != nil:
			fmt.Fprintf(&b, "  %s %s %s\n", missingStyle.Render("✗"), label, missingStyle.Render(m.results[i].Value))
		case i == m.current:
			fmt.Fprintf(&b, "  %s %s %s\n", m.spinner.View(), label, pendingStyle.Render("checking..."))
		default:
			fmt.Fprintf(&b, "  %s %s\n", pendingStyle.Render("·"), pendingStyle.Render(check.Label))
		}
	}

	if m.Done() {
		b.WriteString(hintStyle.Render(fmt.Sprintf("Finished in %s. Press q to quit.", m.elapsed.Truncate(time.Millisecond))))
	} else {
		b.WriteString(hintStyle.Render("Press q to quit."))
	}
	b.WriteString("\n")
	return b.String()
}

// Run starts the interactive sweep and blocks until the user quits.
func Run(ctx context.Context, checks []Check, logger *logging.Logger) error {
	if _, err := tea.NewProgram(NewModel(ctx, checks, logger), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run interactive sweep: %w", err)
	}
	return nil
}
