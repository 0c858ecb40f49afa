// Package wizard implements the interactive threshold editor behind `coverstatus init`.
package wizard

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

type (
	wizardState int
	wizardField int

	initWizardModel struct {
		state     wizardState
		cfg       application.Config
		cursor    wizardField
		confirmed bool
		aborted   bool
	}
)

const (
	stateIntro wizardState = iota
	stateEdit
	stateConfirm
)

const (
	fieldMetric wizardField = iota
	fieldAlert
	fieldWarning
	fieldCommentMode
	fieldCount
)

// step is the threshold change per key press, in basis points.
const step = 500

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	commentModes = []application.CommentMode{
		application.CommentReplace, application.CommentUpdate, application.CommentInsert,
	}
)

// Run shows the wizard and returns the edited configuration. The boolean
// is false when the user cancelled.
func Run(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	return runInitWizard(cfg, stdout, stdin)
}

func runInitWizard(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	model := newInitWizardModel(cfg)
	program := tea.NewProgram(model, tea.WithInput(stdin), tea.WithOutput(stdout))
	res, err := program.Run()
	if err != nil {
		return cfg, false, err
	}
	finalModel, ok := res.(*initWizardModel)
	if !ok {
		return cfg, false, fmt.Errorf("unexpected wizard state")
	}
	if finalModel.aborted || !finalModel.confirmed {
		return cfg, false, nil
	}
	return finalModel.toConfig(), true, nil
}

func newInitWizardModel(cfg application.Config) *initWizardModel {
	if cfg.Threshold.Metric == "" {
		cfg.Threshold = domain.DefaultThreshold()
	}
	if cfg.CommentMode == "" {
		cfg.CommentMode = application.CommentReplace
	}
	return &initWizardModel{state: stateIntro, cfg: cfg}
}

func (m *initWizardModel) Init() tea.Cmd {
	return nil
}

func (m *initWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			switch m.state {
			case stateIntro:
				m.state = stateEdit
			case stateEdit:
				m.state = stateConfirm
			case stateConfirm:
				m.confirmed = true
				return m, tea.Quit
			}
		case "esc":
			if m.state == stateConfirm {
				m.state = stateEdit
			}
		case "up":
			if m.state == stateEdit {
				m.moveCursor(-1)
			}
		case "down":
			if m.state == stateEdit {
				m.moveCursor(1)
			}
		case "left", "-":
			if m.state == stateEdit {
				m.adjustSelection(-1)
			}
		case "right", "+":
			if m.state == stateEdit {
				m.adjustSelection(1)
			}
		}
	}
	return m, nil
}

func (m *initWizardModel) View() string {
	switch m.state {
	case stateIntro:
		return m.viewIntro()
	case stateEdit:
		return m.viewEdit()
	case stateConfirm:
		return m.viewConfirm()
	default:
		return ""
	}
}

func (m *initWizardModel) moveCursor(delta int) {
	m.cursor += wizardField(delta)
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= fieldCount {
		m.cursor = fieldCount - 1
	}
}

// adjustSelection changes the field under the cursor by one step in direction dir.
func (m *initWizardModel) adjustSelection(dir int) {
	switch m.cursor {
	case fieldMetric:
		m.cfg.Threshold.Metric = cycle(domain.MetricTypes, m.cfg.Threshold.Metric, dir)
	case fieldAlert:
		m.cfg.Threshold.Alert = clamp(m.cfg.Threshold.Alert+dir*step, 0, 10000)
	case fieldWarning:
		m.cfg.Threshold.Warning = clamp(m.cfg.Threshold.Warning+dir*step, 0, 10000)
	case fieldCommentMode:
		m.cfg.CommentMode = cycle(commentModes, m.cfg.CommentMode, dir)
	}
}

func (m *initWizardModel) viewIntro() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("coverstatus init wizard"))
	fmt.Fprintf(&b, "The wizard helps you choose coverage thresholds for %s.\n\n", coveragePath(m.cfg))
	fmt.Fprintf(&b, "Press Enter to continue, or Ctrl+C to cancel. Current threshold is %s.\n", m.cfg.Threshold.String())
	return b.String()
}

func (m *initWizardModel) viewEdit() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Review and adjust thresholds"))
	fmt.Fprintf(&b, "Use ↑/↓ to move, ←/→ or +/- to change values.\n\n")
	rows := []string{
		fmt.Sprintf("Metric:       %s", m.cfg.Threshold.Metric),
		fmt.Sprintf("Alert below:  %s", domain.FormatPercent(m.cfg.Threshold.Alert)),
		fmt.Sprintf("Warn below:   %s", domain.FormatPercent(m.cfg.Threshold.Warning)),
		fmt.Sprintf("Comment mode: %s", m.cfg.CommentMode),
	}
	for i, row := range rows {
		if wizardField(i) == m.cursor {
			fmt.Fprintf(&b, "> %s\n", selectedStyle.Render(row))
			continue
		}
		fmt.Fprintf(&b, "  %s\n", row)
	}
	if !m.cfg.Threshold.IsOrdered() {
		fmt.Fprintf(&b, "\n%s\n", warnStyle.Render("Alert is above warning: every failing rate will be red."))
	}
	fmt.Fprintf(&b, "\nEnter to continue, q to cancel.\n")
	return b.String()
}

func (m *initWizardModel) viewConfirm() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Ready to write configuration"))
	fmt.Fprintf(&b, "Coverage file: %s\n", coveragePath(m.cfg))
	fmt.Fprintf(&b, "Threshold:     %s\n", m.cfg.Threshold.String())
	fmt.Fprintf(&b, "Comment mode:  %s\n", m.cfg.CommentMode)
	fmt.Fprintf(&b, "\nPress Enter to save, Esc to go back, q to cancel.\n")
	return b.String()
}

func (m *initWizardModel) toConfig() application.Config {
	return m.cfg
}

func coveragePath(cfg application.Config) string {
	if cfg.CoveragePath == "" {
		return "the coverage report"
	}
	return cfg.CoveragePath
}

func cycle[T comparable](values []T, current T, dir int) T {
	idx := 0
	for i, v := range values {
		if v == current {
			idx = i
			break
		}
	}
	idx = (idx + dir%len(values) + len(values)) % len(values)
	return values[idx]
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
