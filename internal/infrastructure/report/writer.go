package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
	"github.com/mattn/go-isatty"
)

type Writer struct{}

type metricJSON struct {
	Metric  domain.MetricType `json:"metric"`
	Total   int               `json:"total"`
	Covered int               `json:"covered"`
	Rate    int               `json:"rate"`
	Percent float64           `json:"percent"`
}

type thresholdJSON struct {
	Metric  domain.MetricType `json:"metric"`
	Alert   int               `json:"alert"`
	Warning int               `json:"warning"`
}

func (Writer) Write(w io.Writer, report domain.Report, format application.OutputFormat) error {
	switch format {
	case application.OutputJSON:
		payload := struct {
			Metrics   []metricJSON  `json:"metrics"`
			Threshold thresholdJSON `json:"threshold"`
			Result    domain.Result `json:"result"`
			Summary   struct {
				Pass bool `json:"pass"`
			} `json:"summary"`
		}{
			Threshold: thresholdJSON{
				Metric:  report.Threshold().Metric,
				Alert:   report.Threshold().Alert,
				Warning: report.Threshold().Warning,
			},
			Result: report.Result(),
		}
		for _, t := range domain.MetricTypes {
			m := report.Metrics().Get(t)
			payload.Metrics = append(payload.Metrics, metricJSON{
				Metric:  t,
				Total:   m.Total(),
				Covered: m.Covered(),
				Rate:    m.Rate(),
				Percent: m.Percent(),
			})
		}
		payload.Summary.Pass = !report.Result().IsFailing()
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case application.OutputBrief:
		return writeBrief(w, report)
	case application.OutputText, "":
		return writeText(w, report)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeText(w io.Writer, report domain.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Metric\tCoverage\tCovered\tTotal")

	for _, t := range domain.MetricTypes {
		m := report.Metrics().Get(t)
		name := t.Title()
		if t == report.Threshold().Metric {
			name += " *"
		}
		if m.IsEmpty() {
			_, _ = fmt.Fprintf(tw, "%s\t-\t%d\t%d\n", name, m.Covered(), m.Total())
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", name, domain.FormatPercent(m.Rate()), m.Covered(), m.Total())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	result := report.Result()
	level := string(result.Level)
	if colorEnabled(w) {
		level = levelStyle(result.Level).Render(level)
	}
	threshold := report.Threshold()
	_, err := fmt.Fprintf(w, "\nResult: %s %s (%s) alert %s, warning %s\n",
		result.Metric, domain.FormatPercent(result.Rate), level,
		domain.FormatPercent(threshold.Alert), domain.FormatPercent(threshold.Warning))
	return err
}

func levelStyle(level domain.Level) lipgloss.Style {
	switch level {
	case domain.LevelGreen:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	case domain.LevelYellow:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// writeBrief outputs a single-line summary for logs and agents.
// Format: STATUS | metric XX.XX% (level) | statements XX% methods XX% lines XX% branches XX%
func writeBrief(w io.Writer, report domain.Report) error {
	result := report.Result()
	status := "PASS"
	if result.IsFailing() {
		status = "FAIL"
	}

	line := fmt.Sprintf("%s | %s %s (%s) |", status, result.Metric, domain.FormatPercent(result.Rate), result.Level)
	for _, t := range domain.MetricTypes {
		m := report.Metrics().Get(t)
		if m.IsEmpty() {
			continue
		}
		line += fmt.Sprintf(" %s %s", t, domain.FormatPercent(m.Rate()))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
