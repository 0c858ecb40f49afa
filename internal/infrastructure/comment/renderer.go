// Package comment renders the pull-request comment that summarizes a coverage report.
package comment

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/badge"
)

const headerPrefix = "<!-- coverstatus: "

// Renderer renders comment bodies. It has no state.
type Renderer struct{}

// NewRenderer creates a new comment renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Header returns the hidden first line that identifies comments posted for label.
func Header(label string) string {
	return headerPrefix + label + " -->"
}

// Render returns the comment body for a report.
func (r *Renderer) Render(metrics domain.MetricCollection, result domain.Result, label string) string {
	var b strings.Builder

	b.WriteString(Header(label))
	b.WriteString("\n## ")
	b.WriteString(label)
	if result.IsFullCoverage() {
		b.WriteString(" :tada:")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "| Totals | ![Coverage](%s) |\n", badge.URL(result.Rate, result.Level))
	b.WriteString("| :-- | :-- |\n")
	for _, t := range domain.MetricTypes {
		m := metrics.Get(t)
		if m.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "| %s: | %s ( %d / %d ) |\n", t.Title(), domain.FormatPercent(m.Rate()), m.Covered(), m.Total())
	}
	return b.String()
}

// Matches reports whether body starts with the header for label.
func (r *Renderer) Matches(body, label string) bool {
	first, _, _ := strings.Cut(body, "\n")
	return strings.TrimRight(first, "\r") == Header(label)
}
