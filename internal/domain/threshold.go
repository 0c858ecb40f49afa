package domain

import "fmt"

// Level classifies a coverage rate against a Threshold.
type Level string

const (
	LevelRed    Level = "red"
	LevelYellow Level = "yellow"
	LevelGreen  Level = "green"
)

func (l Level) String() string {
	return string(l)
}

// IsFailing reports whether the level fails the threshold.
func (l Level) IsFailing() bool {
	return l == LevelRed
}

// Threshold selects the authoritative metric and the two rate bounds, in basis points.
// Rates below Alert are red, rates below Warning are yellow, everything else is green.
// Alert <= Warning is expected but not enforced.
type Threshold struct {
	Metric  MetricType
	Alert   int
	Warning int
}

// NewThreshold creates a Threshold for the given metric.
func NewThreshold(metric MetricType, alert, warning int) Threshold {
	return Threshold{Metric: metric, Alert: alert, Warning: warning}
}

// DefaultThreshold returns the thresholds used when none are configured.
func DefaultThreshold() Threshold {
	return NewThreshold(MetricLines, 5000, 9000)
}

// Classify maps a rate to a Level. Boundary values belong to the higher tier.
func (t Threshold) Classify(rate int) Level {
	switch {
	case rate < t.Alert:
		return LevelRed
	case rate < t.Warning:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// IsOrdered reports whether Alert <= Warning.
func (t Threshold) IsOrdered() bool {
	return t.Alert <= t.Warning
}

// String returns a formatted string representation.
func (t Threshold) String() string {
	return fmt.Sprintf("%s alert=%s warning=%s", t.Metric, FormatPercent(t.Alert), FormatPercent(t.Warning))
}
