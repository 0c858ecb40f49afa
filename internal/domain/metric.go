package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FullRate is the rate of a fully covered metric, in basis points.
const FullRate = 10000

// ErrInvalidMetricType is returned when a metric name is not one of MetricTypes.
var ErrInvalidMetricType = errors.New("invalid metric type")

// MetricType names one of the tracked coverage dimensions.
type MetricType string

const (
	MetricStatements MetricType = "statements"
	MetricLines      MetricType = "lines"
	MetricMethods    MetricType = "methods"
	MetricBranches   MetricType = "branches"
)

// MetricTypes lists every metric type in rendering order.
var MetricTypes = []MetricType{MetricStatements, MetricMethods, MetricLines, MetricBranches}

// ParseMetricType converts a configuration value into a MetricType.
func ParseMetricType(value string) (MetricType, error) {
	mt := MetricType(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range MetricTypes {
		if mt == known {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w %q: supported values are %s", ErrInvalidMetricType, value, metricTypeList())
}

// Title returns the capitalized name used in rendered tables.
func (t MetricType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

func (t MetricType) String() string {
	return string(t)
}

func metricTypeList() string {
	names := make([]string, len(MetricTypes))
	for i, t := range MetricTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Count is a raw covered/total pair as read from a coverage report.
type Count struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
}

// Validate checks 0 <= Covered <= Total.
func (c Count) Validate() error {
	if c.Total < 0 || c.Covered < 0 {
		return fmt.Errorf("negative count %d/%d", c.Covered, c.Total)
	}
	if c.Covered > c.Total {
		return fmt.Errorf("covered %d exceeds total %d", c.Covered, c.Total)
	}
	return nil
}

// Counts holds the raw pair for every metric type.
// Parsers produce Counts; rates are derived when a MetricCollection is built.
type Counts map[MetricType]Count

// Metric is a single coverage dimension with a derived rate in basis points.
// It is a value object; the rate is computed once in NewMetric.
type Metric struct {
	total   int
	covered int
	rate    int
}

// NewMetric creates a Metric. Callers guarantee 0 <= covered <= total.
func NewMetric(total, covered int) Metric {
	return Metric{total: total, covered: covered, rate: rateOf(total, covered)}
}

func rateOf(total, covered int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(covered) / float64(total) * FullRate))
}

// Total returns the number of coverable items.
func (m Metric) Total() int {
	return m.total
}

// Covered returns the number of covered items.
func (m Metric) Covered() int {
	return m.covered
}

// Rate returns the coverage rate in basis points (0-10000).
func (m Metric) Rate() int {
	return m.rate
}

// Percent returns the rate as a percentage with two implied decimals.
func (m Metric) Percent() float64 {
	return BipsToPercent(m.rate)
}

// IsEmpty reports whether the metric has nothing to cover.
func (m Metric) IsEmpty() bool {
	return m.total == 0
}

// MetricCollection maps every MetricType to exactly one Metric.
type MetricCollection struct {
	metrics map[MetricType]Metric
}

// NewMetricCollection derives a Metric for every metric type.
// Types missing from counts are treated as empty.
func NewMetricCollection(counts Counts) MetricCollection {
	metrics := make(map[MetricType]Metric, len(MetricTypes))
	for _, t := range MetricTypes {
		c := counts[t]
		metrics[t] = NewMetric(c.Total, c.Covered)
	}
	return MetricCollection{metrics: metrics}
}

// Get returns the metric for the given type.
func (c MetricCollection) Get(t MetricType) Metric {
	return c.metrics[t]
}

// Counts returns the raw covered/total pairs of the collection.
func (c MetricCollection) Counts() Counts {
	out := make(Counts, len(c.metrics))
	for t, m := range c.metrics {
		out[t] = Count{Total: m.total, Covered: m.covered}
	}
	return out
}

// BipsToPercent converts basis points to a percentage.
func BipsToPercent(bips int) float64 {
	return float64(bips) / 100
}

// PercentToBips converts a percentage with up to two decimals into basis points.
func PercentToBips(percent float64) int {
	return int(math.Round(percent * 100))
}

// FormatPercent renders basis points as a percentage without trailing zeros,
// e.g. 7059 -> "70.59%", 5500 -> "55%".
func FormatPercent(bips int) string {
	return strconv.FormatFloat(BipsToPercent(bips), 'f', -1, 64) + "%"
}
