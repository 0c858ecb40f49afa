package domain

// Result is the classification of the threshold metric within a Report.
type Result struct {
	Metric  MetricType `json:"metric"`
	Total   int        `json:"total"`
	Covered int        `json:"covered"`
	Rate    int        `json:"rate"`
	Level   Level      `json:"level"`
}

// Percent returns the result rate as a percentage.
func (r Result) Percent() float64 {
	return BipsToPercent(r.Rate)
}

// IsFullCoverage reports whether the classified metric is at 100%.
func (r Result) IsFullCoverage() bool {
	return r.Rate == FullRate
}

// IsFailing reports whether the result is below the alert threshold.
func (r Result) IsFailing() bool {
	return r.Level.IsFailing()
}

// Report combines the metrics of one coverage report with a Threshold.
// The Result is computed once at construction.
type Report struct {
	metrics   MetricCollection
	threshold Threshold
	result    Result
}

// NewReport classifies the threshold metric of the collection.
func NewReport(metrics MetricCollection, threshold Threshold) Report {
	m := metrics.Get(threshold.Metric)
	return Report{
		metrics:   metrics,
		threshold: threshold,
		result: Result{
			Metric:  threshold.Metric,
			Total:   m.Total(),
			Covered: m.Covered(),
			Rate:    m.Rate(),
			Level:   threshold.Classify(m.Rate()),
		},
	}
}

// Metrics returns every metric of the report.
func (r Report) Metrics() MetricCollection {
	return r.metrics
}

// Threshold returns the threshold the report was classified against.
func (r Report) Threshold() Threshold {
	return r.threshold
}

// Result returns the cached classification.
func (r Report) Result() Result {
	return r.result
}
