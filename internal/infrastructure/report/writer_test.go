package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

func sampleReport(metric domain.MetricType) domain.Report {
	return domain.NewReport(domain.NewMetricCollection(domain.Counts{
		domain.MetricLines:      {Total: 34, Covered: 24},
		domain.MetricStatements: {Total: 66, Covered: 45},
		domain.MetricMethods:    {Total: 12, Covered: 10},
	}), domain.NewThreshold(metric, 6000, 8000))
}

func TestWriteText(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := (Writer{}).Write(buf, sampleReport(domain.MetricLines), application.OutputText); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Statements", "68.18%", "Lines *", "70.59%", "Branches", "Result: lines 70.59% (yellow) alert 60%, warning 80%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteTextEmptyMetric(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := (Writer{}).Write(buf, sampleReport(domain.MetricBranches), ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Branches *") {
		t.Fatalf("expected threshold metric marker:\n%s", out)
	}
	if !strings.Contains(out, "Result: branches 0% (red)") {
		t.Fatalf("expected red result:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := (Writer{}).Write(buf, sampleReport(domain.MetricLines), application.OutputJSON); err != nil {
		t.Fatalf("write: %v", err)
	}

	var payload struct {
		Metrics []struct {
			Metric  string  `json:"metric"`
			Rate    int     `json:"rate"`
			Percent float64 `json:"percent"`
		} `json:"metrics"`
		Threshold struct {
			Alert   int `json:"alert"`
			Warning int `json:"warning"`
		} `json:"threshold"`
		Result  domain.Result `json:"result"`
		Summary struct {
			Pass bool `json:"pass"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Metrics) != 4 || payload.Metrics[0].Metric != "statements" {
		t.Fatalf("unexpected metrics %+v", payload.Metrics)
	}
	if payload.Result.Rate != 7059 || payload.Result.Level != domain.LevelYellow {
		t.Fatalf("unexpected result %+v", payload.Result)
	}
	if payload.Threshold.Alert != 6000 || payload.Threshold.Warning != 8000 {
		t.Fatalf("unexpected threshold %+v", payload.Threshold)
	}
	if !payload.Summary.Pass {
		t.Fatal("yellow should pass")
	}
}

func TestWriteBrief(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := (Writer{}).Write(buf, sampleReport(domain.MetricBranches), application.OutputBrief); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "FAIL | branches 0% (red) | statements 68.18% methods 83.33% lines 70.59%\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	err := (Writer{}).Write(new(bytes.Buffer), sampleReport(domain.MetricLines), application.OutputFormat("html"))
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
