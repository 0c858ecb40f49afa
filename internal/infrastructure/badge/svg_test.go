package badge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name  string
		rate  int
		level domain.Level
		want  string
	}{
		{"rounds up", 7059, domain.LevelYellow, "https://img.shields.io/static/v1?label=coverage&message=71%25&color=yellow"},
		{"rounds down", 5549, domain.LevelRed, "https://img.shields.io/static/v1?label=coverage&message=55%25&color=red"},
		{"half rounds away", 8350, domain.LevelGreen, "https://img.shields.io/static/v1?label=coverage&message=84%25&color=green"},
		{"full", 10000, domain.LevelGreen, "https://img.shields.io/static/v1?label=coverage&message=100%25&color=green"},
		{"zero", 0, domain.LevelRed, "https://img.shields.io/static/v1?label=coverage&message=0%25&color=red"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := URL(tc.rate, tc.level); got != tc.want {
				t.Fatalf("URL(%d, %s) = %s, want %s", tc.rate, tc.level, got, tc.want)
			}
		})
	}
}

func TestGenerateBadge(t *testing.T) {
	buf := new(bytes.Buffer)
	opts := Options{
		Label: "coverage",
		Rate:  8550,
		Level: domain.LevelYellow,
		Style: StyleFlat,
	}
	if err := Generate(buf, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "<svg") {
		t.Fatal("expected SVG element")
	}
	if !strings.Contains(output, "coverage") {
		t.Fatal("expected label in output")
	}
	if !strings.Contains(output, "85.5%") {
		t.Fatal("expected percentage in output")
	}
}

func TestGenerateBadgeColors(t *testing.T) {
	tests := []struct {
		name      string
		level     domain.Level
		wantColor string
	}{
		{"red", domain.LevelRed, "#e05d44"},
		{"yellow", domain.LevelYellow, "#dfb317"},
		{"green", domain.LevelGreen, "#4c1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			opts := Options{Rate: 5000, Level: tc.level}
			if err := Generate(buf, opts); err != nil {
				t.Fatalf("generate: %v", err)
			}
			if !strings.Contains(buf.String(), tc.wantColor) {
				t.Fatalf("expected color %s for %s", tc.wantColor, tc.level)
			}
		})
	}
}

func TestGenerateBadgeFlatSquareStyle(t *testing.T) {
	buf := new(bytes.Buffer)
	opts := Options{
		Label: "coverage",
		Rate:  7500,
		Level: domain.LevelYellow,
		Style: StyleFlatSquare,
	}
	if err := Generate(buf, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}
	// Flat square has no border radius
	if strings.Contains(buf.String(), "rx=\"3\"") {
		t.Fatal("flat-square should not have rounded corners")
	}
}

func TestGenerateBadgeDefaults(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := Generate(buf, Options{Rate: 10000, Level: domain.LevelGreen}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "rx=\"3\"") {
		t.Fatal("expected flat style by default")
	}
	if !strings.Contains(output, ">coverage<") {
		t.Fatal("expected default label")
	}
	if !strings.Contains(output, "100%") {
		t.Fatal("expected 100%")
	}
}

func TestGenerateBadgeCustomLabel(t *testing.T) {
	buf := new(bytes.Buffer)
	opts := Options{Label: "test coverage", Rate: 0, Level: domain.LevelRed}
	if err := Generate(buf, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(buf.String(), "test coverage") {
		t.Fatal("expected custom label")
	}
	if !strings.Contains(buf.String(), "0%") {
		t.Fatal("expected 0%")
	}
}
