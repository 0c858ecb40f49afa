// Package jsonsummary implements a parser for the istanbul json-summary format.
//
// The summary is produced by nyc, c8 and Jest with the json-summary reporter
// (coverage/coverage-summary.json). Only the "total" entry is read.
package jsonsummary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

type summary struct {
	Total *totals `json:"total"`
}

type totals struct {
	Statements *counter `json:"statements"`
	Lines      *counter `json:"lines"`
	Functions  *counter `json:"functions"`
	Branches   *counter `json:"branches"`
}

type counter struct {
	Total   *int `json:"total"`
	Covered *int `json:"covered"`
}

// Parser reads json-summary files.
type Parser struct{}

// New creates a new json-summary parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads a json-summary coverage file and returns the totals.
func (p *Parser) Parse(path string) (domain.Counts, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from the resolver
	if err != nil {
		return nil, fmt.Errorf("open json-summary file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes a json-summary document from r.
func Parse(r io.Reader) (domain.Counts, error) {
	var s summary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode json-summary: %w", err)
	}
	if s.Total == nil {
		return nil, fmt.Errorf("json-summary: missing \"total\" entry")
	}

	fields := []struct {
		metric domain.MetricType
		name   string
		c      *counter
	}{
		{domain.MetricStatements, "statements", s.Total.Statements},
		{domain.MetricLines, "lines", s.Total.Lines},
		{domain.MetricMethods, "functions", s.Total.Functions},
		{domain.MetricBranches, "branches", s.Total.Branches},
	}

	counts := make(domain.Counts, len(fields))
	for _, f := range fields {
		if f.c == nil || f.c.Total == nil || f.c.Covered == nil {
			return nil, fmt.Errorf("json-summary: missing total.%s counters", f.name)
		}
		c := domain.Count{Total: *f.c.Total, Covered: *f.c.Covered}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("json-summary: total.%s: %w", f.name, err)
		}
		counts[f.metric] = c
	}
	return counts, nil
}
