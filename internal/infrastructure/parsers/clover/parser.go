// Package clover implements a parser for the Clover XML coverage format.
//
// Clover XML is produced by:
//   - PHPUnit
//   - Jest, nyc and other istanbul reporters (--coverage-reporters=clover)
//   - OpenClover (Java)
//
// Only the project-level <metrics> element is read. Clover names its counters
// differently from this tool: "elements" are reported as statements and
// "statements" are reported as lines.
package clover

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

type coverage struct {
	XMLName  xml.Name  `xml:"coverage"`
	Projects []project `xml:"project"`
}

type project struct {
	Metrics []metrics `xml:"metrics"`
}

type metrics struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// attribute pairs per metric: total attribute, covered attribute.
var mapping = []struct {
	metric  domain.MetricType
	total   string
	covered string
}{
	{domain.MetricStatements, "elements", "coveredelements"},
	{domain.MetricLines, "statements", "coveredstatements"},
	{domain.MetricMethods, "methods", "coveredmethods"},
	{domain.MetricBranches, "conditionals", "coveredconditionals"},
}

// Parser reads Clover XML files.
type Parser struct{}

// New creates a new Clover parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads a Clover XML coverage file and returns the project totals.
func (p *Parser) Parse(path string) (domain.Counts, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from the resolver
	if err != nil {
		return nil, fmt.Errorf("open clover file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes Clover XML from r.
func Parse(r io.Reader) (domain.Counts, error) {
	var cov coverage
	if err := xml.NewDecoder(r).Decode(&cov); err != nil {
		return nil, fmt.Errorf("decode clover xml: %w", err)
	}
	if len(cov.Projects) == 0 {
		return nil, fmt.Errorf("decode clover xml: missing <project> element")
	}
	if len(cov.Projects[0].Metrics) == 0 {
		return nil, fmt.Errorf("decode clover xml: missing <metrics> element in <project>")
	}

	attrs := make(map[string]string, len(cov.Projects[0].Metrics[0].Attrs))
	for _, a := range cov.Projects[0].Metrics[0].Attrs {
		attrs[a.Name.Local] = a.Value
	}

	counts := make(domain.Counts, len(mapping))
	for _, m := range mapping {
		total, err := intAttr(attrs, m.total)
		if err != nil {
			return nil, err
		}
		covered, err := intAttr(attrs, m.covered)
		if err != nil {
			return nil, err
		}
		c := domain.Count{Total: total, Covered: covered}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("clover metrics: %s: %w", m.metric, err)
		}
		counts[m.metric] = c
	}
	return counts, nil
}

func intAttr(attrs map[string]string, name string) (int, error) {
	raw, ok := attrs[name]
	if !ok {
		return 0, fmt.Errorf("clover metrics: missing attribute %q", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("clover metrics: invalid attribute %s=%q: %w", name, raw, err)
	}
	return v, nil
}
