// Package parsers dispatches coverage reports to the parser for their format.
package parsers

import (
	"fmt"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/parsers/clover"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/parsers/jsonsummary"
)

// Registry holds one parser per supported format.
type Registry struct {
	clover      *clover.Parser
	jsonSummary *jsonsummary.Parser
}

// NewRegistry creates a registry with all supported parsers.
func NewRegistry() *Registry {
	return &Registry{
		clover:      clover.New(),
		jsonSummary: jsonsummary.New(),
	}
}

// Parse reads path with the parser for format. FormatAuto is resolved from
// the file extension first.
func (r *Registry) Parse(path string, format application.Format) (domain.Counts, error) {
	format, err := application.ResolveFormat(path, format)
	if err != nil {
		return nil, err
	}

	switch format {
	case application.FormatClover:
		return r.clover.Parse(path)
	case application.FormatJSONSummary:
		return r.jsonSummary.Parse(path)
	default:
		return nil, fmt.Errorf("%w %q: supported values are auto, clover, json-summary", application.ErrInvalidFormat, format)
	}
}

// SupportedFormats returns the explicit formats the registry can parse.
func (r *Registry) SupportedFormats() []application.Format {
	return []application.Format{application.FormatClover, application.FormatJSONSummary}
}
