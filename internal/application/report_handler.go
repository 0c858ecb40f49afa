package application

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

// Evaluate resolves, parses and classifies the configured coverage report.
func (s *Service) Evaluate(ctx context.Context, cfg Config) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}
	if cfg.CoveragePath == "" {
		return domain.Report{}, fmt.Errorf("%w: coverage_path", ErrMissingInput)
	}

	path, err := s.Paths.Resolve(cfg.CoveragePath, cfg.WorkingDir)
	if err != nil {
		return domain.Report{}, fmt.Errorf("resolve coverage path: %w", err)
	}
	format, err := ResolveFormat(path, cfg.Format)
	if err != nil {
		return domain.Report{}, err
	}

	s.logger().Debug("parsing coverage report", "path", path, "format", string(format))
	counts, err := s.Parser.Parse(path, format)
	if err != nil {
		return domain.Report{}, fmt.Errorf("parse coverage report: %w", err)
	}

	report := domain.NewReport(domain.NewMetricCollection(counts), cfg.Threshold)
	result := report.Result()
	s.logger().Info("coverage evaluated",
		"metric", string(result.Metric),
		"rate", domain.FormatPercent(result.Rate),
		"level", string(result.Level),
	)
	return report, nil
}

// Report evaluates the coverage report and writes a summary to Out.
func (s *Service) Report(ctx context.Context, cfg Config, output OutputFormat) (domain.Report, error) {
	report, err := s.Evaluate(ctx, cfg)
	if err != nil {
		return domain.Report{}, err
	}
	if err := s.Reporter.Write(s.out(), report, output); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

// Check reports like Report and fails when the threshold metric is below the alert bound.
func (s *Service) Check(ctx context.Context, cfg Config, output OutputFormat) error {
	report, err := s.Report(ctx, cfg, output)
	if err != nil {
		return err
	}
	result := report.Result()
	if result.IsFailing() {
		return fmt.Errorf("%w: %s %s < %s", ErrCoverageTooLow, result.Metric,
			domain.FormatPercent(result.Rate), domain.FormatPercent(cfg.Threshold.Alert))
	}
	return nil
}

// RenderComment returns the comment body without contacting a host.
func (s *Service) RenderComment(ctx context.Context, cfg Config) (string, error) {
	report, err := s.Evaluate(ctx, cfg)
	if err != nil {
		return "", err
	}
	return s.Renderer.Render(report.Metrics(), report.Result(), cfg.CommentContext), nil
}
