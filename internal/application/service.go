package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sourcegraph/conc/pool"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

type Service struct {
	Parser   CoverageParser
	Paths    PathResolver
	Renderer CommentRenderer
	Reporter Reporter
	Hosts    HostFactory
	Getenv   func(string) string
	Logger   *slog.Logger
	Out      io.Writer
}

// Publish evaluates the coverage report and posts the commit status and the
// pull-request comment. A run that is not for a pull request is skipped.
func (s *Service) Publish(ctx context.Context, cfg Config) (PublishResult, error) {
	report, err := s.Evaluate(ctx, cfg)
	if err != nil {
		return PublishResult{}, err
	}
	res := PublishResult{Report: report}

	if s.Reporter != nil {
		if err := s.Reporter.Write(s.out(), report, OutputText); err != nil {
			return res, fmt.Errorf("write report: %w", err)
		}
	}

	if !cfg.Check && !cfg.Comment {
		s.logger().Info("status and comment are disabled")
		res.Skipped = true
		return res, nil
	}

	provider := cfg.Provider
	if provider == "" || provider == ProviderAuto {
		provider = DetectProvider(s.getenv())
	}
	if s.Hosts == nil {
		return res, fmt.Errorf("%s client not configured", provider)
	}
	client, source, err := s.Hosts(provider, cfg)
	if err != nil {
		return res, fmt.Errorf("configure %s client: %w", provider, err)
	}

	pr, err := source.PullRequest()
	if errors.Is(err, ErrNotPullRequest) {
		s.logger().Warn("not a pull request, skipping status and comment", "provider", string(provider))
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read pull request: %w", err)
	}

	result := report.Result()
	status := domain.NewCommitStatus(result, cfg.StatusContext, pr.URL)
	body := s.Renderer.Render(report.Metrics(), result, cfg.CommentContext)
	if cfg.Check {
		res.Status = &status
	}
	if cfg.Comment {
		res.CommentBody = body
	}

	if cfg.DryRun {
		s.logger().Info("dry run, nothing posted", "repo", pr.Repo.FullName(), "number", pr.Number)
		return res, nil
	}

	var outcome commentOutcome
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	if cfg.Check {
		p.Go(func(ctx context.Context) error {
			s.logger().Debug("creating commit status", "sha", pr.HeadSHA, "state", string(status.State))
			if err := client.CreateStatus(ctx, pr.Repo, pr.HeadSHA, status); err != nil {
				return fmt.Errorf("create status: %w", err)
			}
			return nil
		})
	}
	if cfg.Comment {
		p.Go(func(ctx context.Context) error {
			var err error
			outcome, err = s.upsertComment(ctx, client, pr, cfg.CommentMode, cfg.CommentContext, body)
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return res, err
	}

	res.CommentID = outcome.id
	res.CommentURL = outcome.url
	res.Deleted = outcome.deleted
	s.logger().Info("coverage published", "repo", pr.Repo.FullName(), "number", pr.Number)
	return res, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Service) out() io.Writer {
	if s.Out == nil {
		return io.Discard
	}
	return s.Out
}

func (s *Service) getenv() func(string) string {
	if s.Getenv == nil {
		return os.Getenv
	}
	return s.Getenv
}
