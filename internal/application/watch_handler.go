package application

import (
	"context"
	"fmt"
)

// Watch evaluates the coverage report and re-evaluates it whenever the file changes.
func (s *Service) Watch(ctx context.Context, cfg Config, output OutputFormat, watcher FileWatcher, callback WatchCallback) error {
	path, err := s.Paths.Resolve(cfg.CoveragePath, cfg.WorkingDir)
	if err != nil {
		return fmt.Errorf("resolve coverage path: %w", err)
	}
	if err := watcher.WatchFile(path); err != nil {
		return fmt.Errorf("failed to watch coverage file: %w", err)
	}

	runNumber := 1
	_, runErr := s.Report(ctx, cfg, output)
	if callback != nil {
		callback(runNumber, runErr)
	}

	events := watcher.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			runNumber++
			_, runErr := s.Report(ctx, cfg, output)
			if callback != nil {
				callback(runNumber, runErr)
			}
		}
	}
}
