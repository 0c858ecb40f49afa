// Package resolver turns the configured coverage path into a single report file.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrEmptyPath is returned when no coverage path is configured.
	ErrEmptyPath = errors.New("empty path")
	// ErrNullBytes is returned for paths containing NUL bytes.
	ErrNullBytes = errors.New("path contains null bytes")
	// ErrNoMatch is returned when a glob pattern matches no file.
	ErrNoMatch = errors.New("no file matches pattern")
	// ErrAmbiguous is returned when a glob pattern matches more than one file.
	ErrAmbiguous = errors.New("pattern matches more than one file")
)

// GlobResolver resolves plain paths and doublestar patterns such as
// "packages/*/coverage/clover.xml" relative to a working directory.
type GlobResolver struct{}

// NewGlobResolver creates a new resolver.
func NewGlobResolver() *GlobResolver {
	return &GlobResolver{}
}

// Resolve returns the file path for pattern. Relative patterns are evaluated
// in workingDir, or in the current directory when workingDir is empty.
// A pattern must match exactly one regular file.
func (r *GlobResolver) Resolve(pattern, workingDir string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(pattern, "\x00") || strings.Contains(workingDir, "\x00") {
		return "", ErrNullBytes
	}

	base := workingDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		base = wd
	}

	if !hasMeta(pattern) {
		path := pattern
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		return cleanPath(path), nil
	}

	matches, err := r.glob(pattern, base)
	if err != nil {
		return "", fmt.Errorf("evaluate pattern %s: %w", pattern, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w %s in %s", ErrNoMatch, pattern, base)
	case 1:
		return cleanPath(matches[0]), nil
	default:
		return "", fmt.Errorf("%w: %s matched %s", ErrAmbiguous, pattern, strings.Join(matches, ", "))
	}
}

func (r *GlobResolver) glob(pattern, base string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}

	rel := strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	matches, err := doublestar.Glob(os.DirFS(base), rel, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(base, filepath.FromSlash(m))
	}
	return out, nil
}

// cleanPath resolves symlinks when the path exists so that the parser reads
// the real file. Missing paths are returned cleaned and fail on open.
func cleanPath(path string) string {
	cleaned := filepath.Clean(path)
	if real, err := filepath.EvalSymlinks(cleaned); err == nil {
		return real
	}
	return cleaned
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
