package application

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	supportedFormats      = []Format{FormatAuto, FormatClover, FormatJSONSummary}
	supportedCommentModes = []CommentMode{CommentReplace, CommentUpdate, CommentInsert}
	supportedProviders    = []Provider{ProviderAuto, ProviderGitHub, ProviderGitLab, ProviderBitbucket}
)

// ParseFormat validates a coverage_format value.
func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(value)))
	if f == "" {
		return FormatAuto, nil
	}
	for _, known := range supportedFormats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q: supported values are %s", ErrInvalidFormat, value, joinValues(supportedFormats))
}

// ResolveFormat turns FormatAuto into a concrete format using the file extension.
// Concrete formats are returned unchanged.
func ResolveFormat(path string, format Format) (Format, error) {
	if format != FormatAuto && format != "" {
		return format, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return FormatClover, nil
	case ".json":
		return FormatJSONSummary, nil
	default:
		return "", fmt.Errorf("%w of %s: use coverage_format %s or %s", ErrCannotGuessFormat, path, FormatClover, FormatJSONSummary)
	}
}

// ParseCommentMode validates a comment_mode value.
func ParseCommentMode(value string) (CommentMode, error) {
	m := CommentMode(strings.ToLower(strings.TrimSpace(value)))
	if m == "" {
		return CommentReplace, nil
	}
	for _, known := range supportedCommentModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q: supported values are %s", ErrInvalidCommentMode, value, joinValues(supportedCommentModes))
}

// ParseProvider validates a provider value.
func ParseProvider(value string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(value)))
	if p == "" {
		return ProviderAuto, nil
	}
	for _, known := range supportedProviders {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %q: supported values are %s", ErrInvalidProvider, value, joinValues(supportedProviders))
}

// DetectProvider picks the provider from well-known CI environment variables.
// GitHub is the fallback.
func DetectProvider(getenv func(string) string) Provider {
	switch {
	case getenv("GITHUB_ACTIONS") == "true":
		return ProviderGitHub
	case getenv("GITLAB_CI") != "":
		return ProviderGitLab
	case getenv("BITBUCKET_BUILD_NUMBER") != "":
		return ProviderBitbucket
	default:
		return ProviderGitHub
	}
}

// ParseBool coerces CI-style boolean inputs. Unknown values yield def.
func ParseBool(value string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	default:
		return def
	}
}

func joinValues[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
