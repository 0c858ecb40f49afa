package github

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/coverstatus/internal/application"
)

func writeEvent(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envFunc(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestEventSource_PullRequest(t *testing.T) {
	path := writeEvent(t, `{
		"action": "synchronize",
		"number": 7,
		"pull_request": {
			"number": 7,
			"html_url": "https://github.com/acme/widgets/pull/7",
			"head": {"sha": "abc123", "ref": "feature"}
		},
		"repository": {"name": "widgets", "owner": {"login": "acme"}}
	}`)

	pr, err := (&EventSource{Getenv: envFunc(map[string]string{"GITHUB_EVENT_PATH": path})}).PullRequest()

	require.NoError(t, err)
	assert.Equal(t, application.PullRequest{
		Repo:    application.Repository{Owner: "acme", Name: "widgets"},
		Number:  7,
		HeadSHA: "abc123",
		URL:     "https://github.com/acme/widgets/pull/7",
	}, pr)
}

func TestEventSource_RepositoryFallback(t *testing.T) {
	path := writeEvent(t, `{"pull_request": {"number": 3, "head": {"sha": "def"}}}`)

	pr, err := (&EventSource{Getenv: envFunc(map[string]string{
		"GITHUB_EVENT_PATH": path,
		"GITHUB_REPOSITORY": "octo/cat",
	})}).PullRequest()

	require.NoError(t, err)
	assert.Equal(t, "octo/cat", pr.Repo.FullName())
}

func TestEventSource_NotPullRequest(t *testing.T) {
	tests := []struct {
		name string
		env  func(t *testing.T) map[string]string
	}{
		{"no event path", func(t *testing.T) map[string]string { return map[string]string{} }},
		{"push event", func(t *testing.T) map[string]string {
			return map[string]string{
				"GITHUB_EVENT_PATH": writeEvent(t, `{"ref": "refs/heads/main", "repository": {"name": "w", "owner": {"login": "a"}}}`),
				"GITHUB_EVENT_NAME": "push",
			}
		}},
		{"missing head sha", func(t *testing.T) map[string]string {
			return map[string]string{"GITHUB_EVENT_PATH": writeEvent(t, `{"pull_request": {"number": 1}}`)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&EventSource{Getenv: envFunc(tt.env(t))}).PullRequest()
			assert.True(t, errors.Is(err, application.ErrNotPullRequest), "got %v", err)
		})
	}
}

func TestEventSource_Malformed(t *testing.T) {
	path := writeEvent(t, `not json`)

	_, err := (&EventSource{Getenv: envFunc(map[string]string{"GITHUB_EVENT_PATH": path})}).PullRequest()

	require.Error(t, err)
	assert.False(t, errors.Is(err, application.ErrNotPullRequest))
	assert.Contains(t, err.Error(), "decode event payload")
}
