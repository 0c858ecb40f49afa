package bitbucket

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/coverstatus/internal/application"
)

// EnvSource reads the pull request from Bitbucket Pipelines variables.
type EnvSource struct {
	Getenv func(string) string
}

// NewEnvSource creates a source backed by the process environment.
func NewEnvSource() *EnvSource {
	return &EnvSource{Getenv: os.Getenv}
}

// PullRequest implements application.PullRequestSource.
func (s *EnvSource) PullRequest() (application.PullRequest, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	rawID := getenv("BITBUCKET_PR_ID")
	if rawID == "" {
		return application.PullRequest{}, fmt.Errorf("%w: BITBUCKET_PR_ID is not set", application.ErrNotPullRequest)
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return application.PullRequest{}, fmt.Errorf("invalid BITBUCKET_PR_ID %q: %w", rawID, err)
	}

	workspace := getenv("BITBUCKET_WORKSPACE")
	slug := getenv("BITBUCKET_REPO_SLUG")
	if workspace == "" || slug == "" {
		return application.PullRequest{}, fmt.Errorf("BITBUCKET_WORKSPACE and BITBUCKET_REPO_SLUG must be set")
	}

	sha := getenv("BITBUCKET_COMMIT")
	if sha == "" {
		return application.PullRequest{}, fmt.Errorf("%w: BITBUCKET_COMMIT is not set", application.ErrNotPullRequest)
	}

	origin := getenv("BITBUCKET_GIT_HTTP_ORIGIN")
	if origin == "" {
		origin = fmt.Sprintf("https://bitbucket.org/%s/%s", workspace, slug)
	}

	return application.PullRequest{
		Repo:    application.Repository{Owner: workspace, Name: slug},
		Number:  id,
		HeadSHA: sha,
		URL:     fmt.Sprintf("%s/pull-requests/%d", strings.TrimSuffix(origin, "/"), id),
	}, nil
}
