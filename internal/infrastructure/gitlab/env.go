package gitlab

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/coverstatus/internal/application"
)

// EnvSource reads the merge request from GitLab CI predefined variables.
// Variables are only present in merge request pipelines.
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

	rawIID := getenv("CI_MERGE_REQUEST_IID")
	if rawIID == "" {
		return application.PullRequest{}, fmt.Errorf("%w: CI_MERGE_REQUEST_IID is not set", application.ErrNotPullRequest)
	}
	iid, err := strconv.Atoi(rawIID)
	if err != nil {
		return application.PullRequest{}, fmt.Errorf("invalid CI_MERGE_REQUEST_IID %q: %w", rawIID, err)
	}

	projectPath := getenv("CI_PROJECT_PATH")
	idx := strings.LastIndex(projectPath, "/")
	if idx <= 0 || idx == len(projectPath)-1 {
		return application.PullRequest{}, fmt.Errorf("invalid CI_PROJECT_PATH %q", projectPath)
	}

	sha := getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_SHA")
	if sha == "" {
		sha = getenv("CI_COMMIT_SHA")
	}
	if sha == "" {
		return application.PullRequest{}, fmt.Errorf("%w: CI_COMMIT_SHA is not set", application.ErrNotPullRequest)
	}

	projectURL := getenv("CI_MERGE_REQUEST_PROJECT_URL")
	if projectURL == "" {
		projectURL = getenv("CI_PROJECT_URL")
	}
	var mrURL string
	if projectURL != "" {
		mrURL = fmt.Sprintf("%s/-/merge_requests/%d", strings.TrimSuffix(projectURL, "/"), iid)
	}

	return application.PullRequest{
		Repo:    application.Repository{Owner: projectPath[:idx], Name: projectPath[idx+1:]},
		Number:  iid,
		HeadSHA: sha,
		URL:     mrURL,
	}, nil
}
