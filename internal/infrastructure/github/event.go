package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/coverstatus/internal/application"
)

// pullRequestEvent is the subset of a pull_request webhook payload we read.
type pullRequestEvent struct {
	PullRequest *struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
		Head    struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

// EventSource reads the pull request from the GitHub Actions event payload.
type EventSource struct {
	Getenv func(string) string
}

// NewEventSource creates a source backed by the process environment.
func NewEventSource() *EventSource {
	return &EventSource{Getenv: os.Getenv}
}

// PullRequest implements application.PullRequestSource.
func (s *EventSource) PullRequest() (application.PullRequest, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return application.PullRequest{}, fmt.Errorf("%w: GITHUB_EVENT_PATH is not set", application.ErrNotPullRequest)
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is set by the runner
	if err != nil {
		return application.PullRequest{}, fmt.Errorf("read event payload: %w", err)
	}

	var event pullRequestEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return application.PullRequest{}, fmt.Errorf("decode event payload: %w", err)
	}
	if event.PullRequest == nil || event.PullRequest.Number == 0 || event.PullRequest.Head.SHA == "" {
		return application.PullRequest{}, fmt.Errorf("%w: event %q has no pull_request", application.ErrNotPullRequest, getenv("GITHUB_EVENT_NAME"))
	}

	repo := application.Repository{Owner: event.Repository.Owner.Login, Name: event.Repository.Name}
	if repo.Owner == "" || repo.Name == "" {
		owner, name, ok := strings.Cut(getenv("GITHUB_REPOSITORY"), "/")
		if !ok {
			return application.PullRequest{}, fmt.Errorf("event payload has no repository")
		}
		repo = application.Repository{Owner: owner, Name: name}
	}

	return application.PullRequest{
		Repo:    repo,
		Number:  event.PullRequest.Number,
		HeadSHA: event.PullRequest.Head.SHA,
		URL:     event.PullRequest.HTMLURL,
	}, nil
}
