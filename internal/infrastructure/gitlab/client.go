// Package gitlab provides a GitLab API client for commit statuses and MR notes.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

const (
	// DefaultAPIURL is the default GitLab API endpoint
	DefaultAPIURL = "https://gitlab.com/api/v4"
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	perPage = 100
)

// Client implements application.HostClient for the GitLab REST API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	jobToken   bool
	limiter    *rate.Limiter
}

// Provider returns the provider type.
func (c *Client) Provider() application.Provider {
	return application.ProviderGitLab
}

// NewClient creates a new GitLab client.
// Token is read from GITLAB_TOKEN or CI_JOB_TOKEN environment variable if not provided.
func NewClient(token, apiURL string) *Client {
	return NewClientWithHTTP(token, &http.Client{Timeout: DefaultHTTPTimeout}, apiURL)
}

// NewClientWithHTTP creates a client with a custom HTTP client (for testing).
func NewClientWithHTTP(token string, httpClient *http.Client, apiURL string) *Client {
	jobToken := false
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
		if token == "" {
			token = os.Getenv("CI_JOB_TOKEN")
			jobToken = token != ""
		}
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		token:      token,
		jobToken:   jobToken,
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// WithLimiter replaces the request limiter. A nil limiter disables pacing.
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// note represents a GitLab MR note (comment).
type note struct {
	ID     int64  `json:"id"`
	Body   string `json:"body"`
	System bool   `json:"system"`
}

type statusRequest struct {
	State       string `json:"state"`
	Name        string `json:"name"`
	TargetURL   string `json:"target_url,omitempty"`
	Description string `json:"description"`
}

// projectPath returns the URL-encoded project path for API calls.
func projectPath(repo application.Repository) string {
	return url.PathEscape(repo.FullName())
}

// statusState maps a host-neutral state to a GitLab commit status state.
func statusState(s domain.StatusState) string {
	if s == domain.StateFailure {
		return "failed"
	}
	return "success"
}

// CreateStatus sets a commit status on sha.
func (c *Client) CreateStatus(ctx context.Context, repo application.Repository, sha string, status domain.CommitStatus) error {
	apiURL := fmt.Sprintf("%s/projects/%s/statuses/%s", c.apiURL, projectPath(repo), sha)
	payload := statusRequest{
		State:       statusState(status.State),
		Name:        status.Context,
		TargetURL:   status.TargetURL,
		Description: status.Description,
	}
	return c.do(ctx, http.MethodPost, apiURL, payload, nil, http.StatusCreated, http.StatusOK)
}

// ListComments returns every user note of a merge request, following pagination.
func (c *Client) ListComments(ctx context.Context, repo application.Repository, number int) ([]application.Comment, error) {
	var out []application.Comment
	for page := 1; ; page++ {
		apiURL := fmt.Sprintf("%s/projects/%s/merge_requests/%d/notes?per_page=%d&page=%d",
			c.apiURL, projectPath(repo), number, perPage, page)

		var notes []note
		if err := c.do(ctx, http.MethodGet, apiURL, nil, &notes, http.StatusOK); err != nil {
			return nil, err
		}
		for _, n := range notes {
			if n.System {
				continue
			}
			out = append(out, application.Comment{ID: n.ID, Body: n.Body})
		}
		if len(notes) < perPage {
			return out, nil
		}
	}
}

// CreateComment creates a new note on a MR.
func (c *Client) CreateComment(ctx context.Context, repo application.Repository, number int, body string) (application.Comment, error) {
	apiURL := fmt.Sprintf("%s/projects/%s/merge_requests/%d/notes", c.apiURL, projectPath(repo), number)

	var n note
	if err := c.do(ctx, http.MethodPost, apiURL, map[string]string{"body": body}, &n, http.StatusCreated); err != nil {
		return application.Comment{}, err
	}
	return application.Comment{ID: n.ID, Body: n.Body}, nil
}

// UpdateComment updates an existing note.
func (c *Client) UpdateComment(ctx context.Context, repo application.Repository, number int, id int64, body string) error {
	apiURL := fmt.Sprintf("%s/projects/%s/merge_requests/%d/notes/%d", c.apiURL, projectPath(repo), number, id)
	return c.do(ctx, http.MethodPut, apiURL, map[string]string{"body": body}, nil, http.StatusOK)
}

// DeleteComment deletes an existing note.
func (c *Client) DeleteComment(ctx context.Context, repo application.Repository, number int, id int64) error {
	apiURL := fmt.Sprintf("%s/projects/%s/merge_requests/%d/notes/%d", c.apiURL, projectPath(repo), number, id)
	return c.do(ctx, http.MethodDelete, apiURL, nil, nil, http.StatusNoContent, http.StatusOK)
}

// do sends one API request and accepts any of the wanted status codes.
func (c *Client) do(ctx context.Context, method, apiURL string, payload any, out any, want ...int) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if !slices.Contains(want, resp.StatusCode) {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitLab API error: %s - %s", resp.Status, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// setHeaders sets common headers for GitLab API requests.
func (c *Client) setHeaders(req *http.Request) {
	if c.token == "" {
		return
	}
	if c.jobToken {
		req.Header.Set("JOB-TOKEN", c.token)
		return
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
}
