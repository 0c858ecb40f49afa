// Package github provides a GitHub API client for commit statuses and PR comments.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

const (
	// DefaultAPIURL is the default GitHub API endpoint
	DefaultAPIURL = "https://api.github.com"
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	perPage = 100
)

// Client implements application.HostClient for the GitHub REST API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	limiter    *rate.Limiter
}

// Provider returns the provider type.
func (c *Client) Provider() application.Provider {
	return application.ProviderGitHub
}

// NewClient creates a new GitHub client.
// Token is read from GITHUB_TOKEN environment variable if not provided.
func NewClient(token, apiURL string) *Client {
	return NewClientWithHTTP(token, &http.Client{Timeout: DefaultHTTPTimeout}, apiURL)
}

// NewClientWithHTTP creates a client with a custom HTTP client (for testing).
func NewClientWithHTTP(token string, httpClient *http.Client, apiURL string) *Client {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// WithLimiter replaces the request limiter. A nil limiter disables pacing.
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// issueComment represents a GitHub issue/PR comment.
type issueComment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
}

type statusRequest struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url,omitempty"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// CreateStatus sets a commit status on sha.
func (c *Client) CreateStatus(ctx context.Context, repo application.Repository, sha string, status domain.CommitStatus) error {
	url := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.apiURL, repo.Owner, repo.Name, sha)
	payload := statusRequest{
		State:       string(status.State),
		TargetURL:   status.TargetURL,
		Description: status.Description,
		Context:     status.Context,
	}
	return c.do(ctx, http.MethodPost, url, payload, http.StatusCreated, nil)
}

// ListComments returns every comment of a pull request, following pagination.
func (c *Client) ListComments(ctx context.Context, repo application.Repository, number int) ([]application.Comment, error) {
	var out []application.Comment
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=%d&page=%d",
			c.apiURL, repo.Owner, repo.Name, number, perPage, page)

		var comments []issueComment
		if err := c.do(ctx, http.MethodGet, url, nil, http.StatusOK, &comments); err != nil {
			return nil, err
		}
		for _, comment := range comments {
			out = append(out, application.Comment{ID: comment.ID, Body: comment.Body, URL: comment.HTMLURL})
		}
		if len(comments) < perPage {
			return out, nil
		}
	}
}

// CreateComment creates a new comment on a PR.
func (c *Client) CreateComment(ctx context.Context, repo application.Repository, number int, body string) (application.Comment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, repo.Owner, repo.Name, number)

	var comment issueComment
	if err := c.do(ctx, http.MethodPost, url, map[string]string{"body": body}, http.StatusCreated, &comment); err != nil {
		return application.Comment{}, err
	}
	return application.Comment{ID: comment.ID, Body: comment.Body, URL: comment.HTMLURL}, nil
}

// UpdateComment updates an existing comment.
func (c *Client) UpdateComment(ctx context.Context, repo application.Repository, _ int, id int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, repo.Owner, repo.Name, id)
	return c.do(ctx, http.MethodPatch, url, map[string]string{"body": body}, http.StatusOK, nil)
}

// DeleteComment deletes an existing comment.
func (c *Client) DeleteComment(ctx context.Context, repo application.Repository, _ int, id int64) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.apiURL, repo.Owner, repo.Name, id)
	return c.do(ctx, http.MethodDelete, url, nil, http.StatusNoContent, nil)
}

// do sends one API request. payload is JSON-encoded when non-nil and the
// response is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, url string, payload any, want int, out any) error {
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

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error: %s - %s", resp.Status, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// setHeaders sets common headers for GitHub API requests.
func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
