// Package bitbucket provides a Bitbucket Cloud API client for build statuses and PR comments.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second
)

const (
	// DefaultAPIURL is the default Bitbucket API endpoint
	DefaultAPIURL = "https://api.bitbucket.org/2.0"

	maxKeyLength = 40
	pageLen      = 100
)

// Client implements application.HostClient for the Bitbucket Cloud API.
type Client struct {
	httpClient  *http.Client
	apiURL      string
	username    string
	appPassword string
	limiter     *rate.Limiter
}

// Provider returns the provider type.
func (c *Client) Provider() application.Provider {
	return application.ProviderBitbucket
}

// NewClient creates a new Bitbucket client.
// Credentials are read from BITBUCKET_USERNAME and BITBUCKET_APP_PASSWORD environment variables if not provided.
func NewClient(username, appPassword, apiURL string) *Client {
	return NewClientWithHTTP(username, appPassword, &http.Client{Timeout: DefaultHTTPTimeout}, apiURL)
}

// NewClientWithHTTP creates a client with a custom HTTP client (for testing).
func NewClientWithHTTP(username, appPassword string, httpClient *http.Client, apiURL string) *Client {
	if username == "" {
		username = os.Getenv("BITBUCKET_USERNAME")
	}
	if appPassword == "" {
		appPassword = os.Getenv("BITBUCKET_APP_PASSWORD")
		if appPassword == "" {
			// Also check BITBUCKET_TOKEN for compatibility
			appPassword = os.Getenv("BITBUCKET_TOKEN")
		}
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient:  httpClient,
		apiURL:      apiURL,
		username:    username,
		appPassword: appPassword,
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// WithLimiter replaces the request limiter. A nil limiter disables pacing.
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// comment represents a Bitbucket PR comment.
type comment struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	Links struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"links"`
}

// commentList represents the paginated response from Bitbucket.
type commentList struct {
	Values []comment `json:"values"`
	Next   string    `json:"next"`
}

type commentRequest struct {
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
}

type statusRequest struct {
	State       string `json:"state"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description"`
}

func newCommentRequest(body string) commentRequest {
	var req commentRequest
	req.Content.Raw = body
	return req
}

func (c comment) toComment() application.Comment {
	return application.Comment{ID: c.ID, Body: c.Content.Raw, URL: c.Links.HTML.Href}
}

// StatusKey derives the build status key from a context label.
// Keys are limited to 40 characters.
func StatusKey(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(b.String(), "-")
	if len(key) > maxKeyLength {
		key = strings.TrimSuffix(key[:maxKeyLength], "-")
	}
	if key == "" {
		key = "coverage"
	}
	return key
}

// CreateStatus sets a build status on sha.
func (c *Client) CreateStatus(ctx context.Context, repo application.Repository, sha string, status domain.CommitStatus) error {
	url := fmt.Sprintf("%s/repositories/%s/%s/commit/%s/statuses/build", c.apiURL, repo.Owner, repo.Name, sha)
	state := "SUCCESSFUL"
	if status.State == domain.StateFailure {
		state = "FAILED"
	}
	payload := statusRequest{
		State:       state,
		Key:         StatusKey(status.Context),
		Name:        status.Context,
		URL:         status.TargetURL,
		Description: status.Description,
	}
	return c.do(ctx, http.MethodPost, url, payload, nil, http.StatusOK, http.StatusCreated)
}

// ListComments returns every live comment of a PR, following the "next" links.
func (c *Client) ListComments(ctx context.Context, repo application.Repository, number int) ([]application.Comment, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/comments?pagelen=%d", c.apiURL, repo.Owner, repo.Name, number, pageLen)

	var out []application.Comment
	for url != "" {
		var page commentList
		if err := c.do(ctx, http.MethodGet, url, nil, &page, http.StatusOK); err != nil {
			return nil, err
		}
		for _, cm := range page.Values {
			if cm.Deleted {
				continue
			}
			out = append(out, cm.toComment())
		}
		url = page.Next
	}
	return out, nil
}

// CreateComment creates a new comment on a PR.
func (c *Client) CreateComment(ctx context.Context, repo application.Repository, number int, body string) (application.Comment, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/comments", c.apiURL, repo.Owner, repo.Name, number)

	var created comment
	if err := c.do(ctx, http.MethodPost, url, newCommentRequest(body), &created, http.StatusCreated); err != nil {
		return application.Comment{}, err
	}
	return created.toComment(), nil
}

// UpdateComment updates an existing comment.
func (c *Client) UpdateComment(ctx context.Context, repo application.Repository, number int, id int64, body string) error {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/comments/%d", c.apiURL, repo.Owner, repo.Name, number, id)
	return c.do(ctx, http.MethodPut, url, newCommentRequest(body), nil, http.StatusOK)
}

// DeleteComment deletes an existing comment.
func (c *Client) DeleteComment(ctx context.Context, repo application.Repository, number int, id int64) error {
	url := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d/comments/%d", c.apiURL, repo.Owner, repo.Name, number, id)
	return c.do(ctx, http.MethodDelete, url, nil, nil, http.StatusNoContent, http.StatusOK)
}

// do sends one API request and accepts any of the wanted status codes.
func (c *Client) do(ctx context.Context, method, url string, payload any, out any, want ...int) error {
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
		return fmt.Errorf("bitbucket API error: %s - %s", resp.Status, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// setHeaders sets common headers for Bitbucket API requests.
func (c *Client) setHeaders(req *http.Request) {
	if c.username != "" && c.appPassword != "" {
		req.SetBasicAuth(c.username, c.appPassword)
		return
	}
	if c.appPassword != "" {
		req.Header.Set("Authorization", "Bearer "+c.appPassword)
	}
}
