package bitbucket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

var repo = application.Repository{Owner: "acme", Name: "widgets"}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP("user", "secret", srv.Client(), srv.URL).WithLimiter(nil), srv
}

func TestClient_CreateStatus(t *testing.T) {
	var got statusRequest
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repositories/acme/widgets/commit/abc123/statuses/build", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})

	err := client.CreateStatus(context.Background(), repo, "abc123", domain.CommitStatus{
		State:       domain.StateFailure,
		Description: "Error: Too low lines coverage - 40%",
		TargetURL:   "https://bitbucket.org/acme/widgets/pull-requests/4",
		Context:     "Coverage Report",
	})

	require.NoError(t, err)
	assert.Equal(t, statusRequest{
		State:       "FAILED",
		Key:         "coverage-report",
		Name:        "Coverage Report",
		URL:         "https://bitbucket.org/acme/widgets/pull-requests/4",
		Description: "Error: Too low lines coverage - 40%",
	}, got)
}

func TestStatusKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Coverage Report", "coverage-report"},
		{"  unit / e2e  ", "unit-e2e"},
		{"", "coverage"},
		{"!!!", "coverage"},
		{strings.Repeat("a", 50), strings.Repeat("a", 40)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusKey(tt.in), "StatusKey(%q)", tt.in)
	}
}

func TestClient_ListComments_FollowsNext(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories/acme/widgets/pullrequests/4/comments", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"values": [{"id": 3, "content": {"raw": "three"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"values": [
				{"id": 1, "content": {"raw": "one"}, "links": {"html": {"href": "https://bitbucket.org/c/1"}}},
				{"id": 2, "deleted": true, "content": {"raw": ""}}
			],
			"next": "http://` + r.Host + `/repositories/acme/widgets/pullrequests/4/comments?page=2"
		}`))
	})

	comments, err := client.ListComments(context.Background(), repo, 4)

	require.NoError(t, err)
	assert.Equal(t, []application.Comment{
		{ID: 1, Body: "one", URL: "https://bitbucket.org/c/1"},
		{ID: 3, Body: "three"},
	}, comments)
}

func TestClient_CommentWrites(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	var bodies []string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var payload commentRequest
		if r.Body != nil && r.Method != http.MethodDelete {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		}
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		bodies = append(bodies, payload.Content.Raw)
		mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7, "content": {"raw": "hi"}, "links": {"html": {"href": "https://bitbucket.org/c/7"}}}`))
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"id": 7}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	created, err := client.CreateComment(context.Background(), repo, 4, "hi")
	require.NoError(t, err)
	assert.Equal(t, application.Comment{ID: 7, Body: "hi", URL: "https://bitbucket.org/c/7"}, created)
	require.NoError(t, client.UpdateComment(context.Background(), repo, 4, 7, "edited"))
	require.NoError(t, client.DeleteComment(context.Background(), repo, 4, 6))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /repositories/acme/widgets/pullrequests/4/comments",
		"PUT /repositories/acme/widgets/pullrequests/4/comments/7",
		"DELETE /repositories/acme/widgets/pullrequests/4/comments/6",
	}, calls)
	assert.Equal(t, []string{"hi", "edited", ""}, bodies)
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"error"}`))
	})

	_, err := client.ListComments(context.Background(), repo, 4)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitbucket API error: 404 Not Found")
}

func TestClient_BearerWithoutUsername(t *testing.T) {
	t.Setenv("BITBUCKET_USERNAME", "")
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"values": []}`))
	}))
	defer srv.Close()

	client := NewClientWithHTTP("", "token", srv.Client(), srv.URL).WithLimiter(nil)
	_, err := client.ListComments(context.Background(), repo, 1)

	require.NoError(t, err)
	assert.Equal(t, "Bearer token", auth)
	assert.Equal(t, application.ProviderBitbucket, client.Provider())
}
