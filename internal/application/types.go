package application

import (
	"context"
	"errors"
	"io"

	"github.com/felixgeelhaar/coverstatus/internal/domain"
)

// OutputFormat selects how a report summary is written.
type OutputFormat string

const (
	OutputText  OutputFormat = "text"
	OutputJSON  OutputFormat = "json"
	OutputBrief OutputFormat = "brief"
)

// Format represents a coverage report format.
type Format string

const (
	// FormatAuto guesses the format from the file extension.
	FormatAuto Format = "auto"
	// FormatClover is the Clover XML format.
	FormatClover Format = "clover"
	// FormatJSONSummary is the istanbul json-summary format.
	FormatJSONSummary Format = "json-summary"
)

// CommentMode controls how an earlier coverage comment is treated.
type CommentMode string

const (
	// CommentReplace deletes earlier coverage comments and posts a new one.
	CommentReplace CommentMode = "replace"
	// CommentUpdate edits the earlier coverage comment in place.
	CommentUpdate CommentMode = "update"
	// CommentInsert always posts a new comment.
	CommentInsert CommentMode = "insert"
)

// Provider represents a git hosting provider.
type Provider string

const (
	// ProviderAuto detects the provider from the CI environment.
	ProviderAuto Provider = "auto"
	// ProviderGitHub is GitHub.com or GitHub Enterprise.
	ProviderGitHub Provider = "github"
	// ProviderGitLab is GitLab.com or self-managed GitLab.
	ProviderGitLab Provider = "gitlab"
	// ProviderBitbucket is Bitbucket Cloud.
	ProviderBitbucket Provider = "bitbucket"
)

var (
	ErrInvalidFormat      = errors.New("invalid option coverage_format")
	ErrCannotGuessFormat  = errors.New("cannot guess format")
	ErrInvalidCommentMode = errors.New("invalid option comment_mode")
	ErrInvalidProvider    = errors.New("invalid option provider")
	ErrMissingInput       = errors.New("missing required input")
	ErrNotPullRequest     = errors.New("not a pull request")
	ErrCoverageTooLow     = errors.New("coverage below alert threshold")
)

// Config represents validated, application-ready configuration.
type Config struct {
	CoveragePath   string
	Format         Format
	WorkingDir     string
	Threshold      domain.Threshold
	Check          bool
	StatusContext  string
	Comment        bool
	CommentContext string
	CommentMode    CommentMode
	Provider       Provider
	APIURL         string
	Credentials    Credentials
	DryRun         bool
	LogLevel       string
}

// Credentials carries the host API credentials. Only the ones for the
// selected provider are required.
type Credentials struct {
	GitHubToken          string
	GitLabToken          string
	BitbucketUsername    string
	BitbucketAppPassword string
}

// Repository identifies a repository on a host.
// For GitLab, Owner holds the full namespace path.
type Repository struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is the pull/merge request a run reports on.
type PullRequest struct {
	Repo    Repository
	Number  int
	HeadSHA string
	URL     string
}

// Comment is a pull-request comment as returned by a host.
type Comment struct {
	ID   int64
	Body string
	URL  string
}

// CoverageParser reads a coverage report into raw counts.
type CoverageParser interface {
	Parse(path string, format Format) (domain.Counts, error)
}

// PathResolver turns the configured coverage path into a single file path.
type PathResolver interface {
	Resolve(pattern, workingDir string) (string, error)
}

// CommentRenderer renders the pull-request comment body.
type CommentRenderer interface {
	// Render returns the full comment body including the hidden header.
	Render(metrics domain.MetricCollection, result domain.Result, label string) string
	// Matches reports whether body was rendered for the given label.
	Matches(body, label string) bool
}

// Reporter writes a human-readable summary of a report.
type Reporter interface {
	Write(w io.Writer, report domain.Report, format OutputFormat) error
}

// HostClient provides commit status and comment operations for a git host.
type HostClient interface {
	// Provider returns the provider type.
	Provider() Provider
	// CreateStatus sets a commit status on sha.
	CreateStatus(ctx context.Context, repo Repository, sha string, status domain.CommitStatus) error
	// ListComments returns every comment of a pull request.
	ListComments(ctx context.Context, repo Repository, number int) ([]Comment, error)
	// CreateComment posts a new comment.
	CreateComment(ctx context.Context, repo Repository, number int, body string) (Comment, error)
	// UpdateComment replaces the body of an existing comment.
	UpdateComment(ctx context.Context, repo Repository, number int, id int64, body string) error
	// DeleteComment removes an existing comment.
	DeleteComment(ctx context.Context, repo Repository, number int, id int64) error
}

// PullRequestSource discovers the pull request of the current CI run.
// It returns ErrNotPullRequest when the run was not triggered by one.
type PullRequestSource interface {
	PullRequest() (PullRequest, error)
}

// HostFactory builds the client and pull-request source for a provider.
type HostFactory func(provider Provider, cfg Config) (HostClient, PullRequestSource, error)

// FileWatcher provides file change notifications.
type FileWatcher interface {
	WatchFile(path string) error
	Events(ctx context.Context) <-chan struct{}
	Close() error
}

// WatchCallback is invoked after every evaluation in watch mode.
type WatchCallback func(runNumber int, err error)

// PublishResult describes what a publish run did.
type PublishResult struct {
	Report      domain.Report
	Status      *domain.CommitStatus
	CommentBody string
	CommentID   int64
	CommentURL  string
	Deleted     int
	Skipped     bool
}
