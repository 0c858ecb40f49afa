package cli

import (
	"fmt"

	"github.com/felixgeelhaar/coverstatus/internal/application"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/bitbucket"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/github"
	"github.com/felixgeelhaar/coverstatus/internal/infrastructure/gitlab"
)

// newHostFactory returns the application.HostFactory for the supported
// providers. Credentials are only required when something will be posted.
func newHostFactory(getenv func(string) string) application.HostFactory {
	return func(provider application.Provider, cfg application.Config) (application.HostClient, application.PullRequestSource, error) {
		creds := cfg.Credentials
		switch provider {
		case application.ProviderGitHub:
			if creds.GitHubToken == "" && !cfg.DryRun {
				return nil, nil, fmt.Errorf("%w: github_token", application.ErrMissingInput)
			}
			apiURL := cfg.APIURL
			if apiURL == "" {
				apiURL = getenv("GITHUB_API_URL")
			}
			return github.NewClient(creds.GitHubToken, apiURL), &github.EventSource{Getenv: getenv}, nil

		case application.ProviderGitLab:
			if creds.GitLabToken == "" && getenv("CI_JOB_TOKEN") == "" && !cfg.DryRun {
				return nil, nil, fmt.Errorf("%w: gitlab_token", application.ErrMissingInput)
			}
			apiURL := cfg.APIURL
			if apiURL == "" {
				apiURL = getenv("CI_API_V4_URL")
			}
			return gitlab.NewClient(creds.GitLabToken, apiURL), &gitlab.EnvSource{Getenv: getenv}, nil

		case application.ProviderBitbucket:
			if creds.BitbucketAppPassword == "" && getenv("BITBUCKET_TOKEN") == "" && !cfg.DryRun {
				return nil, nil, fmt.Errorf("%w: bitbucket_app_password", application.ErrMissingInput)
			}
			return bitbucket.NewClient(creds.BitbucketUsername, creds.BitbucketAppPassword, cfg.APIURL), &bitbucket.EnvSource{Getenv: getenv}, nil

		default:
			return nil, nil, fmt.Errorf("%w %q", application.ErrInvalidProvider, provider)
		}
	}
}
