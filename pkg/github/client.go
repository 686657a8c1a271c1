// Package github enriches aggregated activity with pull-request context
// from the GitHub API. The whole package is optional: enrichment only runs
// when enabled in config, and any failure degrades to a diagnostic on the
// affected project rather than failing the run.
package github

import (
	"context"
	"log/slog"
	"os"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/config"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

// AuthMethod selects how the client authenticates.
type AuthMethod string

// Supported auth methods.
const (
	AuthToken AuthMethod = "token"
	AuthOAuth AuthMethod = "oauth"
	AuthNone  AuthMethod = "none"
)

// prPageSize bounds the PR listing per repository. Enrichment only wants
// PRs updated inside a single window, which the updated-descending sort
// surfaces on the first page.
const prPageSize = 50

// Client wraps the GitHub REST API for pull-request lookup.
type Client struct {
	client  *gh.Client
	verbose bool
	logger  *slog.Logger
}

// NewClient creates a GitHub client based on the provided configuration.
//
// Token resolution order:
//  1. DAYBOOK_GITHUB_TOKEN environment variable
//  2. GITHUB_TOKEN environment variable
//  3. Token from config file (github.token)
//  4. Cached OAuth token (keychain or file), for the oauth method
//  5. OAuth device flow, for the oauth method
func NewClient(cfg *config.GitHubConfig, verbose bool) (*Client, error) {
	if cfg == nil {
		return nil, dberrors.NewGitHubError("NewClient", "github config is required")
	}

	token := os.Getenv("DAYBOOK_GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		token = cfg.Token
	}

	switch AuthMethod(cfg.AuthMethod) {
	case AuthToken, "":
		if token == "" {
			return nil, dberrors.NewGitHubError("NewClient",
				"token auth requires DAYBOOK_GITHUB_TOKEN, GITHUB_TOKEN env var, or github.token in config")
		}
		return newTokenClient(token, verbose), nil

	case AuthOAuth:
		// An explicit token still wins over the device flow.
		if token != "" {
			return newTokenClient(token, verbose), nil
		}
		return newOAuthClient(verbose)

	case AuthNone:
		return nil, dberrors.NewGitHubError("NewClient", "github enrichment is enabled but auth_method is none")

	default:
		return nil, dberrors.NewGitHubError("NewClient", "unknown auth method: "+cfg.AuthMethod)
	}
}

func newTokenClient(token string, verbose bool) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{
		client:  gh.NewClient(tc),
		verbose: verbose,
		logger:  slog.Default(),
	}
}

// newOAuthClient creates a client using OAuth device flow with token caching.
func newOAuthClient(verbose bool) (*Client, error) {
	cache := NewTokenCache()

	cachedToken, err := cache.Get()
	if err != nil && verbose {
		slog.Debug("failed to read cached token", "error", err)
	}

	if cachedToken != nil && cachedToken.Valid() {
		if verbose {
			slog.Debug("using cached OAuth token")
		}
		return newTokenClient(cachedToken.AccessToken, verbose), nil
	}

	apiToken, err := DeviceAuth(context.Background(), OAuthConfig{}, os.Stdout)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken: apiToken.Token,
		TokenType:   apiToken.Type,
	}

	if cacheErr := cache.Set(token); cacheErr != nil {
		// Auth succeeded; a cache failure only costs a re-prompt next run.
		if verbose {
			slog.Debug("failed to cache token", "error", cacheErr)
		}
	}

	return newTokenClient(token.AccessToken, verbose), nil
}

// IsAuthenticated checks if the client can reach the API as a user.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	_, _, err := c.client.Users.Get(ctx, "")
	return err == nil
}

// PullRequestsUpdatedWithin lists pull requests on owner/repo whose last
// update falls inside window, newest first.
func (c *Client) PullRequestsUpdatedWithin(ctx context.Context, owner, repo string, window activity.Window) ([]activity.PullRequestRecord, error) {
	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: prPageSize},
	}

	prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return nil, toGitHubError("ListPullRequests", resp, err)
	}

	var records []activity.PullRequestRecord
	for _, pr := range prs {
		updated := pr.GetUpdatedAt().Time
		if updated.Before(window.Start) {
			// Sorted by update time descending; everything after this is
			// older still.
			break
		}
		if !window.Contains(updated) {
			continue
		}
		records = append(records, activity.PullRequestRecord{
			Number:    pr.GetNumber(),
			Title:     pr.GetTitle(),
			State:     prState(pr),
			URL:       pr.GetHTMLURL(),
			UpdatedAt: updated.UTC(),
		})
	}

	return records, nil
}

// prState folds the merged flag into the state string, since the list API
// reports merged PRs as closed.
func prState(pr *gh.PullRequest) string {
	if pr.GetMerged() || pr.MergedAt != nil {
		return "merged"
	}
	return pr.GetState()
}

// toGitHubError converts a go-github error into a typed error carrying the
// HTTP status.
func toGitHubError(operation string, resp *gh.Response, err error) error {
	if resp != nil {
		return dberrors.NewGitHubErrorWithStatus(operation, resp.StatusCode, err.Error())
	}
	return dberrors.NewGitHubErrorWithCause(operation, "request failed", err)
}
