package github

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cli/oauth"
	"github.com/cli/oauth/api"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

const (
	// DefaultGitHubHost is the default GitHub API host.
	DefaultGitHubHost = "https://github.com"

	// DefaultClientID is the OAuth app used for the device flow when no
	// client ID is configured.
	DefaultClientID = "Ov23liJYJJ4t7JDJbook"

	// DefaultScopes are the OAuth scopes required for pull-request lookup.
	DefaultScopes = "repo"
)

// OAuthConfig holds OAuth configuration for device flow authentication.
type OAuthConfig struct {
	ClientID string   // OAuth app client ID
	Scopes   []string // OAuth scopes to request
	HostURL  string   // GitHub host URL (default: github.com)
}

// DeviceAuth performs OAuth device flow authentication. It displays a code
// for the user to enter at GitHub's verification URL, then polls until
// authorization completes.
func DeviceAuth(ctx context.Context, cfg OAuthConfig, stdout io.Writer) (*api.AccessToken, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	hostURL := cfg.HostURL
	if hostURL == "" {
		hostURL = DefaultGitHubHost
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScopes}
	}

	host, err := oauth.NewGitHubHost(hostURL)
	if err != nil {
		return nil, dberrors.NewGitHubErrorWithCause("DeviceAuth", "invalid GitHub host URL", err)
	}

	flow := &oauth.Flow{
		Host:     host,
		ClientID: clientID,
		Scopes:   scopes,
		Stdout:   stdout,
		Stdin:    os.Stdin,
		DisplayCode: func(code, verificationURL string) error {
			fmt.Fprintf(stdout, "\n! First, copy your one-time code: %s\n", code)
			fmt.Fprintf(stdout, "- Press Enter to open %s in your browser...\n", verificationURL)
			return nil
		},
	}

	// cli/oauth handles the polling loop.
	token, err := flow.DeviceFlow()
	if err != nil {
		return nil, dberrors.NewGitHubErrorWithCause("DeviceAuth", "device flow failed", err)
	}

	return token, nil
}
