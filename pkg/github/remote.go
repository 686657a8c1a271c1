package github

import (
	"context"
	"regexp"
	"strings"

	"thornfield.dev/daybook/pkg/git"
)

// Remote URL shapes that map onto a GitHub owner/repo pair.
var (
	sshURLRegex       = regexp.MustCompile(`^git@github\.com:([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+?)(?:\.git)?$`)
	httpsURLRegex     = regexp.MustCompile(`^https://github\.com/([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+?)(?:\.git)?$`)
	shorthandURLRegex = regexp.MustCompile(`^github\.com/([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+?)(?:\.git)?$`)
)

// ParseRemoteURL extracts owner and repo from a GitHub remote URL. Remotes
// pointing elsewhere (GitLab, internal hosts) return ok=false; they are not
// an error, just not enrichable.
func ParseRemoteURL(url string) (owner, repo string, ok bool) {
	url = strings.TrimSpace(url)

	for _, re := range []*regexp.Regexp{sshURLRegex, httpsURLRegex, shorthandURLRegex} {
		if m := re.FindStringSubmatch(url); len(m) == 3 {
			return m[1], m[2], true
		}
	}

	return "", "", false
}

// ResolveOrigin reads the repository's origin remote and parses it into an
// owner/repo pair. Repositories without an origin remote, or with one that
// does not point at GitHub, return ok=false.
func ResolveOrigin(ctx context.Context, runner git.CommandRunner, repoPath string) (owner, repo string, ok bool) {
	out, err := runner.Output(ctx, repoPath, "remote", "get-url", "origin")
	if err != nil {
		return "", "", false
	}
	return ParseRemoteURL(string(out))
}
