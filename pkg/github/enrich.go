package github

import (
	"context"
	"fmt"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/git"
)

// prLister is the slice of Client that Enricher needs, split out so tests
// can substitute canned PR listings.
type prLister interface {
	PullRequestsUpdatedWithin(ctx context.Context, owner, repo string, window activity.Window) ([]activity.PullRequestRecord, error)
}

// Enricher attaches pull-request records to an aggregate after the fact.
type Enricher struct {
	lister  prLister
	runner  git.CommandRunner
	verbose bool
}

// NewEnricher creates an Enricher over client, using runner to resolve each
// repository's origin remote.
func NewEnricher(client *Client, runner git.CommandRunner, verbose bool) *Enricher {
	return &Enricher{lister: client, runner: runner, verbose: verbose}
}

// Enrich walks the aggregate's projects and attaches pull requests updated
// within the window. Projects without a GitHub origin are skipped. An API
// failure records a diagnostic on the project and moves on; enrichment
// never fails the aggregate.
func (e *Enricher) Enrich(ctx context.Context, doc *activity.WorkspaceActivity) {
	for i := range doc.Projects {
		p := &doc.Projects[i]
		if !p.HasVersionControl {
			continue
		}

		owner, repo, ok := ResolveOrigin(ctx, e.runner, p.Path)
		if !ok {
			continue
		}

		records, err := e.lister.PullRequestsUpdatedWithin(ctx, owner, repo, doc.Window)
		if err != nil {
			p.Diagnostics = append(p.Diagnostics, activity.Diagnostic{
				Kind:    activity.DiagGitHubFailure,
				Path:    p.Path,
				Message: fmt.Sprintf("%s/%s: %v", owner, repo, err),
			})
			continue
		}

		p.PullRequests = append(p.PullRequests, records...)
	}
}
