package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/config"
	"thornfield.dev/daybook/pkg/discovery"
	"thornfield.dev/daybook/pkg/git"
	"thornfield.dev/daybook/pkg/github"
	"thornfield.dev/daybook/pkg/gitlog"
	"thornfield.dev/daybook/pkg/plans"
	"thornfield.dev/daybook/pkg/state"
)

// buildAggregator wires the configured collaborators into an aggregator.
func buildAggregator(cfg *config.Config) (*activity.Aggregator, error) {
	rules := cfg.Rules()
	engine := discovery.NewEngine(rules, cfg.Cache.Path, cfg.CacheTTL(), verbose)
	extractor := gitlog.NewExtractor(git.ExecRunner{}, cfg.Git.MaxCommitsPerRepo)
	reader := plans.NewReader(cfg.Plans.DirName, cfg.Plans.MaxBytes)

	agg := activity.NewAggregator(engine, extractor, reader)
	agg.Concurrency = cfg.Workspace.Concurrency
	agg.RepoTimeout = cfg.PerRepoTimeout()
	agg.Lookback = cfg.Lookback()

	if cfg.Fallback.Enabled {
		agg.Fallback = discovery.NewFallbackScanner(rules, cfg.Fallback.MaxFiles)
	}

	store, err := state.NewStore("")
	if err != nil {
		return nil, err
	}
	agg.Tracker = state.Tracker{Store: store}

	return agg, nil
}

// aggregate runs one collection pass over the configured workspace for the
// window the flags describe. Explicit windows do not advance the
// incremental cursor.
func aggregate(ctx context.Context, cfg *config.Config, flags *windowFlags) (*activity.WorkspaceActivity, *time.Location, error) {
	agg, err := buildAggregator(cfg)
	if err != nil {
		return nil, nil, err
	}

	window, explicit, err := flags.resolve(cfg, agg)
	if err != nil {
		return nil, nil, err
	}
	if explicit {
		agg.Tracker = nil
	}

	loc, err := activity.LoadLocation(cfg.Git.Timezone)
	if err != nil {
		return nil, nil, err
	}

	doc, err := agg.AggregateWindow(ctx, cfg.Workspace.Root, window, false)
	if err != nil {
		return nil, nil, err
	}

	enrichGitHub(ctx, cfg, &doc)

	return &doc, loc, nil
}

// enrichGitHub attaches pull-request activity when enrichment is enabled.
// A client that cannot be built degrades to a diagnostic, never a failure.
func enrichGitHub(ctx context.Context, cfg *config.Config, doc *activity.WorkspaceActivity) {
	if !cfg.GitHub.Enabled {
		return
	}

	client, err := github.NewClient(&cfg.GitHub, verbose)
	if err != nil {
		doc.Diagnostics = append(doc.Diagnostics, activity.Diagnostic{
			Kind:    activity.DiagGitHubFailure,
			Message: err.Error(),
		})
		if verbose {
			fmt.Fprintf(os.Stderr, "GitHub enrichment unavailable: %v\n", err)
		}
		return
	}

	github.NewEnricher(client, git.ExecRunner{}, verbose).Enrich(ctx, doc)
}
