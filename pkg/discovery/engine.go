package discovery

import (
	"fmt"
	"os"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/pathmatch"
)

// DefaultCacheTTL is how long a cached discovery result stands in for a
// fresh walk when the config does not override it.
const DefaultCacheTTL = 24 * time.Hour

// Engine orchestrates repository discovery and caching.
type Engine struct {
	Rules   *pathmatch.Rules
	Cache   *Cache
	TTL     time.Duration
	Verbose bool
}

// NewEngine creates a discovery engine. An empty cachePath disables
// caching; non-positive ttl falls back to the default.
func NewEngine(rules *pathmatch.Rules, cachePath string, ttl time.Duration, verbose bool) *Engine {
	e := &Engine{
		Rules:   rules,
		TTL:     ttl,
		Verbose: verbose,
	}
	if e.TTL <= 0 {
		e.TTL = DefaultCacheTTL
	}
	if cachePath != "" {
		e.Cache = NewCache(cachePath)
	}
	return e
}

// Repos returns the repository roots under root, served from cache when it
// is fresh for this root. Warnings accompany a fresh walk only; a cache
// hit has none.
func (e *Engine) Repos(root string, forceRefresh bool) ([]Repo, []activity.Diagnostic, error) {
	if !forceRefresh && e.Cache != nil {
		if err := e.Cache.Load(); err == nil && e.Cache.Fresh(root, e.TTL) {
			return e.Cache.Repos, nil, nil
		}
	}

	return e.Scan(root)
}

// Targets returns the discovered repositories as aggregation targets.
func (e *Engine) Targets(root string, forceRefresh bool) ([]activity.ProjectRef, []activity.Diagnostic, error) {
	repos, warnings, err := e.Repos(root, forceRefresh)
	if err != nil {
		return nil, nil, err
	}

	refs := make([]activity.ProjectRef, len(repos))
	for i, r := range repos {
		refs[i] = activity.ProjectRef{
			Name:              r.Name,
			Path:              r.Path,
			HasVersionControl: true,
		}
	}
	return refs, warnings, nil
}

// Scan performs a fresh walk and updates the cache.
func (e *Engine) Scan(root string) ([]Repo, []activity.Diagnostic, error) {
	result, err := NewScanner(e.Rules).Discover(root)
	if err != nil {
		return nil, nil, err
	}

	if e.Verbose {
		fmt.Fprintf(os.Stderr, "Discovered %d repositories under %s (%d directories in %s)\n",
			len(result.Repos), root, result.Scanned, result.Duration.Round(time.Millisecond))
	}

	if e.Cache != nil {
		e.Cache.Update(root, result.Repos)
		_ = e.Cache.Save() // Best effort save
	}

	return result.Repos, result.Warnings, nil
}
