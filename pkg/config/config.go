// Package config loads and validates the daybook configuration.
// Activity data is derived from the workspace itself; configuration only
// says where to look and how to report.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	dberrors "thornfield.dev/daybook/pkg/errors"
	"thornfield.dev/daybook/pkg/pathmatch"
)

// Config represents the application configuration.
type Config struct {
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	Git         GitConfig         `mapstructure:"git"`
	Plans       PlansConfig       `mapstructure:"plans"`
	Fallback    FallbackConfig    `mapstructure:"fallback"`
	Incremental IncrementalConfig `mapstructure:"incremental"`
	Output      OutputConfig      `mapstructure:"output"`
	AI          AIConfig          `mapstructure:"ai"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Daemon      DaemonConfig      `mapstructure:"daemon"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// WorkspaceConfig describes where repositories live and what to skip.
type WorkspaceConfig struct {
	Root            string   `mapstructure:"root"`             // Directory scanned for repositories
	ExcludeNames    []string `mapstructure:"exclude_names"`    // Directory names never descended into
	ExcludePatterns []string `mapstructure:"exclude_patterns"` // Glob patterns, matched against relative path and base name
	MaxDepth        int      `mapstructure:"max_depth"`        // Max traversal depth (default: 3)
	Concurrency     int      `mapstructure:"concurrency"`      // Parallel repository workers (0 = number of CPUs)
}

// GitConfig holds commit extraction configuration.
type GitConfig struct {
	MaxCommitsPerRepo int    `mapstructure:"max_commits_per_repo"` // 0 = unlimited; positive keeps the newest
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`      // Per-repository budget (default: 30)
	Timezone          string `mapstructure:"timezone"`             // Day boundary zone: "local", "utc", or IANA name
}

// PlansConfig holds plan artifact reading configuration.
type PlansConfig struct {
	DirName  string `mapstructure:"dir_name"`  // Plan directory under each repository root
	MaxBytes int64  `mapstructure:"max_bytes"` // Per-artifact content ceiling
}

// FallbackConfig controls the timestamp-based scan for directories
// without version control.
type FallbackConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxFiles int  `mapstructure:"max_files"` // Record cap per directory, newest kept
}

// IncrementalConfig controls window derivation when no explicit dates are
// given.
type IncrementalConfig struct {
	LookbackHours int `mapstructure:"lookback_hours"` // Window size when no prior run exists
}

// OutputConfig holds rendering destinations.
type OutputConfig struct {
	Dir string `mapstructure:"dir"` // Daily summaries and context blobs land here
}

// AIConfig holds AI provider configuration for the journal stage.
type AIConfig struct {
	Provider    string  `mapstructure:"provider"` // "anthropic", "gemini", "ollama", "openai"
	Model       string  `mapstructure:"model"`    // Empty means per-provider default
	Temperature float64 `mapstructure:"temperature"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"` // ANTHROPIC_API_KEY env var takes precedence
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`    // GEMINI_API_KEY env var takes precedence
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`    // OPENAI_API_KEY env var takes precedence
	OpenAIBaseURL   string `mapstructure:"openai_base_url"`   // OpenAI-compatible endpoint override
	OllamaHost      string `mapstructure:"ollama_host"`       // Default: http://localhost:11434
}

// GitHubConfig holds pull-request enrichment configuration.
type GitHubConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AuthMethod string `mapstructure:"auth_method"` // "token", "oauth", "none"
	Token      string `mapstructure:"token"`       // DAYBOOK_GITHUB_TOKEN env var takes precedence
}

// DaemonConfig holds the scheduled aggregation service configuration.
type DaemonConfig struct {
	Interval     time.Duration `mapstructure:"interval"`      // Poll interval (default: 1h, min 2s)
	Addr         string        `mapstructure:"addr"`          // HTTP listen address
	EventsBuffer int           `mapstructure:"events_buffer"` // Ring buffer capacity
	WatchPlans   bool          `mapstructure:"watch_plans"`   // fsnotify watch on plan directories
}

// CacheConfig holds discovery cache configuration.
type CacheConfig struct {
	Path     string `mapstructure:"path"`      // Cache file location
	TTLHours int    `mapstructure:"ttl_hours"` // Cache freshness bound
}

// SecurityWarning represents a configuration security issue
type SecurityWarning struct {
	Field   string
	Message string
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, dberrors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, dberrors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CheckSecurityWarnings returns warnings for insecure configuration
// practices. Call this when loading config to warn users about tokens
// stored in config files.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.GitHub.Token != "" && os.Getenv("DAYBOOK_GITHUB_TOKEN") == "" && os.Getenv("GITHUB_TOKEN") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "github.token",
			Message: "GitHub token is set in config file. For security, use the DAYBOOK_GITHUB_TOKEN or GITHUB_TOKEN environment variable instead.",
		})
	}

	if config.AI.AnthropicAPIKey != "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.anthropic_api_key",
			Message: "Anthropic API key is set in config file. For security, use the ANTHROPIC_API_KEY environment variable instead.",
		})
	}

	if config.AI.GeminiAPIKey != "" && os.Getenv("GEMINI_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.gemini_api_key",
			Message: "Gemini API key is set in config file. For security, use the GEMINI_API_KEY environment variable instead.",
		})
	}

	if config.AI.OpenAIAPIKey != "" && os.Getenv("OPENAI_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.openai_api_key",
			Message: "OpenAI API key is set in config file. For security, use the OPENAI_API_KEY environment variable instead.",
		})
	}

	return warnings
}

// ValidProviders is the list of supported AI providers.
var ValidProviders = []string{"anthropic", "gemini", "ollama", "openai"}

// ValidateProvider validates that an AI provider is supported.
// Returns nil for the empty string, which falls back to the default.
func ValidateProvider(provider string) error {
	if provider == "" {
		return nil
	}
	for _, valid := range ValidProviders {
		if provider == valid {
			return nil
		}
	}
	return dberrors.NewConfigError("ai.provider",
		fmt.Sprintf("invalid provider %q: must be one of: anthropic, gemini, ollama, openai", provider))
}

// ValidAuthMethods is the list of supported GitHub auth methods.
var ValidAuthMethods = []string{"token", "oauth", "none"}

// ValidateAuthMethod validates that a GitHub auth method is supported.
func ValidateAuthMethod(method string) error {
	if method == "" {
		return nil
	}
	for _, valid := range ValidAuthMethods {
		if method == valid {
			return nil
		}
	}
	return dberrors.NewConfigError("github.auth_method",
		fmt.Sprintf("invalid auth method %q: must be one of: token, oauth, none", method))
}

// ValidateTimezone validates a day-boundary zone: "local", "utc", or an
// IANA zone name.
func ValidateTimezone(name string) error {
	switch strings.ToLower(name) {
	case "", "local", "utc":
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return dberrors.NewConfigErrorWithCause("git.timezone",
			fmt.Sprintf("unknown timezone %q", name), err)
	}
	return nil
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateProvider(c.AI.Provider); err != nil {
		return err
	}
	if err := ValidateAuthMethod(c.GitHub.AuthMethod); err != nil {
		return err
	}
	if err := ValidateTimezone(c.Git.Timezone); err != nil {
		return err
	}
	if c.Workspace.MaxDepth < 0 {
		return dberrors.NewConfigError("workspace.max_depth", "must not be negative")
	}
	if c.Git.TimeoutSeconds < 0 {
		return dberrors.NewConfigError("git.timeout_seconds", "must not be negative")
	}
	if c.Daemon.Interval != 0 && c.Daemon.Interval < 2*time.Second {
		return dberrors.NewConfigError("daemon.interval", "must be at least 2s")
	}
	return nil
}

// Rules compiles the workspace exclusion settings into a matcher.
func (c *Config) Rules() *pathmatch.Rules {
	return pathmatch.NewRules(c.Workspace.ExcludeNames, c.Workspace.ExcludePatterns, c.Workspace.MaxDepth)
}

// PerRepoTimeout returns the per-repository processing budget.
func (c *Config) PerRepoTimeout() time.Duration {
	if c.Git.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Git.TimeoutSeconds) * time.Second
}

// Lookback returns the window size used when no prior run exists.
func (c *Config) Lookback() time.Duration {
	if c.Incremental.LookbackHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Incremental.LookbackHours) * time.Hour
}

// CacheTTL returns the discovery cache freshness bound.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Workspace defaults
	viper.SetDefault("workspace.root", homeDir)
	viper.SetDefault("workspace.exclude_names", []string{
		"node_modules", "vendor", ".terraform", ".git", ".idea", ".vscode",
	})
	viper.SetDefault("workspace.exclude_patterns", []string{})
	viper.SetDefault("workspace.max_depth", 3)
	viper.SetDefault("workspace.concurrency", 0)

	// Git defaults
	viper.SetDefault("git.max_commits_per_repo", 0)
	viper.SetDefault("git.timeout_seconds", 30)
	viper.SetDefault("git.timezone", "local")

	// Plans defaults
	viper.SetDefault("plans.dir_name", "plans")
	viper.SetDefault("plans.max_bytes", 65536)

	// Fallback defaults
	viper.SetDefault("fallback.enabled", false)
	viper.SetDefault("fallback.max_files", 200)

	// Incremental defaults
	viper.SetDefault("incremental.lookback_hours", 24)

	// Output defaults
	viper.SetDefault("output.dir", filepath.Join(homeDir, "daybook"))

	// AI defaults
	viper.SetDefault("ai.provider", "anthropic")
	viper.SetDefault("ai.model", "") // Empty means use per-provider default
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.anthropic_api_key", "")
	viper.SetDefault("ai.gemini_api_key", "")
	viper.SetDefault("ai.openai_api_key", "")
	viper.SetDefault("ai.openai_base_url", "")
	viper.SetDefault("ai.ollama_host", "http://localhost:11434")

	// GitHub defaults
	viper.SetDefault("github.enabled", false)
	viper.SetDefault("github.auth_method", "token")
	viper.SetDefault("github.token", "")

	// Daemon defaults
	viper.SetDefault("daemon.interval", "1h")
	viper.SetDefault("daemon.addr", "127.0.0.1:7341")
	viper.SetDefault("daemon.events_buffer", 200)
	viper.SetDefault("daemon.watch_plans", true)

	// Cache defaults
	viper.SetDefault("cache.path", filepath.Join(cacheHome(homeDir), "daybook", "projects.json"))
	viper.SetDefault("cache.ttl_hours", 24)
}

// cacheHome resolves the XDG cache base.
func cacheHome(homeDir string) string {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return base
	}
	return filepath.Join(homeDir, ".cache")
}

// expandPaths expands ~ and environment variables in paths
func expandPaths(config *Config) error {
	var err error

	config.Workspace.Root, err = expandPath(config.Workspace.Root)
	if err != nil {
		return err
	}

	config.Output.Dir, err = expandPath(config.Output.Dir)
	if err != nil {
		return err
	}

	config.Cache.Path, err = expandPath(config.Cache.Path)
	if err != nil {
		return err
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
