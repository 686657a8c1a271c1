// Package errors provides typed errors for the daybook project.
//
// This package defines domain-specific error types that provide structured
// error information for different subsystems (config, discovery, extraction,
// plans, state, GitHub, AI, daemon). All error types implement the standard
// error interface and support errors.Is() and errors.As() from the standard
// library and cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// DiscoveryError represents a failure to scan the workspace root itself.
// Unlike per-repository errors it is fatal to an aggregation run: if the
// root cannot be read there is nothing meaningful to aggregate.
type DiscoveryError struct {
	Root    string // Workspace root being scanned
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Root != "" {
		return fmt.Sprintf("discovery of %s failed: %s", e.Root, e.Message)
	}
	return "discovery failed: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(root, message string) *DiscoveryError {
	return &DiscoveryError{Root: root, Message: message}
}

// NewDiscoveryErrorWithCause creates a new DiscoveryError with an underlying cause.
func NewDiscoveryErrorWithCause(root, message string, cause error) *DiscoveryError {
	return &DiscoveryError{Root: root, Message: message, Cause: cause}
}

// ExtractionError represents a git invocation or parse failure scoped to one
// repository. It never aborts the surrounding aggregation; the repository is
// reported with empty results and a diagnostic instead.
type ExtractionError struct {
	Repo      string // Repository root the failure belongs to
	Operation string // e.g., "log", "status"
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Repo != "" {
		return fmt.Sprintf("git %s in %s failed: %s", e.Operation, e.Repo, e.Message)
	}
	return fmt.Sprintf("git %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(repo, operation, message string) *ExtractionError {
	return &ExtractionError{Repo: repo, Operation: operation, Message: message}
}

// NewExtractionErrorWithCause creates a new ExtractionError with an underlying cause.
func NewExtractionErrorWithCause(repo, operation, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Repo:      repo,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// PlanReadError represents a failure reading or parsing one plan artifact.
// Scoped to that artifact; sibling artifacts are still processed.
type PlanReadError struct {
	Path    string // Artifact path
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PlanReadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("plan read of %s failed: %s", e.Path, e.Message)
	}
	return "plan read failed: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *PlanReadError) Unwrap() error {
	return e.Cause
}

// NewPlanReadError creates a new PlanReadError.
func NewPlanReadError(path, message string) *PlanReadError {
	return &PlanReadError{Path: path, Message: message}
}

// NewPlanReadErrorWithCause creates a new PlanReadError with an underlying cause.
func NewPlanReadErrorWithCause(path, message string, cause error) *PlanReadError {
	return &PlanReadError{Path: path, Message: message, Cause: cause}
}

// StateError represents incremental state persistence errors. A failed save
// never discards computed results; only the bookkeeping goes stale.
type StateError struct {
	Operation string // e.g., "load", "save"
	Path      string // State file path
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("state %s at %s failed: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("state %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *StateError) Unwrap() error {
	return e.Cause
}

// NewStateError creates a new StateError.
func NewStateError(operation, path, message string) *StateError {
	return &StateError{Operation: operation, Path: path, Message: message}
}

// NewStateErrorWithCause creates a new StateError with an underlying cause.
func NewStateErrorWithCause(operation, path, message string, cause error) *StateError {
	return &StateError{Operation: operation, Path: path, Message: message, Cause: cause}
}

// GitHubError represents GitHub API errors.
type GitHubError struct {
	Operation  string // e.g., "ListPRs", "ResolveViewer"
	StatusCode int    // HTTP status code if applicable
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *GitHubError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("github %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *GitHubError) Unwrap() error {
	return e.Cause
}

// NewGitHubError creates a new GitHubError.
func NewGitHubError(operation, message string) *GitHubError {
	return &GitHubError{Operation: operation, Message: message}
}

// NewGitHubErrorWithStatus creates a new GitHubError with HTTP status code.
func NewGitHubErrorWithStatus(operation string, statusCode int, message string) *GitHubError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &GitHubError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewGitHubErrorWithCause creates a new GitHubError with an underlying cause.
func NewGitHubErrorWithCause(operation, message string, cause error) *GitHubError {
	return &GitHubError{
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// AIError represents AI provider errors.
type AIError struct {
	Provider   string // e.g., "anthropic", "ollama"
	Operation  string // e.g., "Chat", "StreamChat"
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai %s %s failed (HTTP %d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai %s %s failed: %s", e.Provider, e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// NewAIError creates a new AIError.
func NewAIError(provider, operation, message string) *AIError {
	return &AIError{Provider: provider, Operation: operation, Message: message}
}

// NewAIErrorWithStatus creates a new AIError with HTTP status code.
func NewAIErrorWithStatus(provider, operation string, statusCode int, message string) *AIError {
	retryable := isRetryableHTTPStatus(statusCode)
	return &AIError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// NewAIErrorWithCause creates a new AIError with an underlying cause.
func NewAIErrorWithCause(provider, operation, message string, cause error) *AIError {
	return &AIError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Retryable: IsRetryable(cause),
		Cause:     cause,
	}
}

// DaemonError represents errors related to the daybook background daemon.
type DaemonError struct {
	Operation string // e.g., "Start", "Stop", "Status"
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *DaemonError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("daemon %s failed: %s", e.Operation, e.Message)
	}
	return "daemon error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *DaemonError) Unwrap() error {
	return e.Cause
}

// NewDaemonError creates a new DaemonError.
func NewDaemonError(operation, message string) *DaemonError {
	return &DaemonError{Operation: operation, Message: message}
}

// WithCause adds an underlying cause to the DaemonError.
func (e *DaemonError) WithCause(cause error) *DaemonError {
	e.Cause = cause
	return e
}

// IsRetryable checks if an error or any error in its chain is retryable.
// It returns true if the error itself is retryable, or if any wrapped error
// is marked as retryable. Only the HTTP-facing subsystems (GitHub, AI)
// produce retryable errors; filesystem and git failures are deterministic
// and retrying them would just repeat the failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check GitHubError
	var ghErr *GitHubError
	if errors.As(err, &ghErr) {
		return ghErr.Retryable
	}

	// Check AIError
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Retryable
	}

	return false
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsDiscoveryError checks if an error or any error in its chain is a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var discErr *DiscoveryError
	return errors.As(err, &discErr)
}

// IsExtractionError checks if an error or any error in its chain is an ExtractionError.
func IsExtractionError(err error) bool {
	var exErr *ExtractionError
	return errors.As(err, &exErr)
}

// IsPlanReadError checks if an error or any error in its chain is a PlanReadError.
func IsPlanReadError(err error) bool {
	var planErr *PlanReadError
	return errors.As(err, &planErr)
}

// IsStateError checks if an error or any error in its chain is a StateError.
func IsStateError(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// IsGitHubError checks if an error or any error in its chain is a GitHubError.
func IsGitHubError(err error) bool {
	var ghErr *GitHubError
	return errors.As(err, &ghErr)
}

// IsAIError checks if an error or any error in its chain is an AIError.
func IsAIError(err error) bool {
	var aiErr *AIError
	return errors.As(err, &aiErr)
}

// IsDaemonError checks if an error or any error in its chain is a DaemonError.
func IsDaemonError(err error) bool {
	var daemonErr *DaemonError
	return errors.As(err, &daemonErr)
}

// isRetryableHTTPStatus returns true for HTTP status codes that are typically retryable.
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Cause returns the root cause of an error.
func Cause(err error) error {
	return errors.Cause(err)
}
