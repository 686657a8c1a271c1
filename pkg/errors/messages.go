package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	// Check for ConfigError
	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	// Check for DiscoveryError
	var discErr *DiscoveryError
	if As(err, &discErr) {
		return formatDiscoveryError(discErr)
	}

	// Check for ExtractionError
	var exErr *ExtractionError
	if As(err, &exErr) {
		return formatExtractionError(exErr)
	}

	// Check for StateError
	var stateErr *StateError
	if As(err, &stateErr) {
		return formatStateError(stateErr)
	}

	// Check for GitHubError
	var ghErr *GitHubError
	if As(err, &ghErr) {
		return formatGitHubError(ghErr)
	}

	// Check for AIError
	var aiErr *AIError
	if As(err, &aiErr) {
		return formatAIError(aiErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/daybook/config.toml\n")
	b.WriteString("  • Run 'daybook init' to write a fresh default config\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatDiscoveryError formats a DiscoveryError with actionable guidance.
func formatDiscoveryError(err *DiscoveryError) string {
	var b strings.Builder

	if err.Root != "" {
		fmt.Fprintf(&b, "Workspace discovery failed for %s: %s\n", err.Root, err.Message)
	} else {
		fmt.Fprintf(&b, "Workspace discovery failed: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Verify workspace.root in your config points at an existing directory\n")
	b.WriteString("  • Check the directory is readable by your user\n")
	b.WriteString("  • Run 'daybook scan --refresh' to retry discovery\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatExtractionError formats an ExtractionError with actionable guidance.
func formatExtractionError(err *ExtractionError) string {
	var b strings.Builder

	if err.Repo != "" {
		fmt.Fprintf(&b, "Commit extraction failed in %s: %s\n", err.Repo, err.Message)
	} else {
		fmt.Fprintf(&b, "Commit extraction failed: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Ensure git is installed and on your PATH\n")
	b.WriteString("  • Check the repository is not corrupt: run 'git status' inside it\n")
	b.WriteString("  • Add the repository to workspace.exclude_names to skip it\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatStateError formats a StateError with actionable guidance.
func formatStateError(err *StateError) string {
	var b strings.Builder

	if err.Path != "" {
		fmt.Fprintf(&b, "Incremental state %s failed for %s: %s\n", err.Operation, err.Path, err.Message)
	} else {
		fmt.Fprintf(&b, "Incremental state %s failed: %s\n", err.Operation, err.Message)
	}

	b.WriteString("\nYour results are unaffected; only the next run's window may re-cover this one.\n")
	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check the state directory is writable (~/.local/state/daybook)\n")
	b.WriteString("  • Delete the state file to reset incremental tracking\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatGitHubError formats a GitHubError with actionable guidance based on status code.
func formatGitHubError(err *GitHubError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "GitHub error during %s: %s\n", err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		b.WriteString("\nAuthentication failed. To fix this:\n")
		b.WriteString("  • Set the DAYBOOK_GITHUB_TOKEN or GITHUB_TOKEN environment variable\n")
		b.WriteString("  • Or set github.token in your config file\n")
		b.WriteString("  • Ensure your token has the required scopes (repo)\n")

	case 403:
		b.WriteString("\nPermission denied. To fix this:\n")
		b.WriteString("  • Check that your token has the 'repo' scope\n")
		b.WriteString("  • If using SSO, ensure the token is authorized for your organization\n")

	case 404:
		b.WriteString("\nResource not found. To fix this:\n")
		b.WriteString("  • Verify the repository's origin remote points at GitHub\n")
		b.WriteString("  • Check that you have access to the repository\n")

	case 429:
		b.WriteString("\nRate limit exceeded. To fix this:\n")
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Disable github.enabled to skip pull request enrichment\n")

	case 500, 502, 503, 504:
		b.WriteString("\nGitHub server error. To fix this:\n")
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check GitHub Status: https://www.githubstatus.com\n")
	}

	if err.Retryable {
		b.WriteString("\nThis error may be temporary. The operation will be retried automatically.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatAIError formats an AIError with actionable guidance based on status code.
func formatAIError(err *AIError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AI provider error (%s) during %s: %s\n", err.Provider, err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		fmt.Fprintf(&b, "\nAuthentication failed with %s. To fix this:\n", err.Provider)
		b.WriteString("  • Set the provider's API key in the ai section of your config\n")
		b.WriteString("  • Or set the appropriate API key environment variable\n")
		b.WriteString("  • Verify your API key is valid and not expired\n")

	case 403:
		fmt.Fprintf(&b, "\nAccess denied by %s. To fix this:\n", err.Provider)
		b.WriteString("  • Check your API key permissions\n")
		b.WriteString("  • Ensure the model you're using is available to your account tier\n")

	case 429:
		fmt.Fprintf(&b, "\n%s rate limit exceeded. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Reduce request frequency\n")

	case 500, 502, 503, 504:
		fmt.Fprintf(&b, "\n%s server error. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check the provider's status page\n")
	}

	b.WriteString("\nThe daily summary was still written; only the narrative step failed.\n")

	if err.Retryable {
		b.WriteString("\nThis error may be temporary. The operation will be retried automatically.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
