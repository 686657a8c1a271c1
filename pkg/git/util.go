// Package git wraps git subprocess invocation and repository detection.
package git

import (
	"os"
	"path/filepath"
)

// IsGitRepo reports whether dir is the top of a git repository. It
// recognizes a .git directory, a .git file (linked worktrees store a
// gitdir pointer there), and the bare-repository layout.
func IsGitRepo(dir string) bool {
	gitPath := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitPath); err == nil {
		if info.IsDir() || info.Mode().IsRegular() {
			return true
		}
	}
	return isBareRepo(dir)
}

// isBareRepo checks for the files a bare repository keeps at its top level.
func isBareRepo(dir string) bool {
	head, err := os.Stat(filepath.Join(dir, "HEAD"))
	if err != nil || head.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(dir, "config")); err != nil {
		return false
	}
	objects, err := os.Stat(filepath.Join(dir, "objects"))
	if err != nil || !objects.IsDir() {
		return false
	}
	return true
}
