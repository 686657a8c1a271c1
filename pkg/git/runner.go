package git

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	dberrors "thornfield.dev/daybook/pkg/errors"
)

// CommandRunner abstracts git subprocess invocation so extraction code can
// be tested without a git binary or real repositories.
type CommandRunner interface {
	// Output runs git with args in dir and returns its stdout. The context
	// cancels the subprocess, so an aborted aggregation does not leave
	// orphaned git processes behind.
	Output(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner invokes the real git binary.
type ExecRunner struct{}

// Output implements CommandRunner.
func (ExecRunner) Output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, dberrors.Wrap(err, msg)
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// MockCommandRunner substitutes canned git responses in tests.
type MockCommandRunner struct {
	OutputFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

	// Calls records the argument list of every invocation.
	Calls [][]string
}

// Output implements CommandRunner.
func (m *MockCommandRunner) Output(ctx context.Context, dir string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, args)
	if m.OutputFunc != nil {
		return m.OutputFunc(ctx, dir, args...)
	}
	return nil, nil
}

// ExitCode returns the subprocess exit code buried in err's chain, or -1
// when err did not come from a process exit.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if dberrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
