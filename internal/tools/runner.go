package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrToolUnavailable means the external binary is not installed or not on PATH.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrToolFailed means the external binary ran but exited with an error.
	ErrToolFailed = errors.New("tool execution failed")
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec with a bounded timeout per invocation.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns an ExecRunner with the given per-invocation timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ExecRunner{Timeout: timeout}
}

// Run executes the command, distinguishing a missing binary from a failed run.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrToolUnavailable, name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stderr.Bytes(), fmt.Errorf("%w: %s timed out after %v", ErrToolFailed, name, r.Timeout)
	}
	if err != nil {
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		return stderr.Bytes(), fmt.Errorf("%w: %s: %s", ErrToolFailed, name, detail)
	}

	return stderr.Bytes(), nil
}
