package tools

import (
	"context"
	"fmt"
	"os/exec"
)

// QpdfOptimizer rewrites a document losslessly using qpdf, removing
// redundant objects and recompressing streams.
type QpdfOptimizer struct {
	path   string
	runner Runner
}

// NewQpdfOptimizer returns an optimizer that invokes the qpdf binary at path.
func NewQpdfOptimizer(path string, runner Runner) *QpdfOptimizer {
	if path == "" {
		path = "qpdf"
	}
	return &QpdfOptimizer{path: path, runner: runner}
}

// Name returns the tool name for logs and reports.
func (q *QpdfOptimizer) Name() string {
	return "qpdf"
}

// Optimize rewrites inputPath to outputPath with lossless structural optimization.
func (q *QpdfOptimizer) Optimize(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"--compress-streams=y",
		"--object-streams=generate",
		"--optimize-images",
		"--remove-unreferenced-resources=yes",
		inputPath,
		outputPath,
	}
	if _, err := q.runner.Run(ctx, q.path, args...); err != nil {
		return fmt.Errorf("qpdf optimize: %w", err)
	}
	return nil
}

// Available reports whether the qpdf binary can be found.
func (q *QpdfOptimizer) Available() error {
	if _, err := exec.LookPath(q.path); err != nil {
		return fmt.Errorf("%w: %s not found in PATH (%s)", ErrToolUnavailable, q.path, q.InstallHint())
	}
	return nil
}

// InstallHint returns a user-facing remediation hint for a missing binary.
func (q *QpdfOptimizer) InstallHint() string {
	return "install qpdf, e.g. 'apt-get install qpdf' or 'brew install qpdf'"
}
