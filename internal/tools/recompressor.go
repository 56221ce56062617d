package tools

import (
	"context"
	"fmt"
	"os/exec"

	"pdf-reducer-go/internal/config"
)

// GhostscriptRecompressor rewrites a document lossily using Ghostscript,
// downsampling images according to a quality tier.
type GhostscriptRecompressor struct {
	path   string
	runner Runner
}

// NewGhostscriptRecompressor returns a recompressor that invokes the gs binary at path.
func NewGhostscriptRecompressor(path string, runner Runner) *GhostscriptRecompressor {
	if path == "" {
		path = "gs"
	}
	return &GhostscriptRecompressor{path: path, runner: runner}
}

// Name returns the tool name for logs and reports.
func (g *GhostscriptRecompressor) Name() string {
	return "ghostscript"
}

// Recompress rewrites inputPath to outputPath at the given quality tier,
// trading visual fidelity for size.
func (g *GhostscriptRecompressor) Recompress(ctx context.Context, inputPath, outputPath string, tier config.QualityTier) error {
	if !config.IsValidTier(string(tier)) {
		return fmt.Errorf("unknown quality tier: %s", tier)
	}
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		fmt.Sprintf("-dPDFSETTINGS=/%s", tier),
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dCompressFonts=true",
		"-dDetectDuplicateImages=true",
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=true",
		fmt.Sprintf("-sOutputFile=%s", outputPath),
		inputPath,
	}
	if _, err := g.runner.Run(ctx, g.path, args...); err != nil {
		return fmt.Errorf("ghostscript recompress (%s): %w", tier, err)
	}
	return nil
}

// Available reports whether the gs binary can be found.
func (g *GhostscriptRecompressor) Available() error {
	if _, err := exec.LookPath(g.path); err != nil {
		return fmt.Errorf("%w: %s not found in PATH (%s)", ErrToolUnavailable, g.path, g.InstallHint())
	}
	return nil
}

// InstallHint returns a user-facing remediation hint for a missing binary.
func (g *GhostscriptRecompressor) InstallHint() string {
	return "install ghostscript, e.g. 'apt-get install ghostscript' or 'brew install ghostscript'"
}
