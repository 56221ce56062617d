package tools

import (
	"context"
	"testing"
	"time"

	"pdf-reducer-go/internal/config"

	"github.com/stretchr/testify/require"
)

// captureRunner records the command it was asked to run.
type captureRunner struct {
	name string
	args []string
	err  error
}

func (c *captureRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	c.name = name
	c.args = args
	return nil, c.err
}

func TestQpdfOptimizer_BuildsLosslessFlags(t *testing.T) {
	r := &captureRunner{}
	opt := NewQpdfOptimizer("qpdf", r)

	err := opt.Optimize(context.Background(), "in.pdf", "out.pdf")
	require.NoError(t, err)
	require.Equal(t, "qpdf", r.name)
	require.Equal(t, []string{
		"--compress-streams=y",
		"--object-streams=generate",
		"--optimize-images",
		"--remove-unreferenced-resources=yes",
		"in.pdf",
		"out.pdf",
	}, r.args)
}

func TestQpdfOptimizer_DefaultsBinaryPath(t *testing.T) {
	r := &captureRunner{}
	opt := NewQpdfOptimizer("", r)
	require.NoError(t, opt.Optimize(context.Background(), "a", "b"))
	require.Equal(t, "qpdf", r.name)
}

func TestQpdfOptimizer_WrapsRunnerError(t *testing.T) {
	r := &captureRunner{err: ErrToolFailed}
	opt := NewQpdfOptimizer("qpdf", r)
	err := opt.Optimize(context.Background(), "in.pdf", "out.pdf")
	require.ErrorIs(t, err, ErrToolFailed)
}

func TestGhostscript_BuildsTierFlags(t *testing.T) {
	r := &captureRunner{}
	rec := NewGhostscriptRecompressor("gs", r)

	err := rec.Recompress(context.Background(), "in.pdf", "out.pdf", config.TierScreen)
	require.NoError(t, err)
	require.Equal(t, "gs", r.name)
	require.Contains(t, r.args, "-dPDFSETTINGS=/screen")
	require.Contains(t, r.args, "-sDEVICE=pdfwrite")
	require.Contains(t, r.args, "-dCompatibilityLevel=1.4")
	require.Contains(t, r.args, "-dDownsampleColorImages=true")
	require.Contains(t, r.args, "-sOutputFile=out.pdf")
	require.Equal(t, "in.pdf", r.args[len(r.args)-1])
}

func TestGhostscript_RejectsUnknownTier(t *testing.T) {
	r := &captureRunner{}
	rec := NewGhostscriptRecompressor("gs", r)
	err := rec.Recompress(context.Background(), "in.pdf", "out.pdf", "ultra")
	require.Error(t, err)
	require.Empty(t, r.name, "runner must not be invoked for an unknown tier")
}

func TestGhostscript_AllTiersAccepted(t *testing.T) {
	for _, tier := range config.QualityTiers() {
		r := &captureRunner{}
		rec := NewGhostscriptRecompressor("gs", r)
		require.NoError(t, rec.Recompress(context.Background(), "in.pdf", "out.pdf", tier))
		require.Contains(t, r.args, "-dPDFSETTINGS=/"+string(tier))
	}
}

func TestExecRunner_MissingBinaryIsUnavailable(t *testing.T) {
	r := NewExecRunner(time.Second)
	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-a4f2")
	require.ErrorIs(t, err, ErrToolUnavailable)
}

func TestAvailable_MissingBinaryCarriesInstallHint(t *testing.T) {
	opt := NewQpdfOptimizer("definitely-not-a-real-binary-a4f2", &captureRunner{})
	err := opt.Available()
	require.ErrorIs(t, err, ErrToolUnavailable)
	require.Contains(t, err.Error(), "install qpdf")

	rec := NewGhostscriptRecompressor("definitely-not-a-real-binary-a4f2", &captureRunner{})
	err = rec.Available()
	require.ErrorIs(t, err, ErrToolUnavailable)
	require.Contains(t, err.Error(), "install ghostscript")
}
