package reducer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-reducer-go/internal/config"
	"pdf-reducer-go/internal/tools"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Sizes in tests are expressed in KB so the fixtures stay small; the MB
// numbers from the size targets scale down by the same factor.
func kbToMB(kb int) float64 {
	return float64(kb) / 1024
}

func writeFileKB(t *testing.T, path string, kb int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, kb*1024), 0644))
}

// fakeOptimizer writes an output of a fixed size, or fails.
type fakeOptimizer struct {
	outKB  int
	err    error
	inputs []string
}

func (f *fakeOptimizer) Optimize(ctx context.Context, inputPath, outputPath string) error {
	f.inputs = append(f.inputs, inputPath)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, make([]byte, f.outKB*1024), 0644)
}

func (f *fakeOptimizer) Name() string { return "fake-optimizer" }

// fakeRecompressor writes per-tier outputs of fixed sizes, or fails per tier.
type fakeRecompressor struct {
	outKB  map[config.QualityTier]int
	errs   map[config.QualityTier]error
	inputs map[config.QualityTier]string
}

func (f *fakeRecompressor) Recompress(ctx context.Context, inputPath, outputPath string, tier config.QualityTier) error {
	if f.inputs == nil {
		f.inputs = make(map[config.QualityTier]string)
	}
	f.inputs[tier] = inputPath
	if err := f.errs[tier]; err != nil {
		return err
	}
	return os.WriteFile(outputPath, make([]byte, f.outKB[tier]*1024), 0644)
}

func (f *fakeRecompressor) Name() string { return "fake-recompressor" }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newTestReducer(opt Optimizer, rec Recompressor) *ChainReducer {
	return NewChainReducer(opt, rec, config.DefaultConfig(), testLogger())
}

func requireNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file: %s", e.Name())
	}
}

func TestReduce_AlreadyUnderTarget(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "small.pdf")
	output := filepath.Join(dir, "out", "small.pdf")
	writeFileKB(t, input, 10)

	opt := &fakeOptimizer{err: errors.New("must not be called")}
	rec := &fakeRecompressor{errs: map[config.QualityTier]error{
		config.TierEbook:  errors.New("must not be called"),
		config.TierScreen: errors.New("must not be called"),
	}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StrategyCopy, res.Strategy)
	require.Empty(t, opt.inputs, "optimizer must not run for small inputs")

	// Output is byte-identical to the input.
	in, err := os.ReadFile(input)
	require.NoError(t, err)
	out, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.Equal(t, res.OriginalSizeMB, res.FinalSizeMB)
	requireNoTempFiles(t, filepath.Dir(output))
}

func TestReduce_LosslessMeetsTarget(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 50)

	opt := &fakeOptimizer{outKB: 25}
	rec := &fakeRecompressor{errs: map[config.QualityTier]error{
		config.TierEbook:  errors.New("must not be called"),
		config.TierScreen: errors.New("must not be called"),
	}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StrategyLossless, res.Strategy)
	require.InDelta(t, kbToMB(25), res.FinalSizeMB, 1e-9)
	require.FileExists(t, output)
	requireNoTempFiles(t, dir)
}

func TestReduce_ModerateMeetsTarget(t *testing.T) {
	// 50 KB input, target 30: lossless yields 35, moderate yields 28.
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 50)

	opt := &fakeOptimizer{outKB: 35}
	rec := &fakeRecompressor{outKB: map[config.QualityTier]int{config.TierEbook: 28}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StrategyModerate, res.Strategy)
	require.InDelta(t, kbToMB(28), res.FinalSizeMB, 1e-9)
	require.FileExists(t, output)
	requireNoTempFiles(t, dir)

	// The moderate strategy must chain on the lossless output, not the
	// original input.
	require.NotEqual(t, input, rec.inputs[config.TierEbook])
	require.Contains(t, rec.inputs[config.TierEbook], "lossless")
}

func TestReduce_AllStrategiesMissTarget(t *testing.T) {
	// Aggressive yields 40 against a target of 30: reported failure, the
	// 40 KB result retained at the output path, no temp leftovers.
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 80)

	opt := &fakeOptimizer{outKB: 70}
	rec := &fakeRecompressor{outKB: map[config.QualityTier]int{
		config.TierEbook:  60,
		config.TierScreen: 40,
	}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.Produced)
	require.InDelta(t, kbToMB(40), res.FinalSizeMB, 1e-9)

	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Equal(t, int64(40*1024), info.Size())
	requireNoTempFiles(t, dir)
	require.Len(t, res.Attempts, 3)
}

func TestReduce_ToolUnavailableFallsThrough(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 50)

	opt := &fakeOptimizer{err: tools.ErrToolUnavailable}
	rec := &fakeRecompressor{outKB: map[config.QualityTier]int{config.TierEbook: 20}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, StrategyModerate, res.Strategy)
	// Moderate got the original input since lossless produced nothing.
	require.Equal(t, input, rec.inputs[config.TierEbook])
	requireNoTempFiles(t, dir)
}

func TestReduce_AllToolsFail(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 50)

	opt := &fakeOptimizer{err: tools.ErrToolUnavailable}
	rec := &fakeRecompressor{errs: map[config.QualityTier]error{
		config.TierEbook:  tools.ErrToolUnavailable,
		config.TierScreen: tools.ErrToolUnavailable,
	}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.Error(t, err)
	require.ErrorIs(t, err, tools.ErrToolUnavailable)
	require.False(t, res.Produced)
	require.NoFileExists(t, output)
	requireNoTempFiles(t, dir)
}

func TestReduce_TerminalFailureKeepsBestResult(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 80)

	opt := &fakeOptimizer{outKB: 60}
	rec := &fakeRecompressor{
		outKB: map[config.QualityTier]int{config.TierEbook: 45},
		errs:  map[config.QualityTier]error{config.TierScreen: tools.ErrToolFailed},
	}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.True(t, res.Produced)
	require.InDelta(t, kbToMB(45), res.FinalSizeMB, 1e-9)

	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Equal(t, int64(45*1024), info.Size())
	requireNoTempFiles(t, dir)
}

func TestReduce_NeverGrowsPastEarlierStrategy(t *testing.T) {
	// The aggressive tier produces a larger file than the moderate tier;
	// the smaller earlier result wins.
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	output := filepath.Join(dir, "doc-out.pdf")
	writeFileKB(t, input, 80)

	opt := &fakeOptimizer{outKB: 70}
	rec := &fakeRecompressor{outKB: map[config.QualityTier]int{
		config.TierEbook:  45,
		config.TierScreen: 55,
	}}
	r := newTestReducer(opt, rec)

	res, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   output,
		TargetSizeMB: kbToMB(30),
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.InDelta(t, kbToMB(45), res.FinalSizeMB, 1e-9)

	info, err := os.Stat(output)
	require.NoError(t, err)
	require.Equal(t, int64(45*1024), info.Size())
	requireNoTempFiles(t, dir)
}

func TestReduce_InvalidRequests(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	writeFileKB(t, input, 10)

	r := newTestReducer(&fakeOptimizer{}, &fakeRecompressor{})

	_, err := r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   filepath.Join(dir, "out.pdf"),
		TargetSizeMB: 0,
	})
	require.Error(t, err)

	_, err = r.Reduce(context.Background(), Request{
		InputPath:    input,
		OutputPath:   input,
		TargetSizeMB: 30,
	})
	require.Error(t, err, "must never overwrite the original input")

	_, err = r.Reduce(context.Background(), Request{
		InputPath:    filepath.Join(dir, "missing.pdf"),
		OutputPath:   filepath.Join(dir, "out.pdf"),
		TargetSizeMB: 30,
	})
	require.ErrorIs(t, err, ErrInputNotFound)
}
