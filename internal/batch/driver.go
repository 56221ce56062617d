package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdf-reducer-go/internal/config"
	"pdf-reducer-go/internal/reducer"
	"pdf-reducer-go/internal/stats"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDirectoryNotFound means the input directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrNotADirectory means the input path exists but is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNoFilesFound means discovery yielded zero matching documents.
	ErrNoFilesFound = errors.New("no matching files found")
)

// Driver enumerates documents in a directory and invokes the single-file
// reducer once per document, one at a time.
type Driver struct {
	cfg     *config.Config
	logger  *logrus.Logger
	stats   *stats.Statistics
	reducer reducer.Reducer
}

// NewDriver returns a new batch Driver.
func NewDriver(cfg *config.Config, logger *logrus.Logger, st *stats.Statistics, red reducer.Reducer) *Driver {
	return &Driver{
		cfg:     cfg,
		logger:  logger,
		stats:   st,
		reducer: red,
	}
}

// Run compresses every matching document in inputDir. An empty outputDir
// defaults to a "compressed" subdirectory of inputDir. A per-file failure is
// captured in that file's outcome and never aborts the batch; directory-level
// errors abort immediately.
func (d *Driver) Run(ctx context.Context, inputDir, outputDir string, targetMB float64) (*Summary, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, inputDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, inputDir)
	}

	if outputDir == "" {
		outputDir = filepath.Join(inputDir, d.cfg.Output.BatchDirName)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	files, err := d.discoverFiles(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	summary := &Summary{InputDir: inputDir, OutputDir: outputDir}
	if len(files) == 0 {
		return summary, fmt.Errorf("%w in %s", ErrNoFilesFound, inputDir)
	}

	d.logger.Infof("Found %d documents to process in %s", len(files), inputDir)

	for i, file := range files {
		d.logger.Infof("Processing file %d/%d: %s", i+1, len(files), filepath.Base(file))
		outcome := d.processFile(ctx, file, outputDir, targetMB)
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	d.stats.Finalize()
	return summary, nil
}

// discoverFiles returns matching documents directly inside inputDir, sorted
// by name. The scan is intentionally non-recursive so the output subdirectory
// of a previous run is never picked up.
func (d *Driver) discoverFiles(inputDir string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !d.cfg.IsSupportedExtension(ext) {
			continue
		}
		files = append(files, filepath.Join(inputDir, entry.Name()))
		d.stats.IncrementFilesFound()
	}

	sort.Strings(files)
	return files, nil
}

// processFile runs the reducer for a single document and captures any error
// into the outcome instead of propagating it.
func (d *Driver) processFile(ctx context.Context, inputPath, outputDir string, targetMB float64) FileOutcome {
	outcome := FileOutcome{FileName: filepath.Base(inputPath)}
	d.stats.IncrementFilesProcessed()

	if info, err := os.Stat(inputPath); err == nil {
		outcome.OriginalSizeMB = float64(info.Size()) / (1024 * 1024)
		d.stats.AddBytesOriginal(info.Size())
	}

	req := reducer.Request{
		InputPath:    inputPath,
		OutputPath:   filepath.Join(outputDir, filepath.Base(inputPath)),
		TargetSizeMB: targetMB,
	}

	res, err := d.reducer.Reduce(ctx, req)
	d.recordAttempts(res)

	if err != nil {
		d.logger.Errorf("Error processing %s: %v", inputPath, err)
		d.stats.IncrementFilesFailed()
		d.stats.AddError(inputPath, "compress", err.Error())
		outcome.Err = err.Error()
		if res.Produced {
			final := res.FinalSizeMB
			outcome.FinalSizeMB = &final
		}
		return outcome
	}

	outcome.OriginalSizeMB = res.OriginalSizeMB
	if res.Produced {
		final := res.FinalSizeMB
		outcome.FinalSizeMB = &final
	}
	outcome.Success = res.Success

	if res.Success {
		d.stats.IncrementFilesSucceeded()
		if res.Strategy == reducer.StrategyCopy {
			d.stats.IncrementFilesCopied()
		}
		d.stats.AddBytesCompressed(int64(res.FinalSizeMB * 1024 * 1024))
	} else {
		d.stats.IncrementFilesFailed()
		d.stats.AddError(inputPath, "compress",
			fmt.Sprintf("target not reached, closest: %.2f MB", res.FinalSizeMB))
	}

	return outcome
}

// recordAttempts folds per-strategy results into the run statistics.
func (d *Driver) recordAttempts(res reducer.Result) {
	for _, attempt := range res.Attempts {
		d.stats.IncrementStrategy(string(attempt.Strategy))
		if !attempt.ToolOK {
			d.stats.IncrementToolErrors()
		}
	}
}
