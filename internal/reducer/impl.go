package reducer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pdf-reducer-go/internal/config"

	"github.com/sirupsen/logrus"
)

const bytesPerMB = 1024 * 1024

// ChainReducer is the default implementation of the Reducer interface.
// It tries the cheapest strategy first and falls through to lossier ones,
// chaining each strategy's best output forward so later strategies compound
// earlier gains.
type ChainReducer struct {
	optimizer    Optimizer
	recompressor Recompressor
	moderate     config.QualityTier
	aggressive   config.QualityTier
	logger       *logrus.Logger
}

// NewChainReducer returns a ChainReducer wired to the given collaborators.
func NewChainReducer(opt Optimizer, rec Recompressor, cfg *config.Config, logger *logrus.Logger) *ChainReducer {
	return &ChainReducer{
		optimizer:    opt,
		recompressor: rec,
		moderate:     config.QualityTier(cfg.Compression.ModerateQuality),
		aggressive:   config.QualityTier(cfg.Compression.AggressiveQuality),
		logger:       logger,
	}
}

// Reduce runs the fallback chain for a single document.
// A per-strategy tool failure falls through to the next strategy; Reduce
// returns an error only when no strategy produced any output at all.
// Target-not-reached is reported through Result.Success, not as an error.
func (r *ChainReducer) Reduce(ctx context.Context, req Request) (Result, error) {
	if req.TargetSizeMB <= 0 {
		return Result{}, fmt.Errorf("target size must be positive, got %v MB", req.TargetSizeMB)
	}
	if filepath.Clean(req.InputPath) == filepath.Clean(req.OutputPath) {
		return Result{}, fmt.Errorf("output path must differ from input path: %s", req.InputPath)
	}

	info, err := os.Stat(req.InputPath)
	if err != nil || info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrInputNotFound, req.InputPath)
	}

	originalMB := float64(info.Size()) / bytesPerMB
	res := Result{
		OriginalSizeMB: originalMB,
		FinalSizeMB:    originalMB,
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return res, fmt.Errorf("create output directory: %w", err)
	}

	if originalMB <= req.TargetSizeMB {
		if err := copyFile(req.InputPath, req.OutputPath); err != nil {
			return res, fmt.Errorf("copy input to output: %w", err)
		}
		r.logger.Infof("File %s already under %.2f MB (%.2f MB), copied unchanged",
			req.InputPath, req.TargetSizeMB, originalMB)
		res.Success = true
		res.Produced = true
		res.Strategy = StrategyCopy
		res.Attempts = append(res.Attempts, StrategyResult{
			Strategy: StrategyCopy,
			SizeMB:   originalMB,
			ToolOK:   true,
		})
		return res, nil
	}

	// All intermediate files are removed on every exit path.
	var temps []string
	defer func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}()

	chainInput := req.InputPath
	bestMB := originalMB
	var lastToolErr error

	// Strategy A: lossless structural optimization.
	tmp := tempPath(req.OutputPath, StrategyLossless)
	temps = append(temps, tmp)
	attempt := StrategyResult{Strategy: StrategyLossless}
	if err := r.optimizer.Optimize(ctx, chainInput, tmp); err != nil {
		r.logger.Warnf("Lossless optimization failed for %s, falling through: %v", req.InputPath, err)
		lastToolErr = err
	} else if mb, serr := fileSizeMB(tmp); serr != nil {
		r.logger.Warnf("Could not measure lossless output for %s: %v", req.InputPath, serr)
		lastToolErr = serr
	} else {
		attempt.ToolOK = true
		attempt.SizeMB = mb
		res.FinalSizeMB = mb
		r.logger.Debugf("Lossless optimization: %.2f MB -> %.2f MB", bestMB, mb)
		if mb <= req.TargetSizeMB {
			res.Attempts = append(res.Attempts, attempt)
			return r.promote(tmp, req, res, StrategyLossless, mb)
		}
		if mb < bestMB {
			chainInput, bestMB = tmp, mb
		}
	}
	res.Attempts = append(res.Attempts, attempt)

	// Strategy B: lossy recompression, moderate tier, chained on the best
	// previous output.
	tmp2 := tempPath(req.OutputPath, StrategyModerate)
	temps = append(temps, tmp2)
	attempt = StrategyResult{Strategy: StrategyModerate, Tier: r.moderate}
	if err := r.recompressor.Recompress(ctx, chainInput, tmp2, r.moderate); err != nil {
		r.logger.Warnf("Moderate recompression failed for %s, falling through: %v", req.InputPath, err)
		lastToolErr = err
	} else if mb, serr := fileSizeMB(tmp2); serr != nil {
		r.logger.Warnf("Could not measure moderate output for %s: %v", req.InputPath, serr)
		lastToolErr = serr
	} else {
		attempt.ToolOK = true
		attempt.SizeMB = mb
		res.FinalSizeMB = mb
		r.logger.Debugf("Moderate recompression (%s): %.2f MB -> %.2f MB", r.moderate, bestMB, mb)
		if mb <= req.TargetSizeMB {
			res.Attempts = append(res.Attempts, attempt)
			return r.promote(tmp2, req, res, StrategyModerate, mb)
		}
		if mb < bestMB {
			chainInput, bestMB = tmp2, mb
		}
	}
	res.Attempts = append(res.Attempts, attempt)

	// Strategy C: lossy recompression at the most aggressive tier, written
	// directly to the final output path. Terminal regardless of outcome.
	attempt = StrategyResult{Strategy: StrategyAggressive, Tier: r.aggressive}
	if err := r.recompressor.Recompress(ctx, chainInput, req.OutputPath, r.aggressive); err != nil {
		r.logger.Warnf("Aggressive recompression failed for %s: %v", req.InputPath, err)
		lastToolErr = err
		res.Attempts = append(res.Attempts, attempt)
		return r.keepBestAvailable(chainInput, bestMB, req, res, lastToolErr)
	}
	mb, serr := fileSizeMB(req.OutputPath)
	if serr != nil {
		lastToolErr = serr
		res.Attempts = append(res.Attempts, attempt)
		return r.keepBestAvailable(chainInput, bestMB, req, res, lastToolErr)
	}
	attempt.ToolOK = true
	attempt.SizeMB = mb
	res.Attempts = append(res.Attempts, attempt)
	r.logger.Debugf("Aggressive recompression (%s): %.2f MB -> %.2f MB", r.aggressive, bestMB, mb)

	// Never keep an output that grew past an earlier strategy's result.
	if mb > bestMB && chainInput != req.InputPath {
		if err := os.Rename(chainInput, req.OutputPath); err != nil {
			return res, fmt.Errorf("restore best output: %w", err)
		}
		mb = bestMB
	}

	res.Produced = true
	res.FinalSizeMB = mb
	res.Strategy = StrategyAggressive
	res.Success = mb <= req.TargetSizeMB
	if res.Success {
		r.logger.Infof("Compressed %s to %.2f MB (target %.2f MB)", req.InputPath, mb, req.TargetSizeMB)
	} else {
		r.logger.Warnf("Could not compress %s below %.2f MB, closest achieved: %.2f MB",
			req.InputPath, req.TargetSizeMB, mb)
	}
	return res, nil
}

// promote atomically renames a temp output to the final output path.
func (r *ChainReducer) promote(tmpPath string, req Request, res Result, strategy Strategy, sizeMB float64) (Result, error) {
	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		return res, fmt.Errorf("promote %s output: %w", strategy, err)
	}
	res.Success = true
	res.Produced = true
	res.Strategy = strategy
	res.FinalSizeMB = sizeMB
	r.logger.Infof("Compressed %s to %.2f MB via %s strategy (target %.2f MB)",
		req.InputPath, sizeMB, strategy, req.TargetSizeMB)
	return res, nil
}

// keepBestAvailable retains the best earlier strategy output at the final
// output path when the terminal strategy itself failed. When no strategy
// produced anything the whole request fails.
func (r *ChainReducer) keepBestAvailable(chainInput string, bestMB float64, req Request, res Result, toolErr error) (Result, error) {
	if chainInput == req.InputPath {
		return res, fmt.Errorf("all compression strategies failed for %s: %w", req.InputPath, toolErr)
	}
	if err := os.Rename(chainInput, req.OutputPath); err != nil {
		return res, fmt.Errorf("keep best output: %w", err)
	}
	res.Produced = true
	res.FinalSizeMB = bestMB
	res.Success = bestMB <= req.TargetSizeMB
	r.logger.Warnf("Terminal strategy failed for %s, kept best result at %.2f MB: %v",
		req.InputPath, bestMB, toolErr)
	return res, nil
}

// tempPath returns a distinguishable, per-call-unique temp file name next to
// the output path, so a future parallel batch loop cannot collide.
func tempPath(outputPath string, strategy Strategy) string {
	return fmt.Sprintf("%s.%s.%x.tmp", outputPath, strategy, time.Now().UnixNano())
}

// fileSizeMB returns the size of the file at path in megabytes.
func fileSizeMB(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.Size()) / bytesPerMB, nil
}

// copyFile copies a file from source to destination, preserving the mode.
func copyFile(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}

	return os.Chmod(destPath, sourceInfo.Mode())
}
