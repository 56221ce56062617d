package reducer

import (
	"context"
	"errors"

	"pdf-reducer-go/internal/config"
)

// ErrInputNotFound means the input document does not exist or is not a regular file.
var ErrInputNotFound = errors.New("input file not found")

// Strategy identifies one compression technique attempt in the fallback chain.
type Strategy string

const (
	StrategyCopy       Strategy = "copy"       // input already under target
	StrategyLossless   Strategy = "lossless"   // structural optimization
	StrategyModerate   Strategy = "moderate"   // lossy recompression, moderate tier
	StrategyAggressive Strategy = "aggressive" // lossy recompression, aggressive tier
)

// Request describes a single-file compression request.
type Request struct {
	InputPath    string
	OutputPath   string
	TargetSizeMB float64
}

// StrategyResult describes the outcome of one attempted strategy.
type StrategyResult struct {
	Strategy Strategy
	Tier     config.QualityTier // set for lossy strategies
	SizeMB   float64            // size of the strategy's output, 0 if none produced
	ToolOK   bool               // the external tool ran without error
}

// Result describes the outcome of a full fallback-chain run.
type Result struct {
	Success        bool    // final produced size <= target
	Produced       bool    // an output file exists at OutputPath
	OriginalSizeMB float64
	FinalSizeMB    float64 // last measured size, reported even on failure
	Strategy       Strategy
	Attempts       []StrategyResult
}

// Optimizer is the lossless structural optimization collaborator.
type Optimizer interface {
	Optimize(ctx context.Context, inputPath, outputPath string) error
	Name() string
}

// Recompressor is the lossy rasterization/downsampling collaborator.
type Recompressor interface {
	Recompress(ctx context.Context, inputPath, outputPath string, tier config.QualityTier) error
	Name() string
}

// Reducer shrinks a document below a target size by running an ordered
// sequence of compression strategies, stopping at the first that satisfies
// the target.
type Reducer interface {
	Reduce(ctx context.Context, req Request) (Result, error)
}
