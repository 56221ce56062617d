package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains all counters for a compression run.
type Statistics struct {
	FilesFound     int64
	FilesProcessed int64
	FilesSucceeded int64
	FilesFailed    int64
	FilesCopied    int64 // already under target, copied unchanged

	ToolErrors int64

	BytesOriginal   int64
	BytesCompressed int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []RunError

	mutex sync.RWMutex

	StrategyAttempts map[string]int64
}

// RunError represents an error that occurred during processing.
type RunError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:        time.Now(),
		StrategyAttempts: make(map[string]int64),
		Errors:           make([]RunError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.FilesFound, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.FilesProcessed, 1)
}

// IncrementFilesSucceeded increases the count of files that met the target by 1.
func (s *Statistics) IncrementFilesSucceeded() {
	atomic.AddInt64(&s.FilesSucceeded, 1)
}

// IncrementFilesFailed increases the count of files that missed the target by 1.
func (s *Statistics) IncrementFilesFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementFilesCopied increases the count of files copied unchanged by 1.
func (s *Statistics) IncrementFilesCopied() {
	atomic.AddInt64(&s.FilesCopied, 1)
}

// IncrementToolErrors increases the count of external tool errors by 1.
func (s *Statistics) IncrementToolErrors() {
	atomic.AddInt64(&s.ToolErrors, 1)
}

// IncrementStrategy increases the attempt count for a strategy by 1.
func (s *Statistics) IncrementStrategy(strategy string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.StrategyAttempts[strategy]++
}

// AddBytesOriginal adds the given number of bytes to the original total.
func (s *Statistics) AddBytesOriginal(bytes int64) {
	atomic.AddInt64(&s.BytesOriginal, bytes)
}

// AddBytesCompressed adds the given number of bytes to the compressed total.
func (s *Statistics) AddBytesCompressed(bytes int64) {
	atomic.AddInt64(&s.BytesCompressed, bytes)
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, RunError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates final statistics such as duration.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	original := atomic.LoadInt64(&s.BytesOriginal)
	compressed := atomic.LoadInt64(&s.BytesCompressed)
	saved := original - compressed
	if saved < 0 {
		saved = 0
	}

	return fmt.Sprintf(`PDF Reducer Statistics Summary:

Files:
		Total Found: %d
		Total Processed: %d
		Succeeded: %d
		Failed: %d
		Copied (already under target): %d

Compression:
		Original Total: %s
		Compressed Total: %s
		Space Saved: %s

Tools:
		Tool Errors: %d

Performance:
		Duration: %v

%s`,
		atomic.LoadInt64(&s.FilesFound),
		atomic.LoadInt64(&s.FilesProcessed),
		atomic.LoadInt64(&s.FilesSucceeded),
		atomic.LoadInt64(&s.FilesFailed),
		atomic.LoadInt64(&s.FilesCopied),
		formatBytes(original),
		formatBytes(compressed),
		formatBytes(saved),
		atomic.LoadInt64(&s.ToolErrors),
		s.Duration,
		s.getStrategyBreakdown())
}

// getStrategyBreakdown returns a formatted breakdown of strategy attempts.
func (s *Statistics) getStrategyBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.StrategyAttempts) == 0 {
		return "Strategies: none attempted"
	}

	result := "Strategies:\n"
	for strategy, count := range s.StrategyAttempts {
		result += fmt.Sprintf("		%s: %d\n", strategy, count)
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// GetFilesProcessed returns the total number of files processed.
func (s *Statistics) GetFilesProcessed() int64 {
	return atomic.LoadInt64(&s.FilesProcessed)
}

// GetFilesFailed returns the total number of files that failed.
func (s *Statistics) GetFilesFailed() int64 {
	return atomic.LoadInt64(&s.FilesFailed)
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
