package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"pdf-reducer-go/internal/batch"
	"pdf-reducer-go/internal/config"
	"pdf-reducer-go/internal/logger"
	"pdf-reducer-go/internal/reducer"
	"pdf-reducer-go/internal/stats"
	"pdf-reducer-go/internal/tools"
	"pdf-reducer-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	targetMB float64
	verbose  bool
	quiet    bool
	port     int
)

// rootCmd is the base command: single-file compression.
var rootCmd = &cobra.Command{
	Use:   "pdf-reducer <input.pdf> [output.pdf] [target_mb]",
	Short: "Reduce PDF file size below a target threshold",
	Long: `pdf-reducer shrinks PDF files below a target size by progressively
invoking external compression tools and checking the resulting size:

1. Lossless structural optimization (qpdf)
2. Lossy recompression at a moderate quality tier (Ghostscript, ebook)
3. Lossy recompression at the most aggressive tier (Ghostscript, screen)

The chain stops at the first strategy that meets the target. Later
strategies are applied to the best previous output, so gains compound.
If no strategy reaches the target the most aggressive result is kept
and the command exits with a non-zero status.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReduce(args)
	},
}

// batchCmd compresses every document in a directory.
var batchCmd = &cobra.Command{
	Use:   "batch <input_dir> [output_dir] [target_mb]",
	Short: "Compress all PDF files in a directory",
	Long: `Compresses every PDF file directly inside the input directory,
writing results to the output directory (default: <input_dir>/compressed).
A failure on one file never stops the rest of the batch. The command
exits non-zero if any file failed or no files were found.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(args)
	},
}

// checkToolsCmd reports availability of the external compression binaries.
var checkToolsCmd = &cobra.Command{
	Use:   "check-tools",
	Short: "Check that qpdf and Ghostscript are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheckTools()
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server with an HTTP API for pdf-reducer.
The interface allows you to:
- Trigger single-file and batch compression
- Browse directories
- Check external tool availability
- Monitor progress in real-time over a websocket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().Float64Var(&targetMB, "target", 0, "target size in MB (default 30)")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(checkToolsCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pdf-reducer")
		viper.AddConfigPath("/etc/pdf-reducer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runReduce executes single-file compression.
func runReduce(args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	inputPath := args[0]
	if !fileExists(inputPath) {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	outputPath := ""
	if len(args) > 1 {
		outputPath = args[1]
	}
	if outputPath == "" {
		dir := filepath.Dir(inputPath)
		outputPath = filepath.Join(dir, cfg.Output.FilePrefix+filepath.Base(inputPath))
	}

	target := resolveTarget(cfg, args, 2)

	log := setupLogger(cfg)
	red := newReducer(cfg, log)

	if !quiet {
		fmt.Printf("Input:  %s\n", inputPath)
		fmt.Printf("Output: %s\n", outputPath)
		fmt.Printf("Target: under %.2f MB\n\n", target)
	}

	res, err := red.Reduce(context.Background(), reducer.Request{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		TargetSizeMB: target,
	})
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	if !quiet {
		fmt.Printf("Original size: %.2f MB\n", res.OriginalSizeMB)
		fmt.Printf("Final size:    %.2f MB\n", res.FinalSizeMB)
		if res.OriginalSizeMB > 0 {
			fmt.Printf("Reduction:     %.1f%%\n", (1-res.FinalSizeMB/res.OriginalSizeMB)*100)
		}
	}

	if !res.Success {
		return fmt.Errorf("could not compress below %.2f MB, closest achieved: %.2f MB", target, res.FinalSizeMB)
	}

	if !quiet {
		fmt.Printf("\nCompressed file saved to: %s\n", outputPath)
	}
	return nil
}

// runBatch executes directory-wide compression.
func runBatch(args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	inputDir := args[0]
	outputDir := ""
	if len(args) > 1 {
		outputDir = args[1]
	}
	target := resolveTarget(cfg, args, 2)

	log := setupLogger(cfg)
	st := stats.NewStatistics()
	driver := batch.NewDriver(cfg, log, st, newReducer(cfg, log))

	summary, err := driver.Run(context.Background(), inputDir, outputDir, target)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Println("\n" + summary.Render())
		fmt.Println(st.GetSummary())
	}

	if !summary.OK() {
		return fmt.Errorf("batch completed with %d failed files", summary.FailedCount())
	}
	return nil
}

// runCheckTools reports external binary availability with install hints.
func runCheckTools() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	runner := tools.NewExecRunner(time.Duration(cfg.Tools.TimeoutSeconds) * time.Second)
	opt := tools.NewQpdfOptimizer(cfg.Tools.QpdfPath, runner)
	rec := tools.NewGhostscriptRecompressor(cfg.Tools.GhostscriptPath, runner)

	missing := 0
	if err := opt.Available(); err != nil {
		fmt.Printf("%-12s MISSING - %s\n", opt.Name(), opt.InstallHint())
		missing++
	} else {
		fmt.Printf("%-12s OK\n", opt.Name())
	}
	if err := rec.Available(); err != nil {
		fmt.Printf("%-12s MISSING - %s\n", rec.Name(), rec.InstallHint())
		missing++
	} else {
		fmt.Printf("%-12s OK\n", rec.Name())
	}

	if missing > 0 {
		return fmt.Errorf("%d required tool(s) missing", missing)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("pdf-reducer web interface started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// newReducer builds the fallback-chain reducer from configuration.
func newReducer(cfg *config.Config, log *logrus.Logger) reducer.Reducer {
	runner := tools.NewExecRunner(time.Duration(cfg.Tools.TimeoutSeconds) * time.Second)
	opt := tools.NewQpdfOptimizer(cfg.Tools.QpdfPath, runner)
	rec := tools.NewGhostscriptRecompressor(cfg.Tools.GhostscriptPath, runner)
	return reducer.NewChainReducer(opt, rec, cfg, log)
}

// resolveTarget picks the target size from the positional argument, the
// --target flag, or the configured default, in that order.
func resolveTarget(cfg *config.Config, args []string, pos int) float64 {
	if len(args) > pos {
		if parsed, err := strconv.ParseFloat(args[pos], 64); err == nil && parsed > 0 {
			return parsed
		}
		fmt.Fprintf(os.Stderr, "Warning: invalid target size %q, using default %.0f MB\n",
			args[pos], cfg.TargetSizeMB)
		return cfg.TargetSizeMB
	}
	if targetMB > 0 {
		return targetMB
	}
	return cfg.TargetSizeMB
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
