package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// QualityTier is a named Ghostscript preset controlling the
// resolution/fidelity trade-off of lossy recompression.
type QualityTier string

const (
	TierScreen   QualityTier = "screen"   // 72 DPI, smallest output
	TierEbook    QualityTier = "ebook"    // 150 DPI, medium quality
	TierPrinter  QualityTier = "printer"  // 300 DPI, high quality
	TierPrepress QualityTier = "prepress" // 300+ DPI, highest quality
)

// Config represents the main configuration structure
type Config struct {
	TargetSizeMB        float64           `mapstructure:"target_size_mb"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Tools               ToolsConfig       `mapstructure:"tools"`
	Compression         CompressionConfig `mapstructure:"compression"`
	Output              OutputConfig      `mapstructure:"output"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// ToolsConfig contains settings for the external compression binaries
type ToolsConfig struct {
	QpdfPath        string `mapstructure:"qpdf_path"`
	GhostscriptPath string `mapstructure:"ghostscript_path"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// CompressionConfig contains the quality tiers used by the fallback chain
type CompressionConfig struct {
	ModerateQuality   string `mapstructure:"moderate_quality"`
	AggressiveQuality string `mapstructure:"aggressive_quality"`
}

// OutputConfig contains output naming settings
type OutputConfig struct {
	BatchDirName string `mapstructure:"batch_dir_name"`
	FilePrefix   string `mapstructure:"file_prefix"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// QualityTiers returns all valid quality tiers in ascending fidelity order.
func QualityTiers() []QualityTier {
	return []QualityTier{TierScreen, TierEbook, TierPrinter, TierPrepress}
}

// IsValidTier reports whether the given name is a known quality tier.
func IsValidTier(name string) bool {
	for _, t := range QualityTiers() {
		if string(t) == name {
			return true
		}
	}
	return false
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		TargetSizeMB:        30,
		SupportedExtensions: []string{".pdf"},
		Tools: ToolsConfig{
			QpdfPath:        "qpdf",
			GhostscriptPath: "gs",
			TimeoutSeconds:  120,
		},
		Compression: CompressionConfig{
			ModerateQuality:   string(TierEbook),
			AggressiveQuality: string(TierScreen),
		},
		Output: OutputConfig{
			BatchDirName: "compressed",
			FilePrefix:   "compressed_",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "pdf-reducer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.pdf-reducer")
		viper.AddConfigPath("/etc/pdf-reducer")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("PDF_REDUCER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TargetSizeMB <= 0 {
		return fmt.Errorf("target_size_mb must be positive, got %v", c.TargetSizeMB)
	}

	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = []string{".pdf"}
	}
	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)

	if c.Tools.QpdfPath == "" {
		c.Tools.QpdfPath = "qpdf"
	}
	if c.Tools.GhostscriptPath == "" {
		c.Tools.GhostscriptPath = "gs"
	}
	if c.Tools.TimeoutSeconds <= 0 {
		c.Tools.TimeoutSeconds = 120
	}

	if !IsValidTier(c.Compression.ModerateQuality) {
		return fmt.Errorf("invalid moderate_quality tier: %s (valid: screen, ebook, printer, prepress)",
			c.Compression.ModerateQuality)
	}
	if !IsValidTier(c.Compression.AggressiveQuality) {
		return fmt.Errorf("invalid aggressive_quality tier: %s (valid: screen, ebook, printer, prepress)",
			c.Compression.AggressiveQuality)
	}

	if c.Output.BatchDirName == "" {
		c.Output.BatchDirName = "compressed"
	}
	if c.Output.FilePrefix == "" {
		c.Output.FilePrefix = "compressed_"
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsSupportedExtension checks if the extension matches a configured document type
func (c *Config) IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
