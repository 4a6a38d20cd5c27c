// Package config provides configuration loading for scan-router.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spherical/scan-router/internal/batch"
	"github.com/spherical/scan-router/internal/cascade"
)

// Config holds all configuration for a batch run.
type Config struct {
	Cascade       CascadeConfig       `yaml:"cascade"`
	Routing       RoutingConfig       `yaml:"routing"`
	Output        OutputConfig        `yaml:"output"`
	Batch         BatchConfig         `yaml:"batch"`
	Journal       JournalConfig       `yaml:"journal"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CascadeConfig holds the decode strategies in priority order.
type CascadeConfig struct {
	NativeDPI  float64            `yaml:"native_dpi"`
	Strategies []cascade.Strategy `yaml:"strategies"`
}

// RoutingConfig holds classification settings.
type RoutingConfig struct {
	RulesPath        string `yaml:"rules_path"`
	CompositePattern string `yaml:"composite_pattern"`
	SubfolderLength  int    `yaml:"subfolder_length"`
	NoCodeFolder     string `yaml:"no_code_folder"`
	UnroutedFolder   string `yaml:"unrouted_folder"`
}

// OutputConfig holds output layout settings.
type OutputConfig struct {
	PageFormat   string `yaml:"page_format"` // pdf or png
	ReportMode   string `yaml:"report_mode"` // per_document or per_batch
	CSVDir       string `yaml:"csv_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	ReportName   string `yaml:"report_name"` // batch report file name, without extension
	MoveSources  bool   `yaml:"move_sources"`
}

// BatchConfig holds orchestration settings.
type BatchConfig struct {
	Workers   int    `yaml:"workers"`
	Extension string `yaml:"extension"`
}

// JournalConfig holds the SQLite run journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the standard five-step cascade and output layout.
func DefaultConfig() *Config {
	return &Config{
		Cascade: CascadeConfig{
			NativeDPI:  cascade.DefaultNativeDPI,
			Strategies: cascade.DefaultStrategies(),
		},
		Routing: RoutingConfig{
			CompositePattern: `^\d{2}-\d{3}-[A-Z]-.+$`,
			SubfolderLength:  8,
			NoCodeFolder:     "NOQRS",
			UnroutedFolder:   "UNROUTED",
		},
		Output: OutputConfig{
			PageFormat:   "pdf",
			ReportMode:   batch.ReportPerDocument,
			CSVDir:       "CSV",
			ProcessedDir: "PROCESSED",
			ReportName:   "decodedQRCodes",
			MoveSources:  true,
		},
		Batch: BatchConfig{
			Workers:   1,
			Extension: ".pdf",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "scan-router.db",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Cascade.NativeDPI <= 0 {
		return fmt.Errorf("native_dpi must be positive, got %v", c.Cascade.NativeDPI)
	}
	if len(c.Cascade.Strategies) == 0 {
		return fmt.Errorf("at least one cascade strategy is required")
	}
	seen := make(map[string]bool, len(c.Cascade.Strategies))
	for _, s := range c.Cascade.Strategies {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate strategy name %q", s.Name)
		}
		seen[s.Name] = true
	}

	if c.Routing.SubfolderLength < 1 {
		return fmt.Errorf("subfolder_length must be at least 1")
	}
	if c.Routing.NoCodeFolder == "" || c.Routing.UnroutedFolder == "" {
		return fmt.Errorf("no_code_folder and unrouted_folder are required")
	}

	if c.Output.PageFormat != "pdf" && c.Output.PageFormat != "png" {
		return fmt.Errorf("invalid page format: %s", c.Output.PageFormat)
	}
	if c.Output.ReportMode != batch.ReportPerDocument && c.Output.ReportMode != batch.ReportPerBatch {
		return fmt.Errorf("invalid report mode: %s", c.Output.ReportMode)
	}
	for name, dir := range map[string]string{"csv_dir": c.Output.CSVDir, "processed_dir": c.Output.ProcessedDir} {
		if dir == "" || filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return fmt.Errorf("%s must be a relative folder inside the output root, got %q", name, dir)
		}
	}

	if c.Output.ReportName == "" || strings.ContainsAny(c.Output.ReportName, `/\`) {
		return fmt.Errorf("invalid report name: %q", c.Output.ReportName)
	}

	if !strings.HasPrefix(c.Batch.Extension, ".") {
		return fmt.Errorf("extension must start with a dot, got %q", c.Batch.Extension)
	}
	if c.Batch.Workers < 1 || c.Batch.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCAN_ROUTER_RULES"); v != "" {
		cfg.Routing.RulesPath = v
	}

	if v := os.Getenv("SCAN_ROUTER_PAGE_FORMAT"); v != "" {
		cfg.Output.PageFormat = strings.ToLower(v)
	}

	if v := os.Getenv("SCAN_ROUTER_REPORT_MODE"); v != "" {
		cfg.Output.ReportMode = v
	}

	if v := os.Getenv("SCAN_ROUTER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}

	if v := os.Getenv("SCAN_ROUTER_JOURNAL"); v != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
