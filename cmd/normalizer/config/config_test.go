package config

import (
	"os"
	"path/filepath"
	"testing"

	"invoice-normalizer/internal/matcher"
	"invoice-normalizer/internal/reporter"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/spf13/viper"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Inputs:       []string{"batch.json"},
		OutputFormat: "console",
		Matcher:      "containment",
		Concurrency:  4,
		MaxWarnings:  1000,
		ExtraDetails: true,
		MaxListItems: 50,
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("input", []string{"a.json", "b.json"})

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Inputs) != 2 || cfg.Inputs[1] != "b.json" {
		t.Errorf("unexpected inputs: %v", cfg.Inputs)
	}
	if cfg.OutputFormat != "console" {
		t.Errorf("expected console output, got %q", cfg.OutputFormat)
	}
	if cfg.Matcher != "containment" {
		t.Errorf("expected containment matcher, got %q", cfg.Matcher)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Concurrency)
	}
	if !cfg.ExtraDetails {
		t.Error("expected extra details to be enabled by default")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalizer.yaml")
	content := "input:\n  - jan.json\noutput-format: json\nmatcher: exact\nconcurrency: 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputFormat != "json" || cfg.Matcher != "exact" || cfg.Concurrency != 2 {
		t.Errorf("config file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestAppConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*AppConfig)
		wantCode errors.ErrorCode
	}{
		{
			name:   "valid",
			modify: func(c *AppConfig) {},
		},
		{
			name:     "no inputs",
			modify:   func(c *AppConfig) { c.Inputs = nil },
			wantCode: errors.CodeMissingConfig,
		},
		{
			name:     "empty input path",
			modify:   func(c *AppConfig) { c.Inputs = []string{""} },
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name:     "unknown format",
			modify:   func(c *AppConfig) { c.OutputFormat = "pdf" },
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name:     "unknown matcher",
			modify:   func(c *AppConfig) { c.Matcher = "fuzzy" },
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name:     "zero concurrency",
			modify:   func(c *AppConfig) { c.Concurrency = 0 },
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name:     "negative warnings cap",
			modify:   func(c *AppConfig) { c.MaxWarnings = -1 },
			wantCode: errors.CodeInvalidConfig,
		},
		{
			name: "stream with console output",
			modify: func(c *AppConfig) {
				c.Stream = true
			},
			wantCode: errors.CodeConfigConflict,
		},
		{
			name: "stream with json output",
			modify: func(c *AppConfig) {
				c.Stream = true
				c.OutputFormat = "json"
			},
		},
		{
			name:     "xlsx to stdout",
			modify:   func(c *AppConfig) { c.OutputFormat = "xlsx" },
			wantCode: errors.CodeConfigConflict,
		},
		{
			name: "xlsx to file",
			modify: func(c *AppConfig) {
				c.OutputFormat = "xlsx"
				c.OutputFile = "out.xlsx"
			},
		},
		{
			name: "min name length with exact matcher",
			modify: func(c *AppConfig) {
				c.Matcher = "exact"
				c.MinNameLength = 3
			},
			wantCode: errors.CodeConfigConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCodeInChain(err, tt.wantCode) {
				t.Errorf("expected %s error, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestCreateMatchingConfig(t *testing.T) {
	cfg := validConfig()
	cfg.MinNameLength = 3

	config, err := CreateMatchingConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Strategy != matcher.StrategyContainment {
		t.Errorf("expected containment strategy, got %s", config.Strategy)
	}
	if config.MinNameLength != 3 {
		t.Errorf("expected MinNameLength 3, got %d", config.MinNameLength)
	}
	if !config.MatchEmptyNames {
		t.Error("expected empty names to link by default")
	}

	cfg = validConfig()
	cfg.NoEmptyNames = true
	config, err = CreateMatchingConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.MatchEmptyNames {
		t.Error("expected --no-empty-names to stop empty names from linking")
	}

	cfg = validConfig()
	cfg.Matcher = "exact"
	config, err = CreateMatchingConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Strategy != matcher.StrategyExact {
		t.Errorf("expected exact strategy, got %s", config.Strategy)
	}
}

func TestCreateEngineConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Progress = true
	cfg.ExtraDetails = false
	cfg.MaxWarnings = 10

	config := CreateEngineConfig(cfg, matcher.DefaultMatchingConfig())
	if !config.ProgressReporting {
		t.Error("expected progress reporting")
	}
	if config.BuildExtraDetails {
		t.Error("expected extra details to be disabled")
	}
	if config.MaxWarnings != 10 {
		t.Errorf("expected MaxWarnings 10, got %d", config.MaxWarnings)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("engine config should be valid: %v", err)
	}
}

func TestCreateReportConfig(t *testing.T) {
	formats := []string{"console", "json", "csv", "xlsx"}

	for _, format := range formats {
		t.Run(format, func(t *testing.T) {
			cfg := validConfig()
			cfg.OutputFormat = format

			config := CreateReportConfig(cfg)
			if string(config.Format) != format {
				t.Errorf("expected format %s, got %s", format, config.Format)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
			if config.Format == reporter.FormatJSON && config.IncludeAmbiguity {
				t.Error("expected ambiguity listing to be left out of JSON")
			}
		})
	}
}

func TestCreateParserConfig(t *testing.T) {
	cfg := validConfig()
	cfg.AllowBareArray = true
	cfg.SkipSchema = true
	cfg.Concurrency = 8
	cfg.FailFast = true

	parseConfig, streamingConfig := CreateParserConfig(cfg)
	if !parseConfig.AllowBareArray {
		t.Error("expected bare arrays to be allowed")
	}
	if parseConfig.ValidateSchema {
		t.Error("expected schema validation to be skipped")
	}
	if streamingConfig.MaxConcurrency != 8 {
		t.Errorf("expected MaxConcurrency 8, got %d", streamingConfig.MaxConcurrency)
	}
	if streamingConfig.ContinueOnError {
		t.Error("expected fail-fast to stop on errors")
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	cfg := validConfig()
	config := CreateLoggerConfig(cfg)
	if config.Level != logger.WarnLevel {
		t.Errorf("expected warn level, got %s", config.Level)
	}
	if config.Output != logger.StderrOutput {
		t.Errorf("expected stderr output, got %s", config.Output)
	}

	cfg.Verbose = true
	if level := CreateLoggerConfig(cfg).Level; level != logger.InfoLevel {
		t.Errorf("expected verbose to raise the level to info, got %s", level)
	}

	cfg.LogLevel = "debug"
	if level := CreateLoggerConfig(cfg).Level; level != logger.DebugLevel {
		t.Errorf("expected debug level to be kept, got %s", level)
	}
}
