package config

import (
	"fmt"
	"sort"
	"strings"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/matcher"
	"invoice-normalizer/internal/parsers"
	"invoice-normalizer/internal/reporter"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the merged view of flags, config file, .env and
// NORMALIZER_* environment variables
type AppConfig struct {
	Inputs       []string `mapstructure:"input" validate:"required,min=1,dive,required"`
	OutputFormat string   `mapstructure:"output-format" validate:"oneof=console json csv xlsx"`
	OutputFile   string   `mapstructure:"output-file"`

	Matcher       string `mapstructure:"matcher" validate:"oneof=containment exact"`
	NoEmptyNames  bool   `mapstructure:"no-empty-names"`
	MinNameLength int    `mapstructure:"min-name-length" validate:"min=0,max=64"`

	Stream         bool `mapstructure:"stream"`
	Progress       bool `mapstructure:"progress"`
	AllowBareArray bool `mapstructure:"allow-bare-array"`
	SkipSchema     bool `mapstructure:"skip-schema"`
	Concurrency    int  `mapstructure:"concurrency" validate:"min=1,max=64"`
	FailFast       bool `mapstructure:"fail-fast"`

	MaxWarnings  int  `mapstructure:"max-warnings" validate:"min=0"`
	ExtraDetails bool `mapstructure:"extra-details"`
	MaxListItems int  `mapstructure:"max-list-items" validate:"min=0,max=10000"`

	Verbose   bool   `mapstructure:"verbose"`
	LogLevel  string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"`
}

// SetDefaults registers the values used when neither a flag, the config
// file nor the environment set a key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output-format", "console")
	v.SetDefault("matcher", "containment")
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-warnings", 1000)
	v.SetDefault("extra-details", true)
	v.SetDefault("max-list-items", 50)
	v.SetDefault("log-level", "warn")
	v.SetDefault("log-format", "text")
}

// Load unmarshals and validates the application configuration
func Load(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", v.ConfigFileUsed(), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and combinations of settings
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		fields := validationFields(err)
		if _, ok := fields["Inputs"]; ok && len(c.Inputs) == 0 {
			return errors.ConfigurationError(errors.CodeMissingConfig, "input", nil, err).
				WithSuggestion("Pass at least one batch file with --input")
		}
		return errors.ConfigurationError(errors.CodeInvalidConfig, formatFields(fields), nil, err)
	}

	if c.Stream && c.OutputFormat != string(reporter.FormatJSON) {
		return errors.ConfigurationError(errors.CodeConfigConflict, "stream", c.OutputFormat,
			fmt.Errorf("--stream writes JSON lines and cannot be combined with %s output", c.OutputFormat)).
			WithSuggestion("Use --output-format json or drop --stream")
	}

	if c.OutputFormat == string(reporter.FormatXLSX) && c.OutputFile == "" {
		return errors.ConfigurationError(errors.CodeConfigConflict, "output-file", nil,
			fmt.Errorf("xlsx output needs --output-file"))
	}

	if c.Matcher == "exact" && c.MinNameLength > 0 {
		return errors.ConfigurationError(errors.CodeConfigConflict, "min-name-length", c.MinNameLength,
			fmt.Errorf("min-name-length only applies to the containment matcher"))
	}

	return nil
}

// validationFields maps each failing field to the tag it failed
func validationFields(err error) map[string]string {
	out := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, ve := range validationErrors {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

func formatFields(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for field, tag := range fields {
		parts = append(parts, fmt.Sprintf("%s(%s)", field, tag))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// CreateMatchingConfig creates the linker configuration
func CreateMatchingConfig(cfg *AppConfig) (*matcher.MatchingConfig, error) {
	strategy, err := matcher.ParseStrategy(cfg.Matcher)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matcher", cfg.Matcher, err)
	}

	config := matcher.DefaultMatchingConfig()
	if strategy == matcher.StrategyExact {
		config = matcher.StrictMatchingConfig()
	}
	if cfg.NoEmptyNames {
		config.MatchEmptyNames = false
	}
	config.MinNameLength = cfg.MinNameLength

	return config, config.Validate()
}

// CreateEngineConfig creates the normalization service configuration
func CreateEngineConfig(cfg *AppConfig, matching *matcher.MatchingConfig) *engine.Config {
	config := engine.DefaultConfig()

	config.Matching = matching
	config.BuildExtraDetails = cfg.ExtraDetails
	config.ProgressReporting = cfg.Progress
	config.MaxWarnings = cfg.MaxWarnings

	return config
}

// CreateReportConfig creates a report configuration for the selected output format
func CreateReportConfig(cfg *AppConfig) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(cfg.OutputFormat)
	config.IncludeExtraDetails = cfg.ExtraDetails
	config.MaxListItems = cfg.MaxListItems

	switch config.Format {
	case reporter.FormatJSON:
		// the JSON output feeds other programs; keep warnings, drop the
		// reviewer-oriented ambiguity listing
		config.IncludeAmbiguity = false
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	}

	return config
}

// CreateParserConfig creates the parser and file streaming configurations
func CreateParserConfig(cfg *AppConfig) (*parsers.ParseConfig, *parsers.StreamingConfig) {
	parseConfig := parsers.DefaultParseConfig()
	parseConfig.AllowBareArray = cfg.AllowBareArray
	parseConfig.ValidateSchema = !cfg.SkipSchema

	streamingConfig := parsers.DefaultStreamingConfig()
	streamingConfig.MaxConcurrency = cfg.Concurrency
	streamingConfig.ContinueOnError = !cfg.FailFast

	return parseConfig, streamingConfig
}

// CreateLoggerConfig creates the logger configuration. Logs always go to
// stderr so that reports on stdout stay parseable.
func CreateLoggerConfig(cfg *AppConfig) *logger.Config {
	config := logger.DefaultConfig()
	config.Level = logger.Level(cfg.LogLevel)
	config.Format = logger.Format(cfg.LogFormat)
	config.Output = logger.StderrOutput

	if cfg.Verbose && config.Level != logger.DebugLevel {
		config.Level = logger.InfoLevel
	}
	return config
}
