package engine

import (
	"fmt"

	"invoice-normalizer/internal/matcher"
)

// Config holds configuration options for the normalization service
type Config struct {
	// Matching configures how invoice names are linked to entities
	Matching *matcher.MatchingConfig

	// BuildExtraDetails controls whether the text summary is produced
	BuildExtraDetails bool

	// AnalyzeAmbiguity runs the ambiguity detector over the entity names
	AnalyzeAmbiguity bool

	// ProgressReporting logs per-source progress through the logger
	ProgressReporting bool

	// MaxWarnings caps the warnings kept in a result. 0 means unlimited.
	MaxWarnings int
}

// DefaultConfig returns a default configuration for the service
func DefaultConfig() *Config {
	return &Config{
		Matching:          matcher.DefaultMatchingConfig(),
		BuildExtraDetails: true,
		AnalyzeAmbiguity:  true,
		ProgressReporting: false,
		MaxWarnings:       1000,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}

	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	if c.MaxWarnings < 0 {
		return fmt.Errorf("max warnings cannot be negative, got %d", c.MaxWarnings)
	}

	return nil
}
