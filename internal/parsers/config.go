package parsers

import (
	"fmt"
)

// ParseConfig holds configuration for reading batch files
type ParseConfig struct {
	// AllowBareArray reads a top-level array as the invoices of a batch
	// with no products or customers
	AllowBareArray bool `json:"allow_bare_array"`

	// ValidateSchema checks the batch envelope before it is converted
	ValidateSchema bool `json:"validate_schema"`

	// ValidateEncoding rejects input that is not valid UTF-8
	ValidateEncoding bool `json:"validate_encoding"`

	// MaxFileSize is the largest input accepted, in bytes. 0 means unlimited.
	MaxFileSize int64 `json:"max_file_size"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		AllowBareArray:   false,
		ValidateSchema:   true,
		ValidateEncoding: true,
		MaxFileSize:      64 << 20,
	}
}

// Validate checks if the parse configuration is valid
func (pc *ParseConfig) Validate() error {
	if pc.MaxFileSize < 0 {
		return fmt.Errorf("max file size cannot be negative, got %d", pc.MaxFileSize)
	}
	return nil
}

// StreamingConfig holds configuration for reading many files
type StreamingConfig struct {
	MaxConcurrency  int  `json:"max_concurrency"`
	ContinueOnError bool `json:"continue_on_error"`
}

// DefaultStreamingConfig returns a configuration with sensible defaults for streaming
func DefaultStreamingConfig() *StreamingConfig {
	return &StreamingConfig{
		MaxConcurrency:  4,
		ContinueOnError: true,
	}
}

// Validate checks if the streaming configuration is valid
func (sc *StreamingConfig) Validate() error {
	if sc.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", sc.MaxConcurrency)
	}
	return nil
}
