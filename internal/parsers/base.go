// Package parsers reads extraction batches from JSON files.
//
// A batch file is either an object with invoices, products and customers
// arrays (the extraction service's output), or, when allowed, a bare array
// of invoices. The parser checks the envelope, decodes records with their
// key order preserved and hands back an engine.RawBatch. Individual records
// are not validated here; the engine skips the unusable ones.
//
// Example usage:
//
//	parser, err := NewBatchParser(DefaultParseConfig())
//	batch, stats, err := parser.ParseFile(ctx, "extraction.json")
//
//	// several files, parsed concurrently and delivered in order
//	streamer, err := NewFileStreamer(parser, DefaultStreamingConfig())
//	err = streamer.Stream(ctx, paths, func(r FileResult) error { ... })
package parsers

import (
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"
)

// BaseParser provides file access shared by the parsers
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("parser")
	log.WithFields(logger.Fields{
		"allow_bare_array":  config.AllowBareArray,
		"validate_schema":   config.ValidateSchema,
		"validate_encoding": config.ValidateEncoding,
		"max_file_size":     config.MaxFileSize,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// OpenFile opens a batch file for reading
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening batch file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open batch file")

		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	info, err := file.Stat()
	if err == nil && info.IsDir() {
		file.Close()
		return nil, errors.FileError(errors.CodeDirectoryError, filePath, fmt.Errorf("is a directory"))
	}

	return file, nil
}

// readAll reads r up to the configured size limit and checks its encoding
func (bp *BaseParser) readAll(name string, r io.Reader) ([]byte, error) {
	if limit := bp.config.MaxFileSize; limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, name, err)
	}

	if limit := bp.config.MaxFileSize; limit > 0 && int64(len(data)) > limit {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "file_size", name,
			fmt.Errorf("input exceeds %d bytes", limit)).
			WithSuggestion("split the extraction output into smaller batches or raise max_file_size")
	}

	if bp.config.ValidateEncoding && !utf8.Valid(data) {
		bp.logger.WithField("source", name).Error("Input is not valid UTF-8")
		return nil, errors.ParseError(errors.CodeEncodingError, name, fmt.Errorf("invalid UTF-8 encoding detected"))
	}

	return data, nil
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	Source    string        `json:"source"`
	Bytes     int           `json:"bytes"`
	Invoices  int           `json:"invoices"`
	Products  int           `json:"products"`
	Customers int           `json:"customers"`
	BareArray bool          `json:"bareArray,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(source string) *ParseStats {
	return &ParseStats{Source: source}
}

// Records returns the number of top-level records read
func (ps *ParseStats) Records() int {
	return ps.Invoices + ps.Products + ps.Customers
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %s (%d bytes): %d invoices, %d products, %d customers",
		ps.Source, ps.Bytes, ps.Invoices, ps.Products, ps.Customers)
}
