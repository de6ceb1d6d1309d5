package parsers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"
)

// BatchParser turns JSON extraction output into raw batches
type BatchParser struct {
	*BaseParser
	envelope *envelopeValidator
}

// NewBatchParser creates a new batch parser
func NewBatchParser(config *ParseConfig) (*BatchParser, error) {
	if config == nil {
		config = DefaultParseConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", config.MaxFileSize, err)
	}

	envelope, err := compileEnvelope()
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "batch schema compilation", err)
	}

	return &BatchParser{
		BaseParser: NewBaseParser(config),
		envelope:   envelope,
	}, nil
}

// ParseFile reads the batch stored at filePath
func (bp *BatchParser) ParseFile(ctx context.Context, filePath string) (*engine.RawBatch, *ParseStats, error) {
	file, err := bp.OpenFile(filePath)
	if err != nil {
		return nil, NewParseStats(filePath), err
	}
	defer file.Close()

	return bp.Parse(ctx, filePath, file)
}

// Parse reads one batch from r. name identifies the input in errors and
// becomes the batch's Source.
func (bp *BatchParser) Parse(ctx context.Context, name string, r io.Reader) (*engine.RawBatch, *ParseStats, error) {
	start := time.Now()
	stats := NewParseStats(name)
	log := bp.logger.WithField("source", name)

	data, err := bp.readAll(name, r)
	if err != nil {
		return nil, stats, err
	}
	stats.Bytes = len(data)

	if err := ctx.Err(); err != nil {
		return nil, stats, errors.InternalError(errors.CodeCancelled, "parsing "+name, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, stats, errors.ParseError(errors.CodeInvalidFormat, name, fmt.Errorf("document is empty"))
	}

	value, err := models.DecodeJSONBytes(data)
	if err != nil {
		log.WithError(err).Warn("Failed to decode batch")
		return nil, stats, syntaxError(name, data, err)
	}

	var batch *engine.RawBatch
	switch v := value.(type) {
	case []interface{}:
		if !bp.config.AllowBareArray {
			return nil, stats, errors.SchemaViolationError(name, "",
				"top level is an array; enable bare arrays to read it as a list of invoices")
		}
		batch = &engine.RawBatch{Source: name, Invoices: v}
		stats.BareArray = true

	case *models.Record:
		if bp.config.ValidateSchema {
			if err := bp.envelope.validate(name, v); err != nil {
				log.WithError(err).Warn("Batch envelope rejected")
				return nil, stats, err
			}
		}
		batch, err = engine.BatchFromRecord(name, v)
		if err != nil {
			return nil, stats, err
		}

	default:
		return nil, stats, errors.SchemaViolationError(name, "",
			fmt.Sprintf("top level is %s, expected an object", models.TypeName(value)))
	}

	stats.Invoices = len(batch.Invoices)
	stats.Products = len(batch.Products)
	stats.Customers = len(batch.Customers)
	stats.Duration = time.Since(start)

	log.WithFields(logger.Fields{
		"bytes":     stats.Bytes,
		"invoices":  stats.Invoices,
		"products":  stats.Products,
		"customers": stats.Customers,
	}).Debug("Parsed batch")

	return batch, stats, nil
}

// syntaxError locates a decoding failure in the input where possible
func syntaxError(name string, data []byte, err error) error {
	var se *json.SyntaxError
	if stderrors.As(err, &se) {
		return errors.JSONSyntaxError(name, data, se.Offset, err)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF) {
		return errors.JSONSyntaxError(name, data, int64(len(data)), fmt.Errorf("unexpected end of input"))
	}
	return errors.ParseError(errors.CodeInvalidJSON, name, err)
}
