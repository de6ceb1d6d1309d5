// Package engine orchestrates invoice normalization.
//
// This package coordinates the whole normalization workflow:
//   - entity normalization with batch-scoped id assignment
//   - linking invoice customers and line items to entities
//   - line breakdowns and invoice totals
//   - product and customer aggregation
//   - the extraDetails text summary and ambiguity diagnostics
//
// A Service processes a single batch. A Stream accepts several batches in
// turn, links each one against everything seen so far, and re-aggregates on
// demand, so that callers can report results incrementally.
//
// Example usage:
//
//	service, err := engine.NewService(engine.DefaultConfig())
//	batch, err := engine.NewRawBatch(invoices, products, customers)
//	result, err := service.Process(ctx, batch)
//
// Post-linking phases never abort a batch: if one fails, it is reported
// as a warning and its output falls back to the pre-phase value.
package engine

import (
	"context"

	"invoice-normalizer/internal/matcher"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"
)

// Service normalizes raw extraction batches
type Service struct {
	config *Config
	linker *matcher.Linker
	logger logger.Logger
}

// NewService creates a new normalization service
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "engine", config.Matching, err)
	}

	linker, err := matcher.NewLinker(config.Matching)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.Matching, err)
	}

	log := logger.GetGlobalLogger().WithComponent("engine")
	log.WithField("matching", config.Matching.String()).Debug("Normalization service created")

	return &Service{
		config: config,
		linker: linker.WithLogger(log),
		logger: log,
	}, nil
}

// WithLogger sets the logger used by the service and the streams it opens
func (s *Service) WithLogger(log logger.Logger) *Service {
	clone := *s
	clone.logger = log.WithComponent("engine")
	clone.linker = s.linker.WithLogger(log)
	return &clone
}

// WithMatcher replaces the name comparison used for linking
func (s *Service) WithMatcher(m matcher.NameMatcher) *Service {
	clone := *s
	clone.linker = s.linker.WithMatcher(m)
	return &clone
}

// GetConfiguration returns the current configuration
func (s *Service) GetConfiguration() *Config {
	return s.config
}

// Process normalizes one batch. The only error conditions are a cancelled
// context and an invalid service state; malformed records are skipped and
// reported in the result summary.
func (s *Service) Process(ctx context.Context, batch *RawBatch) (*Result, error) {
	if batch == nil {
		batch = &RawBatch{}
	}

	stream := s.NewStream()
	stream.trackFiles = batch.Source != ""
	if _, err := stream.Add(ctx, batch.Source, batch); err != nil {
		return nil, err
	}
	return stream.Finish(), nil
}
