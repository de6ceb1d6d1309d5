package parsers

import (
	"context"
	"fmt"
	"time"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/sourcegraph/conc/stream"
)

// FileResult is the outcome of parsing one file
type FileResult struct {
	Index int
	Path  string
	Batch *engine.RawBatch
	Stats *ParseStats
	Err   error
}

// FileCallback receives parsed files in input order
type FileCallback func(FileResult) error

// FileStreamer parses several batch files concurrently. Results are always
// delivered in the order of the input paths, so ids assigned downstream do
// not depend on which file finished first.
type FileStreamer struct {
	parser *BatchParser
	config *StreamingConfig
	logger logger.Logger
}

// NewFileStreamer creates a streamer around parser
func NewFileStreamer(parser *BatchParser, config *StreamingConfig) (*FileStreamer, error) {
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if config == nil {
		config = DefaultStreamingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	return &FileStreamer{
		parser: parser,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("file_streamer"),
	}, nil
}

// Stream parses paths and calls fn once per file. A file that fails to
// parse is passed to fn with Err set; unless ContinueOnError is set, that
// error also stops the stream and is returned. An error returned by fn
// always stops the stream.
func (fs *FileStreamer) Stream(ctx context.Context, paths []string, fn FileCallback) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	s := stream.New().WithMaxGoroutines(fs.config.MaxConcurrency)

	// only touched from callbacks, which conc runs one at a time
	var stopErr error
	delivered := 0

	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}

		s.Go(func() stream.Callback {
			result := FileResult{Index: i, Path: path}
			if err := ctx.Err(); err != nil {
				result.Err = errors.InternalError(errors.CodeCancelled, "parsing "+path, err)
			} else {
				result.Batch, result.Stats, result.Err = fs.parser.ParseFile(ctx, path)
			}

			return func() {
				if stopErr != nil {
					return
				}
				if result.Err != nil {
					fs.logger.WithField("file_path", path).WithError(result.Err).Warn("Failed to parse file")
				}

				if err := fn(result); err != nil {
					stopErr = err
				} else if result.Err != nil && !fs.config.ContinueOnError {
					stopErr = result.Err
				}
				if stopErr != nil {
					cancel()
					return
				}
				delivered++
			}
		})
	}
	s.Wait()

	fs.logger.WithFields(logger.Fields{
		"files":     len(paths),
		"delivered": delivered,
		"duration":  time.Since(start),
	}).Debug("File stream finished")

	if stopErr != nil {
		return stopErr
	}
	if err := ctx.Err(); err != nil && delivered < len(paths) {
		return errors.InternalError(errors.CodeCancelled, "file stream", err)
	}
	return nil
}
