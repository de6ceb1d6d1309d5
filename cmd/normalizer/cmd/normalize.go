package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"invoice-normalizer/cmd/normalizer/config"
	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/parsers"
	"invoice-normalizer/internal/reporter"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// normalizeCmd represents the normalize command
var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize and link extracted invoice batches",
	Long: `Normalize reads one or more batch files and produces a single linked dataset.

A batch file is a JSON object with optional "invoices", "products" and
"customers" arrays. Files are parsed concurrently but processed in the order
given, so ids are stable between runs. Each file links against every product
and customer seen in it or in an earlier file.

Examples:
  # Single batch to the console
  normalizer normalize --input batch.json

  # Several batches into one JSON result
  normalizer normalize -i jan.json -i feb.json -f json -o result.json

  # Exact name matching and a workbook
  normalizer normalize -i batch.json --matcher exact -f xlsx -o result.xlsx

  # One JSON line per file as it is processed, then the final result
  normalizer normalize -i a.json -i b.json --stream -f json

  # A file holding only an array of invoices
  normalizer normalize -i invoices.json --allow-bare-array`,

	PreRunE: validateNormalizeFlags,
	RunE:    runNormalize,
}

// appConfig is filled in by validateNormalizeFlags
var appConfig *config.AppConfig

func init() {
	rootCmd.AddCommand(normalizeCmd)

	flags := normalizeCmd.Flags()

	flags.StringSliceP("input", "i", nil, "batch JSON file; repeat or comma-separate for several (required)")

	flags.StringP("output-format", "f", "console", "output format: console, json, csv, xlsx")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")

	flags.String("matcher", "containment", "name matching strategy: containment, exact")
	flags.Bool("no-empty-names", false, "keep invoices and lines without a name unlinked")
	flags.Int("min-name-length", 0, "shortest name allowed to match by containment (0 disables)")

	flags.Bool("stream", false, "write one JSON line per input file before the final result")
	flags.Bool("progress", false, "show progress indicators")
	flags.Bool("allow-bare-array", false, "accept a top-level array of invoices")
	flags.Bool("skip-schema", false, "skip batch envelope validation")
	flags.Int("concurrency", 4, "number of files parsed in parallel")
	flags.Bool("fail-fast", false, "stop at the first file that cannot be read")

	flags.Int("max-warnings", 1000, "maximum warnings kept in the result (0 is unlimited)")
	flags.Bool("extra-details", true, "build the extraDetails text")
	flags.Int("max-list-items", 50, "maximum entries per console section (0 is unlimited)")

	flags.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
}

func validateNormalizeFlags(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	for _, input := range cfg.Inputs {
		if err := validateFileExists(input); err != nil {
			return err
		}
	}

	if cfg.OutputFile != "" {
		dir := filepath.Dir(cfg.OutputFile)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return errors.FileError(errors.CodeDirectoryError, dir, err).
				WithSuggestion("Create the output directory first")
		}
	}

	appConfig = cfg
	return nil
}

func validateFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		return errors.FileError(errors.CodeDirectoryError, path, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, path,
			fmt.Errorf("%s is a directory, expected a batch file", path))
	}
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log, err := logger.NewLogger(config.CreateLoggerConfig(appConfig))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "logging", appConfig.LogLevel, err)
	}
	logger.SetGlobalLogger(log)

	output := io.Writer(cmd.OutOrStdout())
	if appConfig.OutputFile != "" {
		file, err := os.Create(appConfig.OutputFile)
		if err != nil {
			return errors.FileError(errors.CodeFileWriteFailed, appConfig.OutputFile, err)
		}
		defer file.Close()
		output = file
	}

	result, err := normalizeFiles(ctx, appConfig, log, output, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	srg, err := reporter.NewSafeReportGenerator(config.CreateReportConfig(appConfig), log)
	if err != nil {
		return err
	}
	if err := srg.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if appConfig.Verbose {
		printCompletion(cmd.ErrOrStderr(), result)
	}

	return failedInputsError(result)
}

// normalizeFiles runs every input of cfg through one stream and returns the
// final result. With cfg.Stream each increment is written to out as a JSON
// line as soon as its file is processed.
func normalizeFiles(ctx context.Context, cfg *config.AppConfig, log logger.Logger, out, progressOut io.Writer) (*engine.Result, error) {
	matching, err := config.CreateMatchingConfig(cfg)
	if err != nil {
		return nil, err
	}

	service, err := engine.NewService(config.CreateEngineConfig(cfg, matching))
	if err != nil {
		return nil, err
	}
	service = service.WithLogger(log)

	parseConfig, streamingConfig := config.CreateParserConfig(cfg)
	parser, err := parsers.NewBatchParser(parseConfig)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", parseConfig, err)
	}
	streamer, err := parsers.NewFileStreamer(parser, streamingConfig)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "concurrency", cfg.Concurrency, err)
	}

	op := logger.NewOperationLogger("normalize", log).WithField("files", len(cfg.Inputs))
	parseErrors := errors.NewParseErrorCollector(0)

	stream := service.NewStream().Expect(len(cfg.Inputs))
	if cfg.Progress {
		stream.AddProgressCallback(func(p engine.Progress) {
			printProgress(progressOut, p)
		})
	}

	var encoder *json.Encoder
	if cfg.Stream {
		encoder = json.NewEncoder(out)
		encoder.SetEscapeHTML(false)
	}

	err = streamer.Stream(ctx, cfg.Inputs, func(fr parsers.FileResult) error {
		if fr.Err != nil {
			var parseErr *errors.EnhancedParseError
			if stderrors.As(fr.Err, &parseErr) {
				parseErrors.Add(parseErr)
			}
			stream.Fail(fr.Path, fr.Err)
			return nil
		}
		op.Step("parsed " + filepath.Base(fr.Path))

		log.WithFields(logger.Fields{
			"file_path": fr.Path,
			"stats":     fr.Stats.String(),
		}).Debug("Parsed batch file")

		increment, err := stream.Add(ctx, fr.Path, fr.Batch)
		if err != nil {
			stream.Fail(fr.Path, err)
			return err
		}

		if encoder != nil {
			if err := encoder.Encode(increment); err != nil {
				return errors.FileError(errors.CodeFileWriteFailed, "stream output", err)
			}
		}
		return nil
	})

	result := stream.Finish()
	if cfg.Progress {
		fmt.Fprintln(progressOut)
	}

	if err != nil {
		op.Error(err, "Normalization failed")
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "normalization failed")
	}

	if parseErrors.HasErrors() && cfg.Verbose {
		fmt.Fprintf(progressOut, "%s\n", errors.FormatParseErrorsForUser(parseErrors.GetErrors()))
	}
	op.Success("Normalization completed")
	return result, nil
}

func printProgress(w io.Writer, p engine.Progress) {
	switch p.Status {
	case engine.ProgressError:
		fmt.Fprintf(w, "\r[%d/%d] %s failed: %s\n", p.CurrentFile, p.TotalFiles, p.Source, p.Error)
	case engine.ProgressFinished:
		fmt.Fprintf(w, "\rDone: %d invoices, %d products, %d customers in %v",
			p.Invoices, p.Products, p.Customers, p.Elapsed.Round(time.Millisecond))
	default:
		fmt.Fprintf(w, "\r[%d/%d] %s %s (%d invoices)", p.CurrentFile, p.TotalFiles, p.Status, p.Source, p.Invoices)
	}
}

func printCompletion(w io.Writer, result *engine.Result) {
	fmt.Fprintf(w, "\nNormalization completed.\n")
	if result.Summary == nil {
		return
	}
	s := result.Summary
	fmt.Fprintf(w, "Processed %d invoices, %d products and %d customers.\n",
		s.InvoiceCount, s.ProductCount, s.CustomerCount)
	fmt.Fprintf(w, "Linked %d invoices to a customer and %d lines to a product.\n",
		s.LinkedInvoices, s.LinkedItems)
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d records.\n", len(s.Skipped))
	}
	fmt.Fprintf(w, "Processing time: %v\n", s.Duration)
}

// failedInputsError reports input files that could not be processed after
// the report for the others has been written
func failedInputsError(result *engine.Result) error {
	var failed []*errors.AppError
	for _, f := range result.Files {
		if f.Status != engine.FileStatusError {
			continue
		}
		failed = append(failed, errors.New(errors.CategoryFile, errors.CodeRecordSkipped,
			fmt.Sprintf("%s: %s", f.File, f.Error)))
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.NewErrorSummary(failed)
}
