package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err for a person and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleSummary(summary)
	}

	var parseErr *errors.EnhancedParseError
	if stderrors.As(err, &parseErr) {
		fmt.Fprintf(h.out, "%s\n", parseErr.GetDetailedError())
		return parseErr.GetExitCode()
	}

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}

	return h.handleGenericError(err)
}

// handleAppError handles AppError with detailed context
func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleSummary reports input files that failed while others were processed
func (h *CLIErrorHandler) handleSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %d input file(s) could not be processed\n", summary.Total)
	for _, err := range summary.SampleErrors {
		fmt.Fprintf(h.out, "  - %s\n", err.Message)
	}
	if extra := summary.Total - len(summary.SampleErrors); extra > 0 {
		fmt.Fprintf(h.out, "  ... and %d more\n", extra)
	}
	fmt.Fprintf(h.out, "\nThe report covers the remaining files.\n")
	return summary.GetExitCode()
}

// handleGenericError handles errors that carry no category
func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case os.IsNotExist(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case os.IsPermission(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the file exists and is readable
• Verify the path (use absolute paths if needed)
• Make sure the output directory exists and is writable`

	case errors.CategoryParse:
		return `Parse error help:
• A batch file must be a JSON object with "invoices", "products" and "customers" arrays
• Use --allow-bare-array for files holding only an array of invoices
• Make sure the file is UTF-8 encoded JSON`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every list in the batch is an array
• Check ids and names passed on the command line`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and NORMALIZER_* environment variables
• Verify the config file syntax if using --config
• Use 'normalizer normalize --help' to see all available options`

	case errors.CategoryNormalization:
		return `Normalization error help:
• The report lists degraded phases and warnings
• Run with --verbose and --log-level debug to see the failing phase`

	default:
		return `For more help:
• Use 'normalizer --help' for general help
• Use 'normalizer <command> --help' for command-specific help`
	}
}

func isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
