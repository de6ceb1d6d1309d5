package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/models"
	"invoice-normalizer/internal/reporter"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"

	"github.com/spf13/cobra"
)

// Entity kinds accepted by the rename command
const (
	kindProduct  = "product"
	kindCustomer = "customer"
)

type renameOptions struct {
	input  string
	output string
	kind   string
	id     int
	name   string
}

var renameOpts renameOptions

// renameCmd represents the rename command
var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename a product or customer in a normalized result",
	Long: `Rename changes the name of one product or customer in a JSON result written
by "normalize -f json" and updates every invoice that refers to it.

Renaming a product sets the name of every line item linked to it. Renaming a
customer sets the customer of every linked invoice; when the invoice stores
the customer as an object only its "name" key changes.

Examples:
  normalizer rename --input result.json --kind product --id 3 --name "Steel Rod 12mm"
  normalizer rename --input result.json --kind customer --id 1 --name "J. Smith" -o renamed.json`,

	PreRunE: validateRenameFlags,
	RunE:    runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)

	renameCmd.Flags().StringVar(&renameOpts.input, "input", "", "normalized JSON result (required)")
	renameCmd.Flags().StringVarP(&renameOpts.output, "output-file", "o", "", "output file path (default: stdout)")
	renameCmd.Flags().StringVar(&renameOpts.kind, "kind", "", "entity kind: product, customer (required)")
	renameCmd.Flags().IntVar(&renameOpts.id, "id", 0, "id of the entity to rename (required)")
	renameCmd.Flags().StringVar(&renameOpts.name, "name", "", "new name (required)")

	renameCmd.MarkFlagRequired("input")
	renameCmd.MarkFlagRequired("kind")
	renameCmd.MarkFlagRequired("id")
	renameCmd.MarkFlagRequired("name")
}

func validateRenameFlags(cmd *cobra.Command, args []string) error {
	renameOpts.kind = strings.ToLower(strings.TrimSpace(renameOpts.kind))
	if renameOpts.kind != kindProduct && renameOpts.kind != kindCustomer {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "kind", renameOpts.kind,
			fmt.Errorf("kind must be %s or %s", kindProduct, kindCustomer))
	}
	if renameOpts.id <= 0 {
		return errors.ValidationError(errors.CodeOutOfRange, "id", renameOpts.id,
			fmt.Errorf("ids start at 1"))
	}
	if strings.TrimSpace(renameOpts.name) == "" {
		return errors.ValidationError(errors.CodeMissingField, "name", renameOpts.name, nil)
	}
	return validateFileExists(renameOpts.input)
}

func runRename(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("rename")

	file, err := os.Open(renameOpts.input)
	if err != nil {
		return errors.FileError(errors.CodeFileNotFound, renameOpts.input, err)
	}
	defer file.Close()

	var (
		renamed *engine.Result
		changed int
	)
	err = logger.TimedOperation("rename", log, func() error {
		var err error
		renamed, changed, err = renameResult(file, renameOpts)
		return err
	})
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"kind":    renameOpts.kind,
		"id":      renameOpts.id,
		"changed": changed,
	}).Debug("Rename applied")

	output := io.Writer(cmd.OutOrStdout())
	if renameOpts.output != "" {
		out, err := os.Create(renameOpts.output)
		if err != nil {
			return errors.FileError(errors.CodeFileWriteFailed, renameOpts.output, err)
		}
		defer out.Close()
		output = out
	}

	reportConfig := reporter.DefaultReportConfig()
	reportConfig.Format = reporter.FormatJSON
	srg, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}
	if err := srg.GenerateReportSafely(renamed, output); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Renamed %s %d to %q (%d records changed)\n",
		renameOpts.kind, renameOpts.id, renameOpts.name, changed)
	return nil
}

// renameResult reads a JSON result from r and applies the rename in opts
func renameResult(r io.Reader, opts renameOptions) (*engine.Result, int, error) {
	doc, err := models.DecodeJSON(r)
	if err != nil {
		return nil, 0, errors.ParseError(errors.CodeInvalidJSON, opts.input, err)
	}
	rec, ok := doc.(*models.Record)
	if !ok {
		return nil, 0, errors.ParseError(errors.CodeInvalidFormat, opts.input,
			fmt.Errorf("expected a JSON object, got %s", models.TypeName(doc)))
	}

	result, err := engine.ResultFromRecord(rec)
	if err != nil {
		return nil, 0, err
	}

	var (
		renamed *engine.Result
		changed int
	)
	switch opts.kind {
	case kindProduct:
		renamed, changed = engine.RenameProduct(result, opts.id, opts.name)
	case kindCustomer:
		renamed, changed = engine.RenameCustomer(result, opts.id, opts.name)
	default:
		return nil, 0, errors.ConfigurationError(errors.CodeInvalidConfig, "kind", opts.kind, nil)
	}

	if changed == 0 {
		return nil, 0, errors.ValidationError(errors.CodeEntityNotFound, "id", opts.id,
			fmt.Errorf("no %s with id %d", opts.kind, opts.id)).
			WithSuggestion("Check the ids in the products or customers list of the result")
	}
	return renamed, changed, nil
}
