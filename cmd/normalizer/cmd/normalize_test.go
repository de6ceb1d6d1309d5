package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invoice-normalizer/cmd/normalizer/config"
	"invoice-normalizer/internal/engine"
	"invoice-normalizer/internal/reporter"
	"invoice-normalizer/pkg/errors"
	"invoice-normalizer/pkg/logger"
)

const testDataDir = "../../../testdata"

func testConfig(inputs ...string) *config.AppConfig {
	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = filepath.Join(testDataDir, in)
	}
	return &config.AppConfig{
		Inputs:       paths,
		OutputFormat: "json",
		Matcher:      "containment",
		Concurrency:  2,
		MaxWarnings:  100,
		ExtraDetails: true,
		MaxListItems: 50,
		LogLevel:     "error",
		LogFormat:    "text",
	}
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "batch.json")
	if err := os.WriteFile(validFile, []byte(`{"invoices": []}`), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		filePath string
		wantCode errors.ErrorCode
	}{
		{
			name:     "valid file",
			filePath: validFile,
		},
		{
			name:     "non-existent file",
			filePath: filepath.Join(tmpDir, "missing.json"),
			wantCode: errors.CodeFileNotFound,
		},
		{
			name:     "directory instead of file",
			filePath: tmpDir,
			wantCode: errors.CodeDirectoryError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath)

			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCodeInChain(err, tt.wantCode) {
				t.Errorf("expected %s error, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestNormalizeFiles_LinksAcrossFiles(t *testing.T) {
	cfg := testConfig("entities_only.json", "bare_invoices.json")
	cfg.AllowBareArray = true

	result, err := normalizeFiles(context.Background(), cfg, logger.NewNopLogger(), &bytes.Buffer{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(result.Invoices))
	}
	first := result.Invoices[0]
	if first.CustomerID == nil || *first.CustomerID != 1 {
		t.Errorf("expected invoice B-1 to link to the customer from the first file")
	}
	if first.Items[0].ProductID == nil || *first.Items[0].ProductID != 1 {
		t.Errorf("expected Bolt to link to the product from the first file")
	}

	if len(result.Products) != 1 || result.Products[0].Quantity != 4 {
		t.Errorf("expected Bolt quantity 4, got %+v", result.Products)
	}

	if len(result.Files) != 2 {
		t.Fatalf("expected 2 file statuses, got %d", len(result.Files))
	}
	for _, f := range result.Files {
		if f.Status != engine.FileStatusSuccess {
			t.Errorf("expected %s to succeed, got %s (%s)", f.File, f.Status, f.Error)
		}
	}
	if err := failedInputsError(result); err != nil {
		t.Errorf("expected no failed inputs, got %v", err)
	}
}

func TestNormalizeFiles_ContinuesPastBadFiles(t *testing.T) {
	cfg := testConfig("batch_basic.json", "malformed.json", "bare_invoices.json")

	result, err := normalizeFiles(context.Background(), cfg, logger.NewNopLogger(), &bytes.Buffer{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// bare_invoices.json is rejected without --allow-bare-array
	failed := 0
	for _, f := range result.Files {
		if f.Status == engine.FileStatusError {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 failed files, got %d: %+v", failed, result.Files)
	}
	if len(result.Invoices) != 3 {
		t.Errorf("expected the 3 invoices of batch_basic.json, got %d", len(result.Invoices))
	}

	summaryErr := failedInputsError(result)
	if summaryErr == nil {
		t.Fatal("expected failed inputs to be reported")
	}
	if summary, ok := summaryErr.(*errors.ErrorSummary); !ok || summary.Total != 2 {
		t.Errorf("expected a summary of 2 errors, got %v", summaryErr)
	}
}

func TestNormalizeFiles_FailFast(t *testing.T) {
	cfg := testConfig("malformed.json", "batch_basic.json")
	cfg.FailFast = true

	_, err := normalizeFiles(context.Background(), cfg, logger.NewNopLogger(), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected the malformed file to stop the run")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Category != errors.CategoryParse {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestNormalizeFiles_StreamLines(t *testing.T) {
	cfg := testConfig("entities_only.json", "batch_basic.json")
	cfg.Stream = true

	var out bytes.Buffer
	result, err := normalizeFiles(context.Background(), cfg, logger.NewNopLogger(), &out, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sources []string
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("stream line is not JSON: %v", err)
		}
		sources = append(sources, filepath.Base(line["source"].(string)))
	}

	want := []string{"entities_only.json", "batch_basic.json"}
	if strings.Join(sources, ",") != strings.Join(want, ",") {
		t.Errorf("expected increments in input order %v, got %v", want, sources)
	}
	if len(result.Products) != 3 {
		t.Errorf("expected products from both files, got %d", len(result.Products))
	}
}

func TestNormalizeFiles_Progress(t *testing.T) {
	cfg := testConfig("batch_basic.json")
	cfg.Progress = true

	var progress bytes.Buffer
	if _, err := normalizeFiles(context.Background(), cfg, logger.NewNopLogger(), &bytes.Buffer{}, &progress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := progress.String()
	if !strings.Contains(output, "[1/1] complete") {
		t.Errorf("expected per-file progress, got %q", output)
	}
	if !strings.Contains(output, "Done: 3 invoices") {
		t.Errorf("expected final progress line, got %q", output)
	}
}

func TestNormalizeFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := normalizeFiles(ctx, testConfig("batch_basic.json"), logger.NewNopLogger(), &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.HasCodeInChain(err, errors.CodeCancelled) {
		t.Errorf("expected cancelled error, got %v", err)
	}
}

func TestRenameResult(t *testing.T) {
	result, err := normalizeFiles(context.Background(), testConfig("batch_basic.json"), logger.NewNopLogger(), &bytes.Buffer{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reportConfig := reporter.DefaultReportConfig()
	reportConfig.Format = reporter.FormatJSON
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	var written bytes.Buffer
	if err := generator.GenerateReport(result, &written); err != nil {
		t.Fatalf("failed to write result: %v", err)
	}
	data := written.Bytes()

	t.Run("product", func(t *testing.T) {
		renamed, changed, err := renameResult(bytes.NewReader(data), renameOptions{
			input: "result.json", kind: kindProduct, id: 1, name: "Steel Rod",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// the product plus "Steel Rod 10mm" and "Rod" lines
		if changed != 3 {
			t.Errorf("expected 3 changes, got %d", changed)
		}
		if renamed.Products[0].Name != "Steel Rod" {
			t.Errorf("product not renamed: %q", renamed.Products[0].Name)
		}
		if name := renamed.Invoices[0].Items[0].Name(); name != "Steel Rod" {
			t.Errorf("line item not renamed: %q", name)
		}
	})

	t.Run("customer object keeps other keys", func(t *testing.T) {
		renamed, changed, err := renameResult(bytes.NewReader(data), renameOptions{
			input: "result.json", kind: kindCustomer, id: 2, name: "Acme Traders LLP",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed != 2 {
			t.Errorf("expected 2 changes, got %d", changed)
		}
		if got := renamed.Invoices[1].CustomerName(); got != "Acme Traders LLP" {
			t.Errorf("invoice customer not renamed: %q", got)
		}
		customer, _ := renamed.Invoices[1].Fields.Record("customer")
		if addr, _ := customer.String("address"); addr != "4 Market Rd" {
			t.Errorf("expected address to be kept, got %q", addr)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := renameResult(bytes.NewReader(data), renameOptions{
			input: "result.json", kind: kindProduct, id: 99, name: "Nothing",
		})
		if !errors.HasCodeInChain(err, errors.CodeEntityNotFound) {
			t.Errorf("expected entity_not_found, got %v", err)
		}
	})

	t.Run("not a result", func(t *testing.T) {
		_, _, err := renameResult(strings.NewReader(`[1, 2]`), renameOptions{
			input: "list.json", kind: kindProduct, id: 1, name: "x",
		})
		if !errors.HasCodeInChain(err, errors.CodeInvalidFormat) {
			t.Errorf("expected invalid_format, got %v", err)
		}
	})
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{
			name:     "nil",
			err:      nil,
			wantCode: 0,
		},
		{
			name:     "file error",
			err:      errors.FileError(errors.CodeFileNotFound, "batch.json", os.ErrNotExist),
			wantCode: 2,
			wantText: "File error help",
		},
		{
			name:     "configuration error",
			err:      errors.ConfigurationError(errors.CodeConfigConflict, "stream", "csv", nil),
			wantCode: 4,
			wantText: "Configuration error help",
		},
		{
			name:     "syntax error",
			err:      errors.JSONSyntaxError("batch.json", []byte("{\n  \"invoices\": [}\n"), 17, nil),
			wantCode: 3,
			wantText: "Line: 2",
		},
		{
			name: "failed inputs",
			err: errors.NewErrorSummary([]*errors.AppError{
				errors.New(errors.CategoryFile, errors.CodeRecordSkipped, "a.json: broken"),
			}),
			wantCode: 2,
			wantText: "1 input file(s) could not be processed",
		},
		{
			name:     "plain error",
			err:      os.ErrPermission,
			wantCode: 2,
			wantText: "Permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &CLIErrorHandler{logger: logger.NewNopLogger(), out: &out}

			if code := h.HandleError(tt.err); code != tt.wantCode {
				t.Errorf("expected exit code %d, got %d", tt.wantCode, code)
			}
			if !strings.Contains(out.String(), tt.wantText) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.wantText, out.String())
			}
		})
	}
}
