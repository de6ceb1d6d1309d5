package parsers

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"invoice-normalizer/internal/models"
	"invoice-normalizer/pkg/errors"
)

const testDataDir = "../../testdata"

// Helper function to get test file path
func getTestFilePath(filename string) string {
	return filepath.Join(testDataDir, filename)
}

// Helper function to create temporary JSON file
func createTempJSONFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

func newTestParser(t *testing.T, config *ParseConfig) *BatchParser {
	t.Helper()
	parser, err := NewBatchParser(config)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	return parser
}

func TestDefaultParseConfig(t *testing.T) {
	config := DefaultParseConfig()

	if config.AllowBareArray {
		t.Error("Expected AllowBareArray to be false")
	}

	if !config.ValidateSchema {
		t.Error("Expected ValidateSchema to be true")
	}

	if !config.ValidateEncoding {
		t.Error("Expected ValidateEncoding to be true")
	}

	if config.MaxFileSize <= 0 {
		t.Errorf("Expected a positive MaxFileSize, got %d", config.MaxFileSize)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"default parse config", DefaultParseConfig().Validate(), false},
		{"negative file size", (&ParseConfig{MaxFileSize: -1}).Validate(), true},
		{"default streaming config", DefaultStreamingConfig().Validate(), false},
		{"zero concurrency", (&StreamingConfig{MaxConcurrency: 0}).Validate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", tt.err, tt.wantErr)
			}
		})
	}
}

func TestBatchParser_ParseFile(t *testing.T) {
	parser := newTestParser(t, nil)

	batch, stats, err := parser.ParseFile(context.Background(), getTestFilePath("batch_basic.json"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if batch.Source != getTestFilePath("batch_basic.json") {
		t.Errorf("Expected source to be the file path, got %q", batch.Source)
	}

	if len(batch.Invoices) != 4 || len(batch.Products) != 3 || len(batch.Customers) != 2 {
		t.Errorf("Expected 4/3/2 records, got %d/%d/%d",
			len(batch.Invoices), len(batch.Products), len(batch.Customers))
	}

	if stats.Records() != 9 {
		t.Errorf("Expected 9 records in stats, got %d", stats.Records())
	}

	first, ok := batch.Invoices[0].(*models.Record)
	if !ok {
		t.Fatalf("Expected first invoice to be an object, got %T", batch.Invoices[0])
	}

	keys := strings.Join(first.Keys(), ",")
	if keys != "serial,date,customer,gstin,taxes,items" {
		t.Errorf("Expected key order to be preserved, got %s", keys)
	}

	if _, ok := batch.Invoices[2].(string); !ok {
		t.Errorf("Expected non-object invoice to pass through, got %T", batch.Invoices[2])
	}
}

func TestBatchParser_BareArray(t *testing.T) {
	path := getTestFilePath("bare_invoices.json")

	_, _, err := newTestParser(t, nil).ParseFile(context.Background(), path)
	if !errors.HasCodeInChain(err, errors.CodeSchemaViolation) {
		t.Errorf("Expected schema violation for bare array, got %v", err)
	}

	config := DefaultParseConfig()
	config.AllowBareArray = true
	batch, stats, err := newTestParser(t, config).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if len(batch.Invoices) != 2 || len(batch.Products) != 0 {
		t.Errorf("Expected 2 invoices and no products, got %d and %d", len(batch.Invoices), len(batch.Products))
	}

	if !stats.BareArray {
		t.Error("Expected stats to record a bare array")
	}
}

func TestBatchParser_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		code     errors.ErrorCode
		contains string
	}{
		{
			name:     "products not an array",
			content:  `{"invoices": [], "products": {"name": "Rod"}}`,
			code:     errors.CodeSchemaViolation,
			contains: "/products",
		},
		{
			name:     "customers is a string",
			content:  `{"customers": "Smith"}`,
			code:     errors.CodeSchemaViolation,
			contains: "/customers",
		},
		{
			name:    "scalar top level",
			content: `42`,
			code:    errors.CodeSchemaViolation,
		},
		{
			name:    "truncated document",
			content: `{"invoices": [`,
			code:    errors.CodeInvalidJSON,
		},
		{
			name:    "trailing data",
			content: `{"invoices": []} {}`,
			code:    errors.CodeInvalidJSON,
		},
		{
			name:    "empty document",
			content: "  \n",
			code:    errors.CodeInvalidFormat,
		},
		{
			name:    "invalid encoding",
			content: "{\"invoices\": [\"\xff\xfe\"]}",
			code:    errors.CodeEncodingError,
		},
	}

	parser := newTestParser(t, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parser.Parse(context.Background(), "input.json", strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("Expected an error")
			}

			if !errors.HasCodeInChain(err, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}

			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Expected error to mention %q, got %q", tt.contains, err.Error())
			}
		})
	}
}

func TestBatchParser_WithoutSchema(t *testing.T) {
	config := DefaultParseConfig()
	config.ValidateSchema = false

	_, _, err := newTestParser(t, config).ParseFile(context.Background(), getTestFilePath("invalid_envelope.json"))
	if !errors.HasCodeInChain(err, errors.CodeBatchNotArray) {
		t.Errorf("Expected batch_not_array without schema validation, got %v", err)
	}
}

func TestBatchParser_SyntaxErrorLocation(t *testing.T) {
	_, _, err := newTestParser(t, nil).ParseFile(context.Background(), getTestFilePath("malformed.json"))

	var parseErr *errors.EnhancedParseError
	if !stderrors.As(err, &parseErr) {
		t.Fatalf("Expected EnhancedParseError, got %T: %v", err, err)
	}

	if parseErr.Location.Line != 3 {
		t.Errorf("Expected error on line 3, got %d", parseErr.Location.Line)
	}

	if !strings.Contains(parseErr.LineContent, `"X-1"`) {
		t.Errorf("Expected line content to show the invoice, got %q", parseErr.LineContent)
	}
}

func TestBatchParser_FileErrors(t *testing.T) {
	parser := newTestParser(t, nil)

	_, _, err := parser.ParseFile(context.Background(), getTestFilePath("missing.json"))
	if !errors.HasCodeInChain(err, errors.CodeFileNotFound) {
		t.Errorf("Expected file_not_found, got %v", err)
	}

	_, _, err = parser.ParseFile(context.Background(), t.TempDir())
	if !errors.HasCodeInChain(err, errors.CodeDirectoryError) {
		t.Errorf("Expected directory_error, got %v", err)
	}

	config := DefaultParseConfig()
	config.MaxFileSize = 8
	path := createTempJSONFile(t, `{"invoices": []}`)
	_, _, err = newTestParser(t, config).ParseFile(context.Background(), path)
	if !errors.HasCodeInChain(err, errors.CodeOutOfRange) {
		t.Errorf("Expected out_of_range for oversized input, got %v", err)
	}
}

func TestBatchParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestParser(t, nil).ParseFile(ctx, getTestFilePath("batch_basic.json"))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFileStreamer_OrderedDelivery(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 12; i++ {
		// larger files first so that they tend to finish last
		items := strings.Repeat(`{"name": "Bolt", "qty": 1},`, (12-i)*200)
		content := fmt.Sprintf(`{"invoices": [{"serial": "S-%d", "items": [%s{}]}]}`, i, items)
		path := filepath.Join(dir, fmt.Sprintf("batch_%02d.json", i))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		paths = append(paths, path)
	}

	streamer, err := NewFileStreamer(newTestParser(t, nil), &StreamingConfig{MaxConcurrency: 4, ContinueOnError: true})
	if err != nil {
		t.Fatalf("NewFileStreamer() error = %v", err)
	}

	var mu sync.Mutex
	var got []int
	err = streamer.Stream(context.Background(), paths, func(r FileResult) error {
		mu.Lock()
		defer mu.Unlock()
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Path, r.Err)
		}
		got = append(got, r.Index)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(got) != len(paths) {
		t.Fatalf("Expected %d results, got %d", len(paths), len(got))
	}
	for i, idx := range got {
		if idx != i {
			t.Errorf("Expected result %d at position %d, got %d", i, i, idx)
		}
	}
}

func TestFileStreamer_Errors(t *testing.T) {
	paths := []string{
		getTestFilePath("batch_basic.json"),
		getTestFilePath("malformed.json"),
		getTestFilePath("bare_invoices.json"),
	}

	t.Run("continue on error", func(t *testing.T) {
		streamer, _ := NewFileStreamer(newTestParser(t, nil), &StreamingConfig{MaxConcurrency: 2, ContinueOnError: true})

		var failed []string
		count := 0
		err := streamer.Stream(context.Background(), paths, func(r FileResult) error {
			count++
			if r.Err != nil {
				failed = append(failed, filepath.Base(r.Path))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3 callbacks, got %d", count)
		}
		if strings.Join(failed, ",") != "malformed.json,bare_invoices.json" {
			t.Errorf("Unexpected failed files: %v", failed)
		}
	})

	t.Run("stop on error", func(t *testing.T) {
		streamer, _ := NewFileStreamer(newTestParser(t, nil), &StreamingConfig{MaxConcurrency: 1, ContinueOnError: false})

		count := 0
		err := streamer.Stream(context.Background(), paths, func(r FileResult) error {
			count++
			return nil
		})
		if !errors.HasCodeInChain(err, errors.CodeInvalidJSON) {
			t.Errorf("Expected invalid_json error, got %v", err)
		}
		if count != 2 {
			t.Errorf("Expected delivery to stop after the failing file, got %d callbacks", count)
		}
	})

	t.Run("callback error", func(t *testing.T) {
		streamer, _ := NewFileStreamer(newTestParser(t, nil), nil)

		stop := fmt.Errorf("stop")
		err := streamer.Stream(context.Background(), paths, func(r FileResult) error {
			return stop
		})
		if err != stop {
			t.Errorf("Expected callback error, got %v", err)
		}
	})
}

func TestNewFileStreamer_Validation(t *testing.T) {
	if _, err := NewFileStreamer(nil, nil); err == nil {
		t.Error("Expected error for nil parser")
	}

	if _, err := NewFileStreamer(newTestParser(t, nil), &StreamingConfig{MaxConcurrency: -1}); err == nil {
		t.Error("Expected error for invalid concurrency")
	}
}
