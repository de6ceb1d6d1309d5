package errors

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ParseContext locates a problem inside an input file
type ParseContext struct {
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Pointer  string `json:"pointer,omitempty"`
	Value    string `json:"value,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// EnhancedParseError is a parse or schema error with location and a snippet
// of the offending input.
type EnhancedParseError struct {
	*AppError
	Location    *ParseContext `json:"location"`
	Recoverable bool          `json:"recoverable"`
	LineContent string        `json:"line_content,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// Error implements the error interface with enhanced formatting
func (e *EnhancedParseError) Error() string {
	parts := []string{e.AppError.Error()}

	if e.Location != nil {
		location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
		if e.Location.Line > 0 {
			location += fmt.Sprintf(":%d:%d", e.Location.Line, e.Location.Column)
		}
		if e.Location.Pointer != "" {
			location += fmt.Sprintf(" (%s)", e.Location.Pointer)
		}
		parts = append(parts, location)
	}

	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying AppError to errors.As
func (e *EnhancedParseError) Unwrap() error {
	return e.AppError
}

// GetDetailedError returns a detailed multi-line error description
func (e *EnhancedParseError) GetDetailedError() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  → File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  → Line: %d, column %d", e.Location.Line, e.Location.Column))
		}
		if e.Location.Pointer != "" {
			lines = append(lines, fmt.Sprintf("  → Path: %s", e.Location.Pointer))
		}
		if e.Location.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Location.Value))
		}
		if e.Location.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Location.Expected))
		}
	}

	if e.LineContent != "" {
		lines = append(lines, fmt.Sprintf("  → Content: %s", e.LineContent))
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  → Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("    • %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewEnhancedParseError creates a new enhanced parse error
func NewEnhancedParseError(category ErrorCategory, code ErrorCode, location *ParseContext, message string, cause error) *EnhancedParseError {
	var base *AppError
	if cause != nil {
		base = Wrap(cause, category, code, message)
	} else {
		base = New(category, code, message)
	}

	if location != nil {
		base.WithContext("file", location.File)
		if location.Line > 0 {
			base.WithContext("line", location.Line).WithContext("column", location.Column)
		}
		if location.Pointer != "" {
			base.WithContext("pointer", location.Pointer)
		}
	}

	return &EnhancedParseError{
		AppError:    base,
		Location:    location,
		Recoverable: true,
	}
}

// WithLineContent adds the offending line to the error
func (e *EnhancedParseError) WithLineContent(content string) *EnhancedParseError {
	e.LineContent = content
	return e
}

// WithExamples adds example values to help fix the error
func (e *EnhancedParseError) WithExamples(examples ...string) *EnhancedParseError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the EnhancedParseError
func (e *EnhancedParseError) WithSuggestion(suggestion string) *EnhancedParseError {
	e.AppError.WithSuggestion(suggestion)
	return e
}

// JSONSyntaxError reports malformed JSON at a byte offset of data. The
// offset is converted to a 1-based line and rune column.
func JSONSyntaxError(file string, data []byte, offset int64, cause error) *EnhancedParseError {
	line, column, content := locateOffset(data, offset)

	location := &ParseContext{
		File:     file,
		Line:     line,
		Column:   column,
		Expected: "a well-formed JSON document",
	}

	message := "malformed JSON"
	if cause != nil {
		message = fmt.Sprintf("malformed JSON: %s", cause.Error())
	}

	err := NewEnhancedParseError(CategoryParse, CodeInvalidJSON, location, message, cause).
		WithLineContent(content).
		WithSuggestion("check for trailing commas, unquoted keys or a truncated document")
	err.Recoverable = false
	return err
}

// SchemaViolationError reports a batch envelope that decodes but has the
// wrong shape. pointer is a JSON pointer to the offending value.
func SchemaViolationError(file, pointer, detail string) *EnhancedParseError {
	location := &ParseContext{
		File:     file,
		Pointer:  pointer,
		Expected: "invoices, products and customers as arrays",
	}

	return NewEnhancedParseError(CategoryValidation, CodeSchemaViolation, location,
		fmt.Sprintf("batch does not match the expected shape: %s", detail), nil).
		WithExamples(`{"invoices": [], "products": [], "customers": []}`, `[{"serial": "INV-1", "items": []}]`).
		WithSuggestion("wrap records in arrays; use [] for an empty collection")
}

// locateOffset finds the line, column and trimmed line text of a byte offset
func locateOffset(data []byte, offset int64) (int, int, string) {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}

	prefix := data[:offset]
	line := bytes.Count(prefix, []byte("\n")) + 1
	lineStart := bytes.LastIndexByte(prefix, '\n') + 1
	column := utf8.RuneCount(prefix[lineStart:]) + 1

	lineEnd := bytes.IndexByte(data[lineStart:], '\n')
	var content []byte
	if lineEnd < 0 {
		content = data[lineStart:]
	} else {
		content = data[lineStart : lineStart+lineEnd]
	}

	text := strings.TrimSpace(string(content))
	if utf8.RuneCountInString(text) > 120 {
		text = string([]rune(text)[:120]) + "..."
	}
	return line, column, text
}

// ParseErrorCollector collects errors from many input files
type ParseErrorCollector struct {
	errors    []*EnhancedParseError
	maxErrors int
}

// NewParseErrorCollector creates a new error collector
func NewParseErrorCollector(maxErrors int) *ParseErrorCollector {
	return &ParseErrorCollector{
		errors:    make([]*EnhancedParseError, 0),
		maxErrors: maxErrors,
	}
}

// Add records an error and reports whether processing should continue
func (c *ParseErrorCollector) Add(err *EnhancedParseError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)
	return c.maxErrors <= 0 || len(c.errors) < c.maxErrors
}

// HasErrors returns true if any errors have been collected
func (c *ParseErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *ParseErrorCollector) GetErrors() []*EnhancedParseError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *ParseErrorCollector) GetSummary() *ErrorSummary {
	base := make([]*AppError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.AppError
	}
	return NewErrorSummary(base)
}

// FormatParseErrorsForUser formats multiple parse errors in a user-friendly way
func FormatParseErrorsForUser(errs []*EnhancedParseError) string {
	if len(errs) == 0 {
		return "No parse errors"
	}

	if len(errs) == 1 {
		return errs[0].GetDetailedError()
	}

	lines := []string{fmt.Sprintf("Found %d input errors:", len(errs)), ""}

	byFile := make(map[string][]*EnhancedParseError)
	for _, err := range errs {
		file := "unknown"
		if err.Location != nil {
			file = filepath.Base(err.Location.File)
		}
		byFile[file] = append(byFile[file], err)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	const maxDetailed = 3
	for _, file := range files {
		fileErrors := byFile[file]
		lines = append(lines, fmt.Sprintf("File: %s (%d errors)", file, len(fileErrors)))

		for i, err := range fileErrors {
			if i == maxDetailed {
				lines = append(lines, "", fmt.Sprintf("... and %d more errors in this file", len(fileErrors)-maxDetailed))
				break
			}
			lines = append(lines, "", err.GetDetailedError())
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
