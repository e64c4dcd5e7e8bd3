package core

// errors.go defines the import error taxonomy.
//
// File-level errors (decode, empty file, header) stop an import immediately.
// Row-level errors are collected into RowErrors so the caller sees every
// problem in the file after one pass.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEmptyFile is returned when a file contains no lines after decoding.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when a file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// DecodeError reports that no candidate encoding could decode a file.
type DecodeError struct {
	Length    int      // Size of the input in bytes
	Prefix    string   // Hex dump of the first DecodePrefixLen bytes
	Attempted []string // Encoding names in the order they were tried
	Err       error    // Failure of the last attempted encoding
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("encoding error: cannot decode %d bytes (starts with %s) as any of %s: %v",
		e.Length, e.Prefix, strings.Join(e.Attempted, ", "), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HeaderColumnCountError reports a header row with the wrong number of columns.
type HeaderColumnCountError struct {
	Expected int
	Found    int
	Headers  []string
}

func (e *HeaderColumnCountError) Error() string {
	return fmt.Sprintf("header has %d columns, expected %d (found: %s)",
		e.Found, e.Expected, strings.Join(e.Headers, ", "))
}

// HeaderMismatchError reports a header row whose names differ from the schema.
type HeaderMismatchError struct {
	Expected []string
	Found    []string
}

func (e *HeaderMismatchError) Error() string {
	return fmt.Sprintf("header mismatch: expected %s, found %s",
		strings.Join(e.Expected, ", "), strings.Join(e.Found, ", "))
}

// AssetNotFoundError reports an asset name that matches no known asset.
type AssetNotFoundError struct {
	Name      string
	Available []string
}

func (e *AssetNotFoundError) Error() string {
	available := append([]string(nil), e.Available...)
	sort.Strings(available)
	if len(available) == 0 {
		return fmt.Sprintf("asset %q not found (no assets available)", e.Name)
	}
	return fmt.Sprintf("asset %q not found (available: %s)", e.Name, strings.Join(available, ", "))
}

// RowError is a diagnostic for one data row. Row counts logical CSV lines:
// the header is row 1, the first data row is row 2. Blank lines are not
// counted and a quoted field spanning several lines counts once, so in such
// files Row can be lower than the line number a text editor shows.
// Reason reads as a predicate of the row, e.g. "has invalid date".
type RowError struct {
	Row    int
	Reason string
	Value  string // Offending raw value, if any
	Err    error  // Underlying cause, if any
}

func (e RowError) Error() string {
	msg := fmt.Sprintf("row %d %s", e.Row, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e RowError) Unwrap() error {
	return e.Err
}

// RowErrors aggregates every row error collected during one import.
type RowErrors struct {
	Errors []RowError
}

func (e *RowErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "import failed: %d invalid rows", len(e.Errors))
	for _, re := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(re.Error())
	}
	return b.String()
}

// Unwrap exposes the individual row errors to errors.Is and errors.As.
func (e *RowErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, re := range e.Errors {
		errs[i] = re
	}
	return errs
}

// DuplicateCountError reports rows skipped because they already exist.
// Imported counts the rows that were still committed in the same call.
type DuplicateCountError struct {
	Count    int
	Imported int
}

func (e *DuplicateCountError) Error() string {
	return fmt.Sprintf("duplicate rows skipped: %d already imported (%d new rows imported)", e.Count, e.Imported)
}

// IsFileError reports whether err rejects the file as a whole: too large,
// empty, undecodable or with a bad header. Nothing is written for such files.
func IsFileError(err error) bool {
	var (
		decodeErr *DecodeError
		countErr  *HeaderColumnCountError
		headerErr *HeaderMismatchError
	)
	return errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrEmptyFile) ||
		errors.As(err, &decodeErr) || errors.As(err, &countErr) || errors.As(err, &headerErr)
}
