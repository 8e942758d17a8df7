package statement

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyOrHeaderOnly is returned when a file has no data rows.
	ErrEmptyOrHeaderOnly = errors.New("statement: file is empty or contains only a header row")

	// ErrNoDefaultCategory is returned when there is no category to fall back to.
	ErrNoDefaultCategory = errors.New("statement: no categories available to assign imported expenses")
)

// MissingColumnsError lists every required column absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// InsufficientFieldsError is returned for rows with too few fields.
type InsufficientFieldsError struct {
	Got  int
	Want int
}

func (e *InsufficientFieldsError) Error() string {
	return fmt.Sprintf("insufficient fields: got %d, want at least %d", e.Got, e.Want)
}

// DateParseError carries the raw date/time value that did not parse.
type DateParseError struct {
	Raw string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid date/time %q: expected YYYY/MM/DD HH:MM:SS", e.Raw)
}

// RowError attaches a 1-based row number (header is row 1) to a row failure.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// AllRowsFailedError is returned when no data row could be normalized.
type AllRowsFailedError struct {
	Errors []*RowError
}

func (e *AllRowsFailedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, rowErr := range e.Errors {
		msgs[i] = rowErr.Error()
	}
	return fmt.Sprintf("all %d rows failed to parse:\n%s", len(e.Errors), strings.Join(msgs, "\n"))
}

// IsFatal reports whether err rejects the whole file rather than a single row.
// Retrying a fatal import with the same input cannot succeed.
func IsFatal(err error) bool {
	var missing *MissingColumnsError
	var allFailed *AllRowsFailedError
	return errors.Is(err, ErrEmptyOrHeaderOnly) ||
		errors.Is(err, ErrNoDefaultCategory) ||
		errors.As(err, &missing) ||
		errors.As(err, &allFailed)
}
