package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedTitle is returned when a feed document's title does not
	// carry a parseable date. This is fatal for that one day's document.
	ErrMalformedTitle = errors.New("malformed plan title")

	// ErrMissingHeader is returned when a feed document lacks the kopf
	// element entirely. Also fatal for the document.
	ErrMissingHeader = errors.New("document header missing")
)

// ParseError wraps a per-document parse failure with the source context.
// Callers skip the affected day and continue with the remaining days.
type ParseError struct {
	SourceFile string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.SourceFile, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
