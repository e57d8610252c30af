package document

import (
	"errors"
	"fmt"
)

// Sentinel errors for malformed source documents.
var (
	// ErrNoHeaders indicates the document has no heading line at all.
	ErrNoHeaders = errors.New("no headers")
	// ErrTooManyLevels indicates a heading nested deeper than the configured limit.
	ErrTooManyLevels = errors.New("too many header levels")
	// ErrUnterminatedFrontMatter indicates an opening front matter delimiter without a closing one.
	ErrUnterminatedFrontMatter = errors.New("missing closing front matter delimiter")
)

// StructureError reports a document that cannot be decomposed. Line is the
// 1-based source line of the offending heading, or 0 when not applicable.
type StructureError struct {
	Line int
	Err  error
}

// Error returns a human-readable message including the line when known.
func (e *StructureError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("structure: line %d: %v", e.Line, e.Err)
	}
	return "structure: " + e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *StructureError) Unwrap() error {
	return e.Err
}
