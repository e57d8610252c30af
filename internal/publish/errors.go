package publish

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Sentinel errors for publishing.
var (
	// ErrNoSigner indicates a Publisher built without a signer.
	ErrNoSigner = errors.New("no signer configured")
	// ErrInvalidEvent indicates untrusted event JSON that fails schema validation.
	ErrInvalidEvent = errors.New("event JSON does not match the NIP-01 schema")
	// ErrEmptyDraft indicates a draft without kind-appropriate content or tags.
	ErrEmptyDraft = errors.New("draft has nothing to publish")
)

// RecordError reports a fatal local failure (identity or signing) for one
// record of a publication. Index is the section number, or 0 for the root.
type RecordError struct {
	Index int
	Kind  event.Kind
	Slug  string
	Err   error
}

// Error names the failed record.
func (e *RecordError) Error() string {
	if e.Index == 0 {
		return fmt.Sprintf("publish: root %q: %v", e.Slug, e.Err)
	}
	return fmt.Sprintf("publish: section %d %q: %v", e.Index, e.Slug, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *RecordError) Unwrap() error {
	return e.Err
}
