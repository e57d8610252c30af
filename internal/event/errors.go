package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for event construction and identity.
var (
	// ErrInvalidUTF8 indicates content or a tag value is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")
	// ErrInvalidPubKey indicates the author key is not 64 lowercase hex characters.
	ErrInvalidPubKey = errors.New("pubkey must be 64 lowercase hex characters")
	// ErrInvalidKind indicates a negative kind.
	ErrInvalidKind = errors.New("kind must be non-negative")
	// ErrUnknownScheme indicates an unsupported canonical serialization scheme.
	ErrUnknownScheme = errors.New("unknown serialization scheme")
	// ErrAlreadyIdentified indicates Identify was called on an event that has an ID.
	ErrAlreadyIdentified = errors.New("event id already computed")
	// ErrFrozen indicates a mutation was attempted after the ID was computed.
	ErrFrozen = errors.New("event is frozen after identification")
	// ErrNotIdentified indicates an operation needs the event ID first.
	ErrNotIdentified = errors.New("event has no id")
	// ErrIDMismatch indicates a stored ID that differs from the recomputed one.
	ErrIDMismatch = errors.New("event id does not match its content")
	// ErrInvalidSignature indicates a signature that is not 128 hex characters.
	ErrInvalidSignature = errors.New("signature must be 128 hex characters")
	// ErrAlreadySigned indicates a second signature was attached.
	ErrAlreadySigned = errors.New("event already signed")
)

// IdentityError reports a failure to serialize or hash an event. It names the
// offending field so callers can say which record and which field failed.
type IdentityError struct {
	Kind  Kind
	Field string
	Err   error
}

// Error returns a message including the event kind and field.
func (e *IdentityError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("identity: kind %d: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("identity: kind %d: %s: %v", e.Kind, e.Field, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *IdentityError) Unwrap() error {
	return e.Err
}
