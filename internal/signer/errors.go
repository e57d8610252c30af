package signer

import (
	"errors"
	"fmt"
)

// Sentinel errors for key handling and signing.
var (
	// ErrMissingKey indicates no private key was configured.
	ErrMissingKey = errors.New("no private key configured")
	// ErrBadPrefix indicates a bech32 key that is not an nsec.
	ErrBadPrefix = errors.New("key is not an nsec")
	// ErrMalformedKey indicates a key that does not decode to a valid secp256k1 scalar.
	ErrMalformedKey = errors.New("malformed private key")
	// ErrPubKeyMismatch indicates an event authored by a different key than the signer's.
	ErrPubKeyMismatch = errors.New("event pubkey does not match signer")
	// ErrBadSignature indicates a signature that does not verify against the event.
	ErrBadSignature = errors.New("signature does not verify")
)

// SigningError reports a failure in one signing step. Op names the step
// ("decode", "sign", "seal", "verify").
type SigningError struct {
	Op  string
	Err error
}

// Error returns a message including the failed step.
func (e *SigningError) Error() string {
	return fmt.Sprintf("signer: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *SigningError) Unwrap() error {
	return e.Err
}
