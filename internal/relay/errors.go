package relay

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Sentinel errors for relay delivery.
var (
	// ErrUnsigned indicates an attempt to broadcast an event without a signature.
	ErrUnsigned = errors.New("event is not signed")
	// ErrAborted indicates the caller cancelled the broadcast.
	ErrAborted = errors.New("broadcast aborted")
	// ErrRejected indicates a relay answered OK false.
	ErrRejected = errors.New("relay rejected event")
	// ErrMalformedResponse indicates a relay frame that is not a valid NIP-01 message.
	ErrMalformedResponse = errors.New("malformed relay response")
	// ErrTransportFault indicates the transport panicked while sending.
	ErrTransportFault = errors.New("transport fault")
	// ErrInvalidURL indicates a relay URL that is not ws:// or wss://.
	ErrInvalidURL = errors.New("relay url must use ws:// or wss://")
	// ErrNoRelays indicates no relay URL was available for the event.
	ErrNoRelays = errors.New("no relays to broadcast to")
	// ErrClosed indicates use of a closed transport.
	ErrClosed = errors.New("transport closed")
)

// RelayError reports a single relay's failure to accept an event. It is
// recoverable: the broadcaster absorbs it into the Result and retries.
type RelayError struct {
	URL     string
	Message string
	Err     error
}

// Error returns a message including the relay URL and its reply, if any.
func (e *RelayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("relay %s: %v: %s", e.URL, e.Err, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *RelayError) Unwrap() error {
	return e.Err
}

// PartialBroadcastFailure reports that no relay accepted an event after all
// attempts and the fallback. The event and its ID remain valid for a later
// rebroadcast.
type PartialBroadcastFailure struct {
	EventID string
	Relays  []string
	Err     error
}

// Error summarizes the failure with the number of relays tried.
func (e *PartialBroadcastFailure) Error() string {
	return fmt.Sprintf("broadcast %s: no relay accepted (%d tried): %v", shortID(e.EventID), len(e.Relays), e.Err)
}

// Unwrap returns the per-relay errors.
func (e *PartialBroadcastFailure) Unwrap() []error {
	return multierr.Errors(e.Err)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
