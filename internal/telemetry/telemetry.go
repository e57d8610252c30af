// Package telemetry provides a JSONL event stream recording what a
// publication run did: which records were identified, every broadcast
// attempt and the per-relay outcomes. Every line carries the run ID, so a
// shared file can be split back into runs.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds identify the type of telemetry event.
const (
	KindPublishStart     = "publish_start"
	KindRecordIdentified = "record_identified"
	KindBroadcastAttempt = "broadcast_attempt"
	KindRelayOutcome     = "relay_outcome"
	KindBroadcastDone    = "broadcast_done"
	KindPublishDone      = "publish_done"
	KindLedgerFailed     = "ledger_failed"
)

// Event represents a single telemetry record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	EventID   string    `json:"event,omitempty"`
	Relay     string    `json:"relay,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Emitter writes telemetry events as JSON lines. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	closer io.Closer
	enc    *json.Encoder
	mu     sync.Mutex
	runID  string
}

// NewEmitter creates an Emitter appending to the file at path, creating it if
// needed. Events without a RunID are stamped with runID.
func NewEmitter(path, runID string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{closer: f, enc: json.NewEncoder(f), runID: runID}, nil
}

// NewWriterEmitter creates an Emitter on an arbitrary writer. Close does not
// close w.
func NewWriterEmitter(w io.Writer, runID string) *Emitter {
	return &Emitter{enc: json.NewEncoder(w), runID: runID}
}

// RunID returns the run identifier stamped on events, or "" for a nil Emitter.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit writes a single event. A zero Timestamp is replaced with the current
// time. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if evt.RunID == "" {
		evt.RunID = e.runID
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the Emitter owns one. Calling Close on
// a nil Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closer.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
