// Package ledger keeps an append-only audit trail of published events. It is
// never read back for publishing; writes are best-effort and callers log
// failures instead of aborting.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papapumpkin/scriptorium/internal/event"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// ErrUnknownBackend indicates a backend name Open does not recognize.
var ErrUnknownBackend = errors.New("unknown ledger backend")

// Entry is one published event.
type Entry struct {
	EventID    string
	Kind       event.Kind
	Slug       string
	RunID      string
	RecordedAt time.Time
}

// Log appends entries to durable storage.
type Log interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

var (
	_ Log = Nop{}
	_ Log = (*FileLog)(nil)
	_ Log = (*SQLiteLog)(nil)
)

// Nop discards entries.
type Nop struct{}

// Append does nothing.
func (Nop) Append(context.Context, Entry) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// Open returns the Log for backend at path. An empty backend means file.
func Open(ctx context.Context, backend, path string) (Log, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	case BackendNone:
		return Nop{}, nil
	}
	return nil, fmt.Errorf("ledger: %w: %q", ErrUnknownBackend, backend)
}
