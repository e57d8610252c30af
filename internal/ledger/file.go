package ledger

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// FileLog appends three lines per entry: event ID, kind, slug. An entry
// without a slug writes an empty third line so the file stays in step.
type FileLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	return &FileLog{file: f}, nil
}

// Append writes e as three lines.
func (l *FileLog) Append(_ context.Context, e Entry) error {
	line := e.EventID + "\n" + strconv.Itoa(int(e.Kind)) + "\n" + e.Slug + "\n"
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("ledger: append %s: %w", e.EventID, err)
	}
	return nil
}

// Close closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return nil
}
