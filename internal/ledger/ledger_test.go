package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/scriptorium/internal/event"
)

func TestFileLog_ThreeLinesPerEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "published.log")
	l, err := OpenFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Append(ctx, Entry{EventID: "aa", Kind: event.KindPublicationSection, Slug: "book-intro-1-by-jane-v-1"}))
	require.NoError(t, l.Append(ctx, Entry{EventID: "bb", Kind: event.KindTextNote}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "aa\n30041\nbook-intro-1-by-jane-v-1\nbb\n1\n\n", string(data))
}

func TestFileLog_ConcurrentAppendsStayInStep(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "published.log")
	l, err := OpenFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(context.Background(), Entry{EventID: strings.Repeat("f", 64), Kind: event.Kind(i), Slug: "s"}))
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 150)
	for i := 0; i < len(lines); i += 3 {
		assert.Len(t, lines[i], 64)
		assert.Equal(t, "s", lines[i+2])
	}
}

func TestSQLiteLog_AppendAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Append(ctx, Entry{EventID: "id1", Kind: event.KindPublicationSection, Slug: "s1", RunID: "run", RecordedAt: at}))
	require.NoError(t, l.Append(ctx, Entry{EventID: "id2", Kind: event.KindPublicationIndex, Slug: "root", RunID: "run"}))
	require.NoError(t, l.Append(ctx, Entry{EventID: "id3", Kind: event.KindPublicationSection, Slug: "s1", RunID: "run2"}))

	all, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "id1", all[0].EventID)
	assert.Equal(t, event.KindPublicationSection, all[0].Kind)
	assert.True(t, at.Equal(all[0].RecordedAt), all[0].RecordedAt)
	assert.False(t, all[1].RecordedAt.IsZero())

	versions, err := l.BySlug(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "id3", versions[1].EventID)
	assert.Equal(t, "run2", versions[1].RunID)
}

func TestSQLiteLog_ReopenKeepsEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, Entry{EventID: "id1", Kind: event.KindTextNote}))
	require.NoError(t, l.Close())

	l, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	all, err := l.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_Backends(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	l, err := Open(ctx, "", filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	assert.IsType(t, &FileLog{}, l)
	require.NoError(t, l.Close())

	l, err = Open(ctx, "SQLite", filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteLog{}, l)
	require.NoError(t, l.Close())

	l, err = Open(ctx, "none", "")
	require.NoError(t, err)
	assert.NoError(t, l.Append(ctx, Entry{EventID: "x"}))

	_, err = Open(ctx, "postgres", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, "file", filepath.Join(dir, "missing", "a.log"))
	assert.Error(t, err)
}
